package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talentscout/sessiond/internal/storage"
	"github.com/talentscout/sessiond/pkg/models"
)

// Interview is the GORM model for a saved interview row.
type Interview struct {
	ID         string `gorm:"primaryKey;type:text"`
	Name       string `gorm:"not null"`
	Date       time.Time
	DateEpoch  int64  `gorm:"index:idx_interviews_date,sort:desc;not null"`
	Report     string `gorm:"type:text"`
	Analysis   string `gorm:"type:text"`
	Transcript string `gorm:"type:text"`
	Stats      string `gorm:"type:jsonb;default:'{}'"`
}

func (Interview) TableName() string { return "interviews" }

// BeforeCreate hook to keep the sort epoch in step with the date.
func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	if i.DateEpoch == 0 {
		i.DateEpoch = i.Date.UnixMilli()
	}
	return nil
}

// RecordStore provides saved-interview operations on the remote database.
type RecordStore struct {
	store *Store
}

// NewRecordStore creates a record store backed by the given Store.
func NewRecordStore(store *Store) *RecordStore {
	return &RecordStore{store: store}
}

// Save upserts a saved interview.
func (r *RecordStore) Save(ctx context.Context, rec models.SavedInterview) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	err = r.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save interview: %w", err)
	}
	return nil
}

// List returns saved interviews, newest first, capped at the retention limit.
func (r *RecordStore) List(ctx context.Context) ([]models.SavedInterview, error) {
	var rows []Interview
	err := r.store.DB.WithContext(ctx).
		Order("date_epoch DESC").
		Limit(storage.MaxRecords).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	records := make([]models.SavedInterview, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get returns a single saved interview, or nil when it does not exist.
func (r *RecordStore) Get(ctx context.Context, id string) (*models.SavedInterview, error) {
	var row Interview
	err := r.store.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}
	rec, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Rename updates the display name of a saved interview.
func (r *RecordStore) Rename(ctx context.Context, id, name string) error {
	result := r.store.DB.WithContext(ctx).
		Model(&Interview{}).
		Where("id = ?", id).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("rename interview: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("interview %s not found", id)
	}
	return nil
}

// Delete removes a saved interview. Deleting a missing row is not an error.
func (r *RecordStore) Delete(ctx context.Context, id string) error {
	err := r.store.DB.WithContext(ctx).Delete(&Interview{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("delete interview: %w", err)
	}
	return nil
}

func toRow(rec models.SavedInterview) (Interview, error) {
	statsJSON, err := json.Marshal(rec.Stats)
	if err != nil {
		return Interview{}, fmt.Errorf("marshal stats: %w", err)
	}
	return Interview{
		ID:         rec.ID,
		Name:       rec.Name,
		Date:       rec.Date,
		DateEpoch:  rec.Date.UnixMilli(),
		Report:     rec.Report,
		Analysis:   rec.Analysis,
		Transcript: rec.Transcript,
		Stats:      string(statsJSON),
	}, nil
}

func fromRow(row Interview) (models.SavedInterview, error) {
	rec := models.SavedInterview{
		ID:         row.ID,
		Name:       row.Name,
		Date:       row.Date,
		Report:     row.Report,
		Analysis:   row.Analysis,
		Transcript: row.Transcript,
	}
	if row.Stats != "" {
		if err := json.Unmarshal([]byte(row.Stats), &rec.Stats); err != nil {
			return rec, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return rec, nil
}
