package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/talentscout/sessiond/internal/storage"
	"github.com/talentscout/sessiond/pkg/models"
)

// RecordStore provides saved-interview operations on the local database.
type RecordStore struct {
	store *Store
}

// NewRecordStore creates a record store backed by the given Store.
func NewRecordStore(store *Store) *RecordStore {
	return &RecordStore{store: store}
}

// Save inserts or replaces a saved interview, then prunes rows beyond the
// retention cap so the local file cannot grow without bound.
func (r *RecordStore) Save(ctx context.Context, rec models.SavedInterview) error {
	statsJSON, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO interviews
		(id, name, date, date_epoch, report, analysis, transcript, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.store.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Date.Format(time.RFC3339), rec.Date.UnixMilli(),
		rec.Report, rec.Analysis, rec.Transcript, string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("save interview: %w", err)
	}

	const prune = `
		DELETE FROM interviews
		WHERE id NOT IN (
			SELECT id FROM interviews ORDER BY date_epoch DESC LIMIT ?
		)
	`
	if _, err := r.store.ExecContext(ctx, prune, storage.MaxRecords); err != nil {
		return fmt.Errorf("prune interviews: %w", err)
	}
	return nil
}

// List returns saved interviews, newest first, capped at the retention limit.
func (r *RecordStore) List(ctx context.Context) ([]models.SavedInterview, error) {
	const query = `
		SELECT id, name, date, report, analysis, transcript, stats
		FROM interviews
		ORDER BY date_epoch DESC
		LIMIT ?
	`
	rows, err := r.store.QueryContext(ctx, query, storage.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var records []models.SavedInterview
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Get returns a single saved interview, or nil when it does not exist.
func (r *RecordStore) Get(ctx context.Context, id string) (*models.SavedInterview, error) {
	const query = `
		SELECT id, name, date, report, analysis, transcript, stats
		FROM interviews
		WHERE id = ?
		LIMIT 1
	`
	row, err := r.store.QueryRowContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// Rename updates the display name of a saved interview.
func (r *RecordStore) Rename(ctx context.Context, id, name string) error {
	const query = `UPDATE interviews SET name = ? WHERE id = ?`
	result, err := r.store.ExecContext(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("rename interview: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("interview %s not found", id)
	}
	return nil
}

// Delete removes a saved interview. Deleting a missing row is not an error.
func (r *RecordStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM interviews WHERE id = ?`
	if _, err := r.store.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete interview: %w", err)
	}
	return nil
}

// scanRecord scans a saved interview from a row scanner.
func scanRecord(scanner interface{ Scan(...interface{}) error }) (*models.SavedInterview, error) {
	var (
		rec       models.SavedInterview
		dateStr   string
		statsJSON string
	)
	if err := scanner.Scan(
		&rec.ID, &rec.Name, &dateStr,
		&rec.Report, &rec.Analysis, &rec.Transcript, &statsJSON,
	); err != nil {
		return nil, err
	}

	date, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse interview date: %w", err)
	}
	rec.Date = date

	if err := json.Unmarshal([]byte(statsJSON), &rec.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &rec, nil
}
