// Package storage defines the saved-interview record contract and the
// hybrid store that prefers the remote database while always keeping a
// local copy. Implementations are interchangeable by availability, never by
// type inspection.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/talentscout/sessiond/pkg/models"
)

// MaxRecords caps how many interviews are listed and retained.
const MaxRecords = 20

// RecordStore is the saved-interview contract shared by the remote and
// local implementations.
type RecordStore interface {
	List(ctx context.Context) ([]models.SavedInterview, error)
	Get(ctx context.Context, id string) (*models.SavedInterview, error)
	Save(ctx context.Context, rec models.SavedInterview) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// NewRecord builds a SavedInterview for a just-finished session, named after
// its finish time.
func NewRecord(report, analysis, transcript string, stats models.Stats) models.SavedInterview {
	now := time.Now()
	return models.SavedInterview{
		ID:         uuid.NewString(),
		Name:       now.Format("Jan 2, 2006 03:04 PM"),
		Date:       now,
		Report:     report,
		Analysis:   analysis,
		Transcript: transcript,
		Stats:      stats,
	}
}
