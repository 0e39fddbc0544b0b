package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/talentscout/sessiond/pkg/models"
)

// Hybrid keeps records in the local store unconditionally and mirrors them to
// the remote store when it is reachable. Reads prefer the remote copy so a
// candidate sees the same history on every device.
type Hybrid struct {
	local  RecordStore
	remote RecordStore // nil when no remote database is configured
}

// NewHybrid creates a hybrid store. remote may be nil.
func NewHybrid(local, remote RecordStore) *Hybrid {
	return &Hybrid{local: local, remote: remote}
}

// Save writes the record locally first, then mirrors it to the remote store.
// A remote failure is logged and swallowed; the local copy already makes the
// save durable.
func (h *Hybrid) Save(ctx context.Context, rec models.SavedInterview) error {
	if err := h.local.Save(ctx, rec); err != nil {
		return fmt.Errorf("save local: %w", err)
	}
	if h.remote != nil {
		if err := h.remote.Save(ctx, rec); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Msg("Remote save failed, record kept locally")
		}
	}
	return nil
}

// List returns the remote history when available, falling back to the local
// store on error or when no remote store is configured.
func (h *Hybrid) List(ctx context.Context) ([]models.SavedInterview, error) {
	if h.remote != nil {
		records, err := h.remote.List(ctx)
		if err == nil {
			return records, nil
		}
		log.Warn().Err(err).Msg("Remote list failed, falling back to local store")
	}
	return h.local.List(ctx)
}

// Get looks the record up remotely first, then locally. A record is only
// missing when neither store has it.
func (h *Hybrid) Get(ctx context.Context, id string) (*models.SavedInterview, error) {
	if h.remote != nil {
		rec, err := h.remote.Get(ctx, id)
		if err == nil && rec != nil {
			return rec, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Remote get failed, falling back to local store")
		}
	}
	return h.local.Get(ctx, id)
}

// Rename updates both copies. Success on either store counts as success so a
// rename made offline still sticks.
func (h *Hybrid) Rename(ctx context.Context, id, name string) error {
	localErr := h.local.Rename(ctx, id, name)
	var remoteErr error
	if h.remote != nil {
		remoteErr = h.remote.Rename(ctx, id, name)
		if remoteErr != nil {
			log.Warn().Err(remoteErr).Str("id", id).Msg("Remote rename failed")
		}
	}
	if localErr != nil && (h.remote == nil || remoteErr != nil) {
		return fmt.Errorf("rename record: %w", localErr)
	}
	return nil
}

// Delete removes the record from both stores. Success on either store counts
// as success.
func (h *Hybrid) Delete(ctx context.Context, id string) error {
	localErr := h.local.Delete(ctx, id)
	var remoteErr error
	if h.remote != nil {
		remoteErr = h.remote.Delete(ctx, id)
		if remoteErr != nil {
			log.Warn().Err(remoteErr).Str("id", id).Msg("Remote delete failed")
		}
	}
	if localErr != nil && (h.remote == nil || remoteErr != nil) {
		return fmt.Errorf("delete record: %w", localErr)
	}
	return nil
}
