package session

import (
	"context"
	"io"

	"github.com/talentscout/sessiond/internal/api"
	"github.com/talentscout/sessiond/pkg/models"
)

// Prepare uploads a resume to the interview service and returns options
// seeded with the issued session id and analysis text. The caller fills in
// the device and capture collaborators before calling New.
func Prepare(ctx context.Context, backendURL string, cfg models.SessionConfig, filename string, resume io.Reader) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}

	client := api.NewClient(backendURL)
	id, analysis, err := client.AnalyzeResume(ctx, filename, resume)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Config:     cfg,
		SessionID:  id,
		Analysis:   analysis,
		BackendURL: backendURL,
		Reporter:   client,
	}, nil
}
