package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentscout/sessiond/pkg/models"
)

func TestPrepareSeedsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze-resume", r.URL.Path)
		w.Write([]byte(`{"session_id":"sess-77","analysis":"Five years of Go."}`))
	}))
	defer srv.Close()

	opts, err := Prepare(context.Background(), srv.URL, models.DefaultConfig(),
		"resume.pdf", strings.NewReader("%PDF-1.4 ..."))
	require.NoError(t, err)

	assert.Equal(t, "sess-77", opts.SessionID)
	assert.Equal(t, "Five years of Go.", opts.Analysis)
	assert.Equal(t, srv.URL, opts.BackendURL)
	assert.NotNil(t, opts.Reporter)
}

func TestPrepareRejectsInvalidConfig(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.DurationMinutes = 7

	_, err := Prepare(context.Background(), "http://localhost:8000", cfg,
		"resume.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPrepareSurfacesUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"could not parse document"}`))
	}))
	defer srv.Close()

	_, err := Prepare(context.Background(), srv.URL, models.DefaultConfig(),
		"resume.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}
