// Package observer exposes a local HTTP API for watching a live interview
// session and browsing saved records.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/talentscout/sessiond/internal/export"
	"github.com/talentscout/sessiond/internal/observer/sse"
	"github.com/talentscout/sessiond/internal/storage"
	"github.com/talentscout/sessiond/pkg/models"
)

// SessionInfo is the live view of the current session.
type SessionInfo struct {
	Active     bool   `json:"active"`
	State      string `json:"state"`
	Remaining  int    `json:"remaining_seconds"`
	Violations int    `json:"violations"`
	Cheating   bool   `json:"cheating_detected"`
	Absence    bool   `json:"absence_detected"`
}

// SessionSource answers status and metrics queries for the live session.
type SessionSource interface {
	Info() SessionInfo
	Metrics() models.Stats
}

// Event is one SSE payload.
type Event struct {
	Type  string        `json:"type"`
	State string        `json:"state,omitempty"`
	Count int           `json:"count,omitempty"`
	Kind  string        `json:"kind,omitempty"`
	Stats *models.Stats `json:"stats,omitempty"`
	At    time.Time     `json:"at"`
}

// Service is the observer HTTP API.
type Service struct {
	version     string
	records     storage.RecordStore
	broadcaster *sse.Broadcaster
	router      chi.Router
	startTime   time.Time

	mu      sync.RWMutex
	session SessionSource // nil when no session is live
}

// NewService builds the API around the record store. session may be nil.
func NewService(version string, records storage.RecordStore, session SessionSource) *Service {
	s := &Service{
		version:     version,
		records:     records,
		session:     session,
		broadcaster: sse.NewBroadcaster(),
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/session/status", s.handleSessionStatus)
	s.router.Get("/api/session/metrics", s.handleSessionMetrics)
	s.router.Get("/api/records", s.handleListRecords)
	s.router.Get("/api/records/{id}", s.handleGetRecord)
	s.router.Get("/api/records/{id}/export", s.handleExportRecord)
	s.router.Patch("/api/records/{id}", s.handleRenameRecord)
	s.router.Delete("/api/records/{id}", s.handleDeleteRecord)
	s.router.Get("/events", s.broadcaster.ServeHTTP)
}

// Router returns the HTTP handler for tests and embedding.
func (s *Service) Router() http.Handler {
	return s.router
}

// Run serves the API until the context is cancelled.
func (s *Service) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Observer API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// PublishState broadcasts a session state change.
func (s *Service) PublishState(state string) {
	s.broadcaster.Broadcast(Event{Type: "state", State: state, At: time.Now()})
}

// PublishViolation broadcasts a focus violation.
func (s *Service) PublishViolation(count int) {
	s.broadcaster.Broadcast(Event{Type: "violation", Count: count, At: time.Now()})
}

// PublishWarning broadcasts a presence warning.
func (s *Service) PublishWarning(kind string) {
	s.broadcaster.Broadcast(Event{Type: "warning", Kind: kind, At: time.Now()})
}

// PublishMetrics broadcasts a metrics snapshot.
func (s *Service) PublishMetrics(stats models.Stats) {
	s.broadcaster.Broadcast(Event{Type: "metrics", Stats: &stats, At: time.Now()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Service) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	src := s.source()
	if src == nil {
		writeJSON(w, http.StatusOK, SessionInfo{})
		return
	}
	writeJSON(w, http.StatusOK, src.Info())
}

func (s *Service) handleSessionMetrics(w http.ResponseWriter, _ *http.Request) {
	src := s.source()
	if src == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, src.Metrics())
}

func (s *Service) source() SessionSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Service) setSource(src SessionSource) {
	s.mu.Lock()
	s.session = src
	s.mu.Unlock()
}

func (s *Service) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []models.SavedInterview{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Service) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Service) handleExportRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(*rec)))
	_, _ = io.WriteString(w, export.Render(*rec))
}

func (s *Service) handleRenameRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := s.records.Rename(r.Context(), id, body.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": body.Name})
}

func (s *Service) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.records.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) lookupRecord(w http.ResponseWriter, r *http.Request) (*models.SavedInterview, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
