// Package api wraps the interview service's HTTP endpoints.
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeResume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze-resume", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "resume.pdf", header.Filename)

		w.Write([]byte(`{"session_id":"sess-42","analysis":"Strong backend background."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, analysis, err := c.AnalyzeResume(context.Background(), "resume.pdf", strings.NewReader("%PDF-1.4 ..."))
	require.NoError(t, err)
	assert.Equal(t, "sess-42", id)
	assert.Equal(t, "Strong backend background.", analysis)
}

func TestAnalyzeResumeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"could not parse document"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.AnalyzeResume(context.Background(), "resume.pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not parse document")
}

func TestAnalyzeResumeHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.AnalyzeResume(context.Background(), "resume.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestEndInterview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/end-interview/sess-42", r.URL.Path)
		w.Write([]byte(`{"report":"Strong candidate.","analysis":"5 years of Go."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	report, analysis, err := c.EndInterview(context.Background(), "sess-42")
	require.NoError(t, err)
	assert.Equal(t, "Strong candidate.", report)
	assert.Equal(t, "5 years of Go.", analysis)
}

func TestEndInterviewEmptyReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.EndInterview(context.Background(), "sess-42")
	assert.Error(t, err)
}
