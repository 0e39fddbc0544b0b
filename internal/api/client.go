// Package api wraps the interview service's HTTP endpoints: resume analysis
// (which issues the session token) and end-of-interview report generation.
// Both are opaque remote calls; failures surface to the caller as errors.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Client calls the interview backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the given http(s) base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type analyzeResponse struct {
	SessionID string `json:"session_id"`
	Analysis  string `json:"analysis"`
	Error     string `json:"error"`
}

type endResponse struct {
	Report   string `json:"report"`
	Analysis string `json:"analysis"`
	Error    string `json:"error"`
}

// AnalyzeResume uploads a resume document and returns the issued session
// token plus the analysis text for the final report.
func (c *Client) AnalyzeResume(ctx context.Context, filename string, document io.Reader) (sessionID, analysis string, err error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, document); err != nil {
		return "", "", fmt.Errorf("copy document: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-resume", &body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("analyze resume: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("analyze resume: unexpected status %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("decode analyze response: %w", err)
	}
	if parsed.Error != "" {
		return "", "", fmt.Errorf("analyze resume: %s", parsed.Error)
	}
	if parsed.SessionID == "" {
		return "", "", fmt.Errorf("analyze resume: no session id in response")
	}

	log.Info().Str("sessionId", parsed.SessionID).Msg("Resume analyzed, session created")
	return parsed.SessionID, parsed.Analysis, nil
}

// EndInterview requests the final report for a session.
func (c *Client) EndInterview(ctx context.Context, sessionID string) (report, analysis string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/end-interview/"+sessionID, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("end interview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("end interview: unexpected status %d", resp.StatusCode)
	}

	var parsed endResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("decode end-interview response: %w", err)
	}
	if parsed.Error != "" {
		return "", "", fmt.Errorf("end interview: %s", parsed.Error)
	}
	if parsed.Report == "" {
		return "", "", fmt.Errorf("end interview: empty report in response")
	}

	return parsed.Report, parsed.Analysis, nil
}
