package models

import "time"

// Stats is the metrics snapshot attached to a finished interview.
// ConfidenceScore and AvgResponseTime are nil until enough samples exist.
type Stats struct {
	ConfidenceScore *int     `json:"confidenceScore"`
	FillerWordCount int      `json:"fillerWordCount"`
	TotalWordCount  int      `json:"totalWordCount"`
	AvgResponseTime *float64 `json:"avgResponseTime"`
	ResponseCount   int      `json:"responseCount"`
}

// Report is the final artifact of a session, created once at finalize and
// immutable thereafter.
type Report struct {
	ReportText string `json:"report"`
	Analysis   string `json:"analysis"`
	Transcript string `json:"transcript"`
	Stats      Stats  `json:"stats"`
}

// SavedInterview is one persisted interview record.
type SavedInterview struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	Report     string    `json:"report"`
	Analysis   string    `json:"analysis"`
	Transcript string    `json:"transcript"`
	Stats      Stats     `json:"stats"`
}
