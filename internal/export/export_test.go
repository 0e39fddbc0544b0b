package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentscout/sessiond/pkg/models"
)

func sampleRecord() models.SavedInterview {
	score := 85
	avg := 3.2
	return models.SavedInterview{
		ID:         "rec-1",
		Name:       "Jan 5, 2026 02:30 PM",
		Date:       time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC),
		Report:     "Clear communicator.\nNeeds deeper system design answers.",
		Analysis:   "Five years of backend work.",
		Transcript: "AI: Tell me about yourself.\nYou: I build services in Go.\n\nAI: What is a deadlock?",
		Stats: models.Stats{
			ConfidenceScore: &score,
			FillerWordCount: 4,
			TotalWordCount:  250,
			AvgResponseTime: &avg,
			ResponseCount:   8,
		},
	}
}

func TestRenderSections(t *testing.T) {
	doc := Render(sampleRecord())

	assert.Contains(t, doc, "INTERVIEW REPORT CARD")
	assert.Contains(t, doc, "Jan 5, 2026 02:30 PM | 1/5/2026")
	assert.Contains(t, doc, "INTERVIEW STATISTICS")
	assert.Contains(t, doc, "AI EVALUATION")
	assert.Contains(t, doc, "RESUME ANALYSIS")
	assert.Contains(t, doc, "CONVERSATION TRANSCRIPT")

	// Report body follows its header.
	assert.Less(t, strings.Index(doc, "AI EVALUATION"), strings.Index(doc, "Clear communicator."))
}

func TestRenderStats(t *testing.T) {
	doc := Render(sampleRecord())

	assert.Contains(t, doc, "1. Confidence Score: 85%")
	assert.Contains(t, doc, "2. Filler Words Used: 4")
	assert.Contains(t, doc, "3. Total Words Spoken: 250")
	assert.Contains(t, doc, "4. Average Response Time: 3.2s")
	assert.Contains(t, doc, "5. Number of Responses: 8")
}

func TestRenderNilStatsShowNA(t *testing.T) {
	rec := sampleRecord()
	rec.Stats = models.Stats{}

	doc := Render(rec)
	assert.Contains(t, doc, "1. Confidence Score: N/A")
	assert.Contains(t, doc, "4. Average Response Time: N/A")
}

func TestRenderSkipsEmptySections(t *testing.T) {
	rec := sampleRecord()
	rec.Analysis = "   "
	rec.Transcript = ""

	doc := Render(rec)
	assert.NotContains(t, doc, "RESUME ANALYSIS")
	assert.NotContains(t, doc, "CONVERSATION TRANSCRIPT")
}

func TestRenderTranscriptNumbering(t *testing.T) {
	doc := Render(sampleRecord())

	require.Contains(t, doc, "1. AI: Tell me about yourself.")
	require.Contains(t, doc, "2. You: I build services in Go.")
	// Blank lines do not consume numbers.
	require.Contains(t, doc, "3. AI: What is a deadlock?")
}

func TestFilename(t *testing.T) {
	rec := sampleRecord()
	assert.Equal(t, "Jan_5__2026_02_30_PM_report.txt", Filename(rec))
}
