// Package export renders a saved interview as a plain-text report card a
// candidate can download and share.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/talentscout/sessiond/pkg/models"
)

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename returns the suggested download filename for a record.
func Filename(rec models.SavedInterview) string {
	return filenameSanitizer.ReplaceAllString(rec.Name, "_") + "_report.txt"
}

// Render produces the full report document.
func Render(rec models.SavedInterview) string {
	var b strings.Builder

	writeHeader(&b, "INTERVIEW REPORT CARD")
	fmt.Fprintf(&b, "%s | %s\n\n", rec.Name, rec.Date.Format("1/2/2006"))

	writeHeader(&b, "INTERVIEW STATISTICS")
	writeStats(&b, rec.Stats)

	writeHeader(&b, "AI EVALUATION")
	b.WriteString(strings.TrimSpace(rec.Report))
	b.WriteString("\n\n")

	if strings.TrimSpace(rec.Analysis) != "" {
		writeHeader(&b, "RESUME ANALYSIS")
		b.WriteString(strings.TrimSpace(rec.Analysis))
		b.WriteString("\n\n")
	}

	if strings.TrimSpace(rec.Transcript) != "" {
		writeHeader(&b, "CONVERSATION TRANSCRIPT")
		writeTranscript(&b, rec.Transcript)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, title string) {
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")
}

// writeStats prints the five statistics in a fixed order. Score and latency
// are shown as N/A until enough responses were collected to compute them.
func writeStats(b *strings.Builder, stats models.Stats) {
	score := "N/A"
	if stats.ConfidenceScore != nil {
		score = fmt.Sprintf("%d%%", *stats.ConfidenceScore)
	}
	latency := "N/A"
	if stats.AvgResponseTime != nil {
		latency = fmt.Sprintf("%.1fs", *stats.AvgResponseTime)
	}

	fmt.Fprintf(b, "1. Confidence Score: %s\n", score)
	fmt.Fprintf(b, "2. Filler Words Used: %d\n", stats.FillerWordCount)
	fmt.Fprintf(b, "3. Total Words Spoken: %d\n", stats.TotalWordCount)
	fmt.Fprintf(b, "4. Average Response Time: %s\n", latency)
	fmt.Fprintf(b, "5. Number of Responses: %d\n\n", stats.ResponseCount)
}

// writeTranscript numbers each non-blank line so individual exchanges can be
// referenced in feedback.
func writeTranscript(b *strings.Builder, transcript string) {
	n := 0
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n++
		fmt.Fprintf(b, "%d. %s\n", n, line)
	}
}
