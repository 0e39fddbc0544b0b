// Package metrics derives live interview metrics from the transcript stream
// and timing events: filler-word counts, response latency, and the composite
// confidence score.
package metrics

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/talentscout/sessiond/pkg/models"
)

// FillerWords is the fixed lexicon matched case-insensitively as whole words.
var FillerWords = []string{"um", "uh", "like", "you know", "basically", "actually", "literally", "so", "well"}

var fillerPatterns []*regexp.Regexp

func init() {
	fillerPatterns = make([]*regexp.Regexp, len(FillerWords))
	for i, w := range FillerWords {
		fillerPatterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
}

// CountFillers returns the number of whole-word filler matches in text.
func CountFillers(text string) int {
	n := 0
	for _, p := range fillerPatterns {
		n += len(p.FindAllStringIndex(text, -1))
	}
	return n
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Engine accumulates per-session speech metrics. All methods are safe for
// concurrent use; the snapshot is recomputed on demand and never persisted
// independently.
type Engine struct {
	mu sync.Mutex

	fillerWordCount int
	totalWordCount  int
	responseCount   int
	responseTimes   []float64
}

// NewEngine returns an empty metrics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ObserveFragment counts filler words in a newly finalized transcript
// fragment. Called for every fragment, sent upstream or not.
func (e *Engine) ObserveFragment(text string) int {
	n := CountFillers(text)
	if n > 0 {
		e.mu.Lock()
		e.fillerWordCount += n
		e.mu.Unlock()
	}
	return n
}

// RecordResponse accounts for a fragment that was actually transmitted.
// latencySeconds is the time between the interviewer falling silent and the
// send; hasLatency is false when no AI-stop timestamp was pending.
func (e *Engine) RecordResponse(text string, latencySeconds float64, hasLatency bool) {
	words := CountWords(text)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalWordCount += words
	e.responseCount++
	if hasLatency {
		e.responseTimes = append(e.responseTimes, latencySeconds)
	}
}

// FillerWordCount returns the accumulated filler count.
func (e *Engine) FillerWordCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fillerWordCount
}

// Snapshot recomputes the current metrics snapshot from accumulated history.
func (e *Engine) Snapshot() models.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := models.Stats{
		FillerWordCount: e.fillerWordCount,
		TotalWordCount:  e.totalWordCount,
		ResponseCount:   e.responseCount,
	}
	if len(e.responseTimes) > 0 {
		sum := 0.0
		for _, t := range e.responseTimes {
			sum += t
		}
		avg := sum / float64(len(e.responseTimes))
		stats.AvgResponseTime = &avg
	}
	if score, ok := confidence(e.fillerWordCount, e.totalWordCount, e.responseCount, stats.AvgResponseTime); ok {
		stats.ConfidenceScore = &score
	}
	return stats
}

// confidence implements the composite 0-100 score. Defined only once at
// least two latency samples exist and at least one word has been recorded.
func confidence(fillerCount, totalWords, responseCount int, avgResponseTime *float64) (int, bool) {
	if responseCount < 2 || totalWords == 0 {
		return 0, false
	}

	fillerRatio := float64(fillerCount) / float64(totalWords)
	fillerScore := clamp(100-fillerRatio*500, 0, 100)

	avgTime := 5.0
	if avgResponseTime != nil {
		avgTime = *avgResponseTime
	}
	var timeScore float64
	switch {
	case avgTime < 2:
		timeScore = 70
	case avgTime <= 5:
		timeScore = 100
	case avgTime <= 10:
		timeScore = 80
	case avgTime <= 15:
		timeScore = 50
	default:
		timeScore = 30
	}

	avgWords := float64(totalWords) / float64(responseCount)
	var lengthScore float64
	switch {
	case avgWords < 10:
		lengthScore = 30
	case avgWords < 20:
		lengthScore = 60
	case avgWords <= 60:
		lengthScore = 100
	case avgWords <= 100:
		lengthScore = 80
	default:
		lengthScore = 60
	}

	score := math.Round(fillerScore*0.3 + timeScore*0.3 + lengthScore*0.4)
	return int(clamp(score, 0, 100)), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
