// Package models contains domain models for sessiond.
package models

import (
	"fmt"
	"time"
)

// Persona is the AI interviewer behavioral style.
type Persona string

const (
	PersonaFriendly Persona = "friendly"
	PersonaBalanced Persona = "balanced"
	PersonaStrict   Persona = "strict"
)

// InterviewType selects the question mix for a session.
type InterviewType string

const (
	TypeTechnical  InterviewType = "technical"
	TypeBehavioral InterviewType = "behavioral"
	TypeMixed      InterviewType = "mixed"
)

// Difficulty is the seniority level the interviewer calibrates to.
type Difficulty string

const (
	DifficultyJunior Difficulty = "junior"
	DifficultyMid    Difficulty = "mid"
	DifficultySenior Difficulty = "senior"
	DifficultyLead   Difficulty = "lead"
)

// DurationOptions are the selectable interview lengths in minutes.
var DurationOptions = []int{5, 10, 15, 20, 30, 45, 60}

// ConnectionStatus reflects the state of the interview stream.
type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
)

// Speaker tags a transcript entry with its origin.
type Speaker string

const (
	SpeakerAI        Speaker = "ai"
	SpeakerCandidate Speaker = "candidate"
	SpeakerSystem    Speaker = "system"
)

// SessionConfig is the immutable configuration of one interview attempt.
type SessionConfig struct {
	Persona         Persona       `json:"persona"`
	Type            InterviewType `json:"type"`
	Difficulty      Difficulty    `json:"difficulty"`
	DurationMinutes int           `json:"duration_minutes"`
	PracticeMode    bool          `json:"practice_mode"`
}

// Validate checks that every configuration field holds an allowed value.
func (c SessionConfig) Validate() error {
	switch c.Persona {
	case PersonaFriendly, PersonaBalanced, PersonaStrict:
	default:
		return fmt.Errorf("invalid persona %q", c.Persona)
	}
	switch c.Type {
	case TypeTechnical, TypeBehavioral, TypeMixed:
	default:
		return fmt.Errorf("invalid interview type %q", c.Type)
	}
	switch c.Difficulty {
	case DifficultyJunior, DifficultyMid, DifficultySenior, DifficultyLead:
	default:
		return fmt.Errorf("invalid difficulty %q", c.Difficulty)
	}
	for _, d := range DurationOptions {
		if c.DurationMinutes == d {
			return nil
		}
	}
	return fmt.Errorf("invalid duration %d minutes", c.DurationMinutes)
}

// DefaultConfig mirrors the defaults the configuration screen starts from.
func DefaultConfig() SessionConfig {
	return SessionConfig{
		Persona:         PersonaBalanced,
		Type:            TypeMixed,
		Difficulty:      DifficultyMid,
		DurationMinutes: 15,
	}
}

// TranscriptEntry is one utterance in the conversation history.
type TranscriptEntry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// CodeSubmission is one snapshot of candidate code sent for review.
type CodeSubmission struct {
	Language string    `json:"language"`
	Code     string    `json:"code"`
	At       time.Time `json:"at"`
}

// Utterance is one finalized unit of candidate speech with derived counts.
// Entries are append-only, ordered by arrival.
type Utterance struct {
	Text        string    `json:"text"`
	WordCount   int       `json:"word_count"`
	FillerCount int       `json:"filler_count"`
	At          time.Time `json:"at"`
}

// Session represents one interview attempt from start to finalize.
// Mutable fields are owned by the orchestrator; once Ended is set the
// session is treated as immutable.
type Session struct {
	Token  string        `json:"token"`
	Config SessionConfig `json:"config"`

	Status      ConnectionStatus  `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	Transcript  []TranscriptEntry `json:"transcript"`
	Submissions []CodeSubmission  `json:"submissions"`

	ViolationCount   int  `json:"violation_count"`
	CheatingDetected bool `json:"cheating_detected"`
	AbsenceDetected  bool `json:"absence_detected"`
	Ended            bool `json:"ended"`
}

// Remaining returns seconds left at the given instant, floored at zero.
func (s *Session) Remaining(now time.Time) int {
	total := s.Config.DurationMinutes * 60
	elapsed := int(now.Sub(s.StartedAt) / time.Second)
	if elapsed >= total {
		return 0
	}
	return total - elapsed
}
