// Package capture gates continuous speech-to-text so the microphone is never
// transcribing while the interviewer is speaking. The underlying recognizer
// is a device the embedding application provides; the gate owns intent,
// suspension, and auto-restart.
package capture

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Recognizer is the speech-capture device contract. Start begins continuous,
// interim-enabled recognition; results, stream end, and errors are delivered
// back through the gate's Handle* methods by whoever owns the device loop.
type Recognizer interface {
	Start() error
	Stop()
}

// ErrAlreadyStarted may be returned by Recognizer.Start when recognition is
// already running; the gate treats it as success.
var ErrAlreadyStarted = errors.New("recognition already started")

// ErrorKind classifies recognizer failures, mirroring the device error codes.
type ErrorKind int

const (
	// ErrPermissionDenied is fatal: intent is cleared and capture stops.
	ErrPermissionDenied ErrorKind = iota
	// ErrNoSpeech is silence; expected noise, swallowed.
	ErrNoSpeech
	// ErrAborted happens on every deliberate stop; swallowed.
	ErrAborted
	// ErrDeviceUnavailable means no usable microphone; logged, non-fatal.
	ErrDeviceUnavailable
	// ErrOther is anything unexpected; logged at warn.
	ErrOther
)

// State is the capture gate state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateSuspended:
		return "suspended"
	default:
		return "idle"
	}
}

const (
	// DefaultRestartDelay masks devices that stop after each utterance.
	DefaultRestartDelay = 100 * time.Millisecond
	// DefaultResumeDelay lets the speaker tail dissipate before the mic
	// comes back after the interviewer stops talking.
	DefaultResumeDelay = 500 * time.Millisecond
)

// Gate is the capture state machine over {idle, listening, suspended}.
type Gate struct {
	recognizer Recognizer
	onFragment func(text string)

	// RestartDelay and ResumeDelay default to the package constants and are
	// overridable before the first Start (tests shorten them).
	RestartDelay time.Duration
	ResumeDelay  time.Duration

	mu          sync.Mutex
	state       State
	intent      bool
	suspended   bool
	transcript  strings.Builder
	restartTmr  *time.Timer
	resumeTmr   *time.Timer
	permsDenied bool
}

// NewGate creates a gate over the recognizer. onFragment is invoked for every
// finalized fragment (interim results are never surfaced); it may be nil.
func NewGate(recognizer Recognizer, onFragment func(text string)) *Gate {
	return &Gate{
		recognizer:   recognizer,
		onFragment:   onFragment,
		RestartDelay: DefaultRestartDelay,
		ResumeDelay:  DefaultResumeDelay,
	}
}

// Start begins listening and sets the intent flag so the gate keeps the
// recognizer running across natural end-of-stream events.
func (g *Gate) Start() {
	g.mu.Lock()
	if g.permsDenied {
		g.mu.Unlock()
		log.Warn().Msg("Capture start ignored, permission previously denied")
		return
	}
	g.intent = true
	g.suspended = false
	g.mu.Unlock()

	g.startRecognizer()
}

// Stop clears the intent flag and requests the recognizer to stop. The gate
// transitions toward idle when the device reports stream end.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.intent = false
	g.suspended = false
	g.stopTimersLocked()
	g.mu.Unlock()

	g.recognizer.Stop()
}

// SetAISpeaking suspends capture while the interviewer is audible and
// schedules resumption shortly after it stops, so the system never
// transcribes its own audio.
func (g *Gate) SetAISpeaking(speaking bool) {
	g.mu.Lock()
	if speaking {
		if g.resumeTmr != nil {
			g.resumeTmr.Stop()
			g.resumeTmr = nil
		}
		if !g.intent {
			g.mu.Unlock()
			return
		}
		g.suspended = true
		g.state = StateSuspended
		g.mu.Unlock()
		g.recognizer.Stop()
		return
	}

	if !g.suspended {
		g.mu.Unlock()
		return
	}
	if g.resumeTmr != nil {
		g.resumeTmr.Stop()
	}
	g.resumeTmr = time.AfterFunc(g.ResumeDelay, g.resume)
	g.mu.Unlock()
}

func (g *Gate) resume() {
	g.mu.Lock()
	if !g.intent || !g.suspended {
		g.mu.Unlock()
		return
	}
	g.suspended = false
	g.mu.Unlock()

	g.startRecognizer()
}

func (g *Gate) startRecognizer() {
	if err := g.recognizer.Start(); err != nil {
		if errors.Is(err, ErrAlreadyStarted) {
			g.mu.Lock()
			g.state = StateListening
			g.mu.Unlock()
			return
		}
		log.Error().Err(err).Msg("Failed to start speech recognition")
		return
	}
	g.mu.Lock()
	g.state = StateListening
	g.mu.Unlock()
}

// HandleResult receives a recognition result. Only finalized fragments are
// appended to the transcript and surfaced; interim text is dropped.
func (g *Gate) HandleResult(text string, final bool) {
	if !final {
		return
	}
	g.mu.Lock()
	g.transcript.WriteString(text)
	g.transcript.WriteString(" ")
	cb := g.onFragment
	g.mu.Unlock()

	if cb != nil {
		cb(text)
	}
}

// HandleEnd receives the device's natural end-of-utterance-stream event and
// auto-restarts after a short delay while intent still holds. Devices that
// stop listening after each utterance look continuous this way.
func (g *Gate) HandleEnd() {
	g.mu.Lock()
	g.state = StateIdle
	if !g.intent || g.suspended {
		g.mu.Unlock()
		return
	}
	if g.restartTmr != nil {
		g.restartTmr.Stop()
	}
	g.restartTmr = time.AfterFunc(g.RestartDelay, func() {
		g.mu.Lock()
		ok := g.intent && !g.suspended
		g.mu.Unlock()
		if ok {
			g.startRecognizer()
		}
	})
	g.mu.Unlock()
}

// HandleError receives a classified recognizer error.
func (g *Gate) HandleError(kind ErrorKind, err error) {
	switch kind {
	case ErrPermissionDenied:
		g.mu.Lock()
		g.intent = false
		g.permsDenied = true
		g.state = StateIdle
		g.stopTimersLocked()
		g.mu.Unlock()
		log.Error().Err(err).Msg("Microphone permission denied, capture stopped")
	case ErrNoSpeech, ErrAborted:
		// Expected noise: silence windows and deliberate stops.
	case ErrDeviceUnavailable:
		log.Error().Err(err).Msg("Microphone not available")
	default:
		log.Warn().Err(err).Msg("Speech recognition issue")
	}
}

// State returns the current gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suspended {
		return StateSuspended
	}
	return g.state
}

// Transcript returns the monotonically-growing finalized transcript.
func (g *Gate) Transcript() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transcript.String()
}

func (g *Gate) stopTimersLocked() {
	if g.restartTmr != nil {
		g.restartTmr.Stop()
		g.restartTmr = nil
	}
	if g.resumeTmr != nil {
		g.resumeTmr.Stop()
		g.resumeTmr = nil
	}
}
