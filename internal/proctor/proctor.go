// Package proctor tracks window-focus and visibility violations during an
// interview. A grace period after start absorbs the focus churn caused by
// permission dialogs and the fullscreen prompt; afterwards every blur or
// hidden event counts, and crossing the threshold terminates the session.
package proctor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is the proctoring state.
type State int

const (
	StateInactive State = iota
	StateGracePeriod
	StateActive
)

func (s State) String() string {
	switch s {
	case StateGracePeriod:
		return "grace-period"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// TerminateThreshold is the violation count above which the interview is
// terminated.
const TerminateThreshold = 3

// Display is the fullscreen capability of the hosting surface. Failure is
// logged and never blocks interview start.
type Display interface {
	EnterFullscreen() error
	ExitFullscreen() error
}

// Proctor is the violation state machine over {inactive, grace-period, active}.
type Proctor struct {
	onViolation func(count int)
	onTerminate func()

	mu         sync.Mutex
	state      State
	count      int
	terminated bool
	graceTmr   *time.Timer
}

// New creates a proctor. onViolation fires on every counted violation with
// the running count; onTerminate fires exactly once per threshold crossing.
func New(onViolation func(count int), onTerminate func()) *Proctor {
	return &Proctor{
		onViolation: onViolation,
		onTerminate: onTerminate,
	}
}

// Start enters the grace period; after grace elapses violations are tracked.
// Events arriving while inactive or in grace are ignored.
func (p *Proctor) Start(grace time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graceTmr != nil {
		p.graceTmr.Stop()
	}
	p.state = StateGracePeriod
	p.graceTmr = time.AfterFunc(grace, func() {
		p.mu.Lock()
		if p.state == StateGracePeriod {
			p.state = StateActive
		}
		p.mu.Unlock()
		log.Info().Msg("Proctoring active, violations will now be tracked")
	})
	log.Info().Dur("grace", grace).Msg("Proctoring started with grace period")
}

// Stop resets the counter to zero and returns to inactive.
func (p *Proctor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graceTmr != nil {
		p.graceTmr.Stop()
		p.graceTmr = nil
	}
	p.state = StateInactive
	p.count = 0
	p.terminated = false
	log.Info().Msg("Proctoring stopped")
}

// HandleBlur records a window-blur event (alt-tab, clicking outside).
func (p *Proctor) HandleBlur() {
	p.trigger("blur")
}

// HandleHidden records a document-hidden event (tab switch, leaving
// fullscreen).
func (p *Proctor) HandleHidden() {
	p.trigger("hidden")
}

func (p *Proctor) trigger(source string) {
	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		log.Debug().Str("source", source).Msg("Proctoring not yet active, ignoring potential violation")
		return
	}
	p.count++
	count := p.count
	terminate := count > TerminateThreshold && !p.terminated
	if terminate {
		p.terminated = true
	}
	onViolation := p.onViolation
	onTerminate := p.onTerminate
	p.mu.Unlock()

	log.Warn().Str("source", source).Int("count", count).Msg("Focus violation")
	if onViolation != nil {
		onViolation(count)
	}
	if terminate && onTerminate != nil {
		onTerminate()
	}
}

// State returns the current proctoring state.
func (p *Proctor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ViolationCount returns the current counter value.
func (p *Proctor) ViolationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// EnterFullscreen is a best-effort request against the display. Failure is
// logged and does not block interview start.
func EnterFullscreen(d Display) {
	if d == nil {
		return
	}
	if err := d.EnterFullscreen(); err != nil {
		log.Error().Err(err).Msg("Fullscreen request failed")
	}
}
