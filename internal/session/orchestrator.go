// Package session composes the connection manager, capture gate, playback
// sequencer, proctoring, presence monitoring and metrics into one interview
// lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/talentscout/sessiond/internal/api"
	"github.com/talentscout/sessiond/internal/audio"
	"github.com/talentscout/sessiond/internal/capture"
	"github.com/talentscout/sessiond/internal/conn"
	"github.com/talentscout/sessiond/internal/metrics"
	"github.com/talentscout/sessiond/internal/presence"
	"github.com/talentscout/sessiond/internal/proctor"
	"github.com/talentscout/sessiond/internal/storage"
	"github.com/talentscout/sessiond/internal/telemetry"
	"github.com/talentscout/sessiond/pkg/models"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateConfiguring State = iota
	StateStarting
	StateRunning
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	// DefaultProctorGrace is how long after start focus violations are
	// ignored.
	DefaultProctorGrace = 5 * time.Second

	// DefaultForceEndWindow is how long after the time-up signal the
	// session waits for the interviewer to wrap up before ending itself.
	DefaultForceEndWindow = 30 * time.Second
)

var (
	ErrNotConfigurable = errors.New("session already started")
	ErrNotRunning      = errors.New("session is not running")
)

// Stream is the outbound side of the interview connection.
type Stream interface {
	Connect()
	Disconnect()
	SendTranscript(text string)
	SendCode(code, language string)
	SendTimeUp()
}

// Reporter generates the final report for an ended session.
type Reporter interface {
	EndInterview(ctx context.Context, sessionID string) (report, analysis string, err error)
}

// DeviceHandle is an acquired camera plus microphone pair.
type DeviceHandle interface {
	Release()
}

// Devices acquires the camera and microphone as one combined request.
// Denial of either device fails the whole acquisition.
type Devices interface {
	Acquire(ctx context.Context) (DeviceHandle, error)
}

// RecordSink persists a finished interview.
type RecordSink interface {
	Save(ctx context.Context, rec models.SavedInterview) error
}

// Events are optional observer hooks. Callbacks fire outside the
// orchestrator lock and may be invoked from timer goroutines.
type Events struct {
	OnState     func(State)
	OnViolation func(count int)
	OnWarning   func(kind string)
}

// Options wires a session together.
type Options struct {
	Config    models.SessionConfig
	SessionID string
	Analysis  string // resume analysis text from the upload step

	// BackendURL is the http(s) base of the interview service. Used to
	// build the default Stream and Reporter when those are left nil.
	BackendURL string

	Stream     Stream   // nil builds a websocket manager against BackendURL
	Reporter   Reporter // nil builds an HTTP client against BackendURL
	Devices    Devices
	Display    proctor.Display // optional, fullscreen is best effort
	Recognizer capture.Recognizer
	Detector   presence.Detector // optional, presence degrades without it
	Player     audio.Player      // nil paces playback on the wall clock

	Records   RecordSink         // optional, nil skips persistence entirely
	Telemetry *telemetry.Metrics // nil builds instruments from the global meter provider
	Events    Events
}

// Orchestrator drives one interview attempt through
// configuring, starting, running, ending and ended.
type Orchestrator struct {
	mu    sync.Mutex
	state State

	cfg       models.SessionConfig
	sessionID string
	analysis  string

	stream    Stream
	reporter  Reporter
	devices   Devices
	display   proctor.Display
	records   RecordSink
	telemetry *telemetry.Metrics
	events    Events

	gate      *capture.Gate
	proctor   *proctor.Proctor
	presence  *presence.Monitor
	engine    *metrics.Engine
	debouncer *metrics.Debouncer
	sequencer *audio.Sequencer

	handle DeviceHandle

	transcript  []models.TranscriptEntry
	submissions []models.CodeSubmission

	remaining  int
	ticker     *time.Ticker
	tickerDone chan struct{}
	timeUpSent bool
	forceEnd   *time.Timer

	aiStoppedAt time.Time
	cheating    bool
	absent      bool
	report      string

	everConnected atomic.Bool

	// TickInterval, ProctorGrace and ForceEndWindow default to one second
	// and the package constants; overridable before Start (tests shorten
	// them).
	TickInterval   time.Duration
	ProctorGrace   time.Duration
	ForceEndWindow time.Duration
}

// New builds an orchestrator in the configuring state.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.SessionID == "" {
		return nil, errors.New("session id required")
	}
	if opts.BackendURL == "" && (opts.Stream == nil || opts.Reporter == nil) {
		return nil, errors.New("backend url required when no stream or reporter is injected")
	}

	o := &Orchestrator{
		state:          StateConfiguring,
		cfg:            opts.Config,
		sessionID:      opts.SessionID,
		analysis:       opts.Analysis,
		stream:         opts.Stream,
		reporter:       opts.Reporter,
		devices:        opts.Devices,
		display:        opts.Display,
		records:        opts.Records,
		telemetry:      opts.Telemetry,
		events:         opts.Events,
		engine:         metrics.NewEngine(),
		remaining:      opts.Config.DurationMinutes * 60,
		TickInterval:   time.Second,
		ProctorGrace:   DefaultProctorGrace,
		ForceEndWindow: DefaultForceEndWindow,
	}

	if o.telemetry == nil {
		m, err := telemetry.New()
		if err != nil {
			return nil, err
		}
		o.telemetry = m
	}
	if o.stream == nil {
		o.stream = conn.NewManager(opts.BackendURL, opts.SessionID, opts.Config, conn.Callbacks{
			OnAIMessage: o.HandleAIMessage,
			OnAudio:     o.HandleAudio,
			OnStatus:    o.onStreamStatus,
			OnError:     func(string) { o.warn("connection") },
		})
	}
	if o.reporter == nil {
		o.reporter = api.NewClient(opts.BackendURL)
	}
	player := opts.Player
	if player == nil {
		player = &audio.ClockPlayer{}
	}

	o.sequencer = audio.NewSequencer(player, o.onAISpeaking)
	o.gate = capture.NewGate(opts.Recognizer, o.onFragment)
	o.debouncer = metrics.NewDebouncer(metrics.DefaultDebounceWait, o.onResponse)
	o.proctor = proctor.New(o.onProctorViolation, o.onProctorTerminate)
	o.presence = presence.NewMonitor(opts.Detector, presence.Callbacks{
		OnNoFaceDetected:        func() { o.warn("no_face") },
		OnNoFacePersist:         o.onAbsencePersist,
		OnMultipleFacesDetected: func() { o.warn("multiple_faces") },
		OnMultipleFacesPersist:  o.onCheatingPersist,
	})
	return o, nil
}

// Start moves the session from configuring to running. Device denial fails
// the start and leaves the session configurable.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateConfiguring {
		o.mu.Unlock()
		return ErrNotConfigurable
	}
	o.state = StateStarting
	o.mu.Unlock()
	o.notifyState(StateStarting)

	handle, err := o.devices.Acquire(ctx)
	if err != nil {
		o.mu.Lock()
		o.state = StateConfiguring
		o.mu.Unlock()
		o.notifyState(StateConfiguring)
		return fmt.Errorf("acquire devices: %w", err)
	}

	o.mu.Lock()
	o.handle = handle
	o.mu.Unlock()

	if o.display != nil {
		proctor.EnterFullscreen(o.display)
	}

	o.presence.LoadModels(ctx)
	o.presence.Start(ctx)
	o.gate.Start()
	o.stream.Connect()
	o.proctor.Start(o.ProctorGrace)

	o.mu.Lock()
	o.state = StateRunning
	o.ticker = time.NewTicker(o.TickInterval)
	o.tickerDone = make(chan struct{})
	go o.countdown(o.ticker, o.tickerDone)
	o.mu.Unlock()

	o.notifyState(StateRunning)
	if o.telemetry != nil {
		o.telemetry.SessionStarted(ctx, string(o.cfg.Type))
	}
	log.Info().
		Str("session", o.sessionID).
		Str("type", string(o.cfg.Type)).
		Int("duration_min", o.cfg.DurationMinutes).
		Msg("Interview started")
	return nil
}

// countdown ticks once per second. At zero it sends the time-up signal once
// and arms the force-end timer.
func (o *Orchestrator) countdown(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			o.mu.Lock()
			if o.state != StateRunning {
				o.mu.Unlock()
				return
			}
			if o.remaining > 0 {
				o.remaining--
			}
			expired := o.remaining == 0 && !o.timeUpSent
			if expired {
				o.timeUpSent = true
				o.forceEnd = time.AfterFunc(o.ForceEndWindow, o.autoEnd)
			}
			o.mu.Unlock()

			if expired {
				log.Info().Str("session", o.sessionID).Msg("Time up, asking interviewer to conclude")
				o.stream.SendTimeUp()
			}
		}
	}
}

// autoEnd fires when the force-end window elapses with the session still
// running.
func (o *Orchestrator) autoEnd() {
	o.mu.Lock()
	running := o.state == StateRunning
	o.mu.Unlock()
	if !running {
		return
	}
	log.Info().Str("session", o.sessionID).Msg("Force-ending after time-up window")
	if err := o.End(context.Background()); err != nil {
		log.Error().Err(err).Str("session", o.sessionID).Msg("Auto-end failed")
	}
}

// End stops every component and requests the report. On report failure the
// session stays in ending and End may be called again.
func (o *Orchestrator) End(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning && o.state != StateEnding {
		o.mu.Unlock()
		return ErrNotRunning
	}
	first := o.state == StateRunning
	o.state = StateEnding
	o.mu.Unlock()

	if first {
		o.notifyState(StateEnding)
		o.shutdownComponents()
	}

	report, analysis, err := o.reporter.EndInterview(ctx, o.sessionID)
	if err != nil {
		log.Error().Err(err).Str("session", o.sessionID).Msg("Report generation failed, session can be ended again")
		return fmt.Errorf("end interview: %w", err)
	}
	if analysis != "" {
		o.analysis = analysis
	}

	o.finalize(ctx, report)
	return nil
}

// shutdownComponents tears down timers and collaborators. Safe to call once
// per session; every component's stop is itself idempotent.
func (o *Orchestrator) shutdownComponents() {
	o.mu.Lock()
	if o.ticker != nil {
		o.ticker.Stop()
		close(o.tickerDone)
		o.ticker = nil
	}
	if o.forceEnd != nil {
		o.forceEnd.Stop()
		o.forceEnd = nil
	}
	o.mu.Unlock()

	o.debouncer.Stop()
	o.gate.Stop()
	o.proctor.Stop()
	o.presence.Stop()
	o.sequencer.Close()
	o.stream.Disconnect()
}

// finalize moves to ended, persists the record unless practice mode, and
// releases the devices.
func (o *Orchestrator) finalize(ctx context.Context, report string) {
	o.mu.Lock()
	o.state = StateEnded
	o.report = report
	transcript := renderTranscript(o.transcript)
	handle := o.handle
	o.handle = nil
	o.mu.Unlock()

	o.notifyState(StateEnded)
	if o.telemetry != nil {
		o.telemetry.SessionEnded(ctx)
	}

	if handle != nil {
		handle.Release()
	}
	if o.display != nil {
		if err := o.display.ExitFullscreen(); err != nil {
			log.Warn().Err(err).Msg("Exit fullscreen failed")
		}
	}

	if o.cfg.PracticeMode {
		log.Info().Str("session", o.sessionID).Msg("Practice mode, not saving")
		return
	}
	if o.records == nil {
		return
	}

	rec := storage.NewRecord(report, o.analysis, transcript, o.engine.Snapshot())
	if err := o.records.Save(ctx, rec); err != nil {
		log.Error().Err(err).Str("session", o.sessionID).Msg("Saving interview record failed")
		return
	}
	if o.telemetry != nil {
		o.telemetry.RecordSaved(ctx)
	}
	log.Info().Str("session", o.sessionID).Str("record", rec.ID).Msg("Interview record saved")
}

// terminate converges a forced end onto the ending transition.
func (o *Orchestrator) terminate(reason, marker string) {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	if marker != "" {
		o.transcript = append(o.transcript, models.TranscriptEntry{
			Speaker: models.SpeakerSystem,
			Text:    marker,
			At:      time.Now(),
		})
	}
	o.mu.Unlock()

	log.Warn().Str("session", o.sessionID).Str("reason", reason).Msg("Terminating interview")
	if o.telemetry != nil {
		o.telemetry.SessionTerminated(context.Background(), reason)
	}

	// End is run off the caller's goroutine: termination can originate from
	// inside a component's own callback, and shutdown joins those
	// components.
	go func() {
		if err := o.End(context.Background()); err != nil {
			log.Error().Err(err).Str("session", o.sessionID).Msg("Forced end failed")
		}
	}()
}

// HandleAIMessage records an inbound interviewer message.
func (o *Orchestrator) HandleAIMessage(content string) {
	o.mu.Lock()
	o.transcript = append(o.transcript, models.TranscriptEntry{
		Speaker: models.SpeakerAI,
		Text:    content,
		At:      time.Now(),
	})
	o.mu.Unlock()
}

// HandleAudio forwards an inbound audio segment to the sequencer.
func (o *Orchestrator) HandleAudio(segment []byte) {
	o.sequencer.Enqueue(segment)
}

// SubmitCode relays a code snapshot to the interviewer.
func (o *Orchestrator) SubmitCode(code, language string) error {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.submissions = append(o.submissions, models.CodeSubmission{
		Language: language,
		Code:     code,
		At:       time.Now(),
	})
	o.mu.Unlock()

	o.stream.SendCode(code, language)
	return nil
}

// onFragment receives finalized speech fragments from the capture gate.
func (o *Orchestrator) onFragment(text string) {
	o.engine.ObserveFragment(text)
	o.debouncer.Push(text)
}

// onResponse fires when the debouncer decides a response is complete. The
// latency sample is measured from the moment the interviewer stopped
// speaking; without that reference the sample carries no latency.
func (o *Orchestrator) onResponse(text string) {
	o.mu.Lock()
	var latency float64
	hasLatency := !o.aiStoppedAt.IsZero()
	if hasLatency {
		latency = time.Since(o.aiStoppedAt).Seconds()
		o.aiStoppedAt = time.Time{}
	}
	o.transcript = append(o.transcript, models.TranscriptEntry{
		Speaker: models.SpeakerCandidate,
		Text:    text,
		At:      time.Now(),
	})
	o.mu.Unlock()

	o.engine.RecordResponse(text, latency, hasLatency)
	o.stream.SendTranscript(text)
}

// onAISpeaking mirrors the sequencer's speaking flag into the capture gate
// and timestamps the end of interviewer speech for latency measurement.
func (o *Orchestrator) onAISpeaking(speaking bool) {
	if !speaking {
		o.mu.Lock()
		o.aiStoppedAt = time.Now()
		o.mu.Unlock()
	}
	o.gate.SetAISpeaking(speaking)
}

// onStreamStatus watches the default stream. A connecting transition after
// the first successful connect is a reconnect attempt.
func (o *Orchestrator) onStreamStatus(status models.ConnectionStatus) {
	switch status {
	case models.ConnConnected:
		o.everConnected.Store(true)
	case models.ConnConnecting:
		if o.everConnected.Load() && o.telemetry != nil {
			o.telemetry.Reconnect(context.Background())
		}
	}
}

func (o *Orchestrator) onProctorViolation(count int) {
	log.Warn().Str("session", o.sessionID).Int("count", count).Msg("Focus violation")
	if o.telemetry != nil {
		o.telemetry.Violation(context.Background())
	}
	if o.events.OnViolation != nil {
		o.events.OnViolation(count)
	}
}

func (o *Orchestrator) onProctorTerminate() {
	o.terminate("focus_violations", "")
}

func (o *Orchestrator) onCheatingPersist() {
	o.mu.Lock()
	o.cheating = true
	o.mu.Unlock()
	o.terminate("cheating",
		"CHEATING DETECTED: Interview terminated - Multiple persons detected in camera for extended period")
}

func (o *Orchestrator) onAbsencePersist() {
	o.mu.Lock()
	o.absent = true
	o.mu.Unlock()
	o.terminate("absence",
		"ABSENCE DETECTED: Interview terminated - No face detected in camera for extended period")
}

func (o *Orchestrator) warn(kind string) {
	log.Warn().Str("session", o.sessionID).Str("kind", kind).Msg("Presence warning")
	if o.events.OnWarning != nil {
		o.events.OnWarning(kind)
	}
}

func (o *Orchestrator) notifyState(s State) {
	if o.events.OnState != nil {
		o.events.OnState(s)
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Remaining returns the countdown in seconds.
func (o *Orchestrator) Remaining() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

// Snapshot returns the current derived metrics.
func (o *Orchestrator) Snapshot() models.Stats {
	return o.engine.Snapshot()
}

// ViolationCount returns the focus violation counter.
func (o *Orchestrator) ViolationCount() int {
	return o.proctor.ViolationCount()
}

// Flags reports whether cheating or absence terminated the session.
func (o *Orchestrator) Flags() (cheating, absent bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cheating, o.absent
}

// Report returns the generated report text, empty until ended.
func (o *Orchestrator) Report() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.report
}

// Transcript returns a copy of the conversation history.
func (o *Orchestrator) Transcript() []models.TranscriptEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.TranscriptEntry, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// Proctor exposes the proctoring state machine so transport callbacks can
// feed blur and hidden events into it.
func (o *Orchestrator) Proctor() *proctor.Proctor {
	return o.proctor
}

// renderTranscript flattens the conversation into the line format stored in
// records: interviewer lines prefixed AI, candidate lines prefixed You,
// system markers verbatim.
func renderTranscript(entries []models.TranscriptEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Speaker {
		case models.SpeakerAI:
			lines = append(lines, "AI: "+e.Text)
		case models.SpeakerCandidate:
			lines = append(lines, "You: "+e.Text)
		default:
			lines = append(lines, e.Text)
		}
	}
	return strings.Join(lines, "\n")
}
