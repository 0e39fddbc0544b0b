// Package capture gates continuous speech-to-text capture.
package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// fakeRecognizer records start/stop calls.
type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func (r *fakeRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return r.startErr
}

func (r *fakeRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *fakeRecognizer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

// GateSuite is a test suite for capture gate state transitions.
type GateSuite struct {
	suite.Suite
	recognizer *fakeRecognizer
	gate       *Gate

	mu        sync.Mutex
	fragments []string
}

func (s *GateSuite) SetupTest() {
	s.recognizer = &fakeRecognizer{}
	s.fragments = nil
	s.gate = NewGate(s.recognizer, func(text string) {
		s.mu.Lock()
		s.fragments = append(s.fragments, text)
		s.mu.Unlock()
	})
	s.gate.RestartDelay = 10 * time.Millisecond
	s.gate.ResumeDelay = 20 * time.Millisecond
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) TestStartStop() {
	s.Equal(StateIdle, s.gate.State())

	s.gate.Start()
	s.Equal(StateListening, s.gate.State())

	s.gate.Stop()
	s.gate.HandleEnd()
	s.Equal(StateIdle, s.gate.State())

	starts, stops := s.recognizer.counts()
	s.Equal(1, starts)
	s.Equal(1, stops)
}

func (s *GateSuite) TestAutoRestartWhileIntentHolds() {
	s.gate.Start()
	s.gate.HandleEnd()

	s.Eventually(func() bool {
		starts, _ := s.recognizer.counts()
		return starts == 2
	}, time.Second, 5*time.Millisecond)
}

func (s *GateSuite) TestNoRestartAfterStop() {
	s.gate.Start()
	s.gate.Stop()
	s.gate.HandleEnd()

	time.Sleep(50 * time.Millisecond)
	starts, _ := s.recognizer.counts()
	s.Equal(1, starts)
}

func (s *GateSuite) TestSuspendWhileAISpeaking() {
	s.gate.Start()

	s.gate.SetAISpeaking(true)
	s.Equal(StateSuspended, s.gate.State())
	_, stops := s.recognizer.counts()
	s.Equal(1, stops)

	// End-of-stream during suspension must not schedule a restart.
	s.gate.HandleEnd()
	time.Sleep(30 * time.Millisecond)
	starts, _ := s.recognizer.counts()
	s.Equal(1, starts)

	// Resume happens only after the tail-drain delay.
	s.gate.SetAISpeaking(false)
	s.Equal(StateSuspended, s.gate.State())
	s.Eventually(func() bool { return s.gate.State() == StateListening }, time.Second, 5*time.Millisecond)
}

func (s *GateSuite) TestSpeakingAgainCancelsPendingResume() {
	s.gate.Start()
	s.gate.SetAISpeaking(true)
	s.gate.SetAISpeaking(false)
	s.gate.SetAISpeaking(true) // next segment started inside the delay

	time.Sleep(50 * time.Millisecond)
	s.Equal(StateSuspended, s.gate.State())
	starts, _ := s.recognizer.counts()
	s.Equal(1, starts)
}

func (s *GateSuite) TestOnlyFinalFragmentsAppend() {
	s.gate.Start()
	s.gate.HandleResult("I was say", false)
	s.gate.HandleResult("I was saying that", true)
	s.gate.HandleResult("interim again", false)

	s.Equal("I was saying that ", s.gate.Transcript())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal([]string{"I was saying that"}, s.fragments)
}

func (s *GateSuite) TestPermissionDenialIsFatal() {
	s.gate.Start()
	s.gate.HandleError(ErrPermissionDenied, errors.New("not allowed"))
	s.gate.HandleEnd()

	time.Sleep(30 * time.Millisecond)
	starts, _ := s.recognizer.counts()
	s.Equal(1, starts)

	// Even an explicit Start is refused after denial.
	s.gate.Start()
	starts, _ = s.recognizer.counts()
	s.Equal(1, starts)
}

func (s *GateSuite) TestTransientErrorsAreSwallowed() {
	s.gate.Start()
	s.gate.HandleError(ErrNoSpeech, errors.New("no-speech"))
	s.gate.HandleError(ErrAborted, errors.New("aborted"))
	s.gate.HandleError(ErrDeviceUnavailable, errors.New("audio-capture"))

	s.Equal(StateListening, s.gate.State())
}

func (s *GateSuite) TestAlreadyStartedTolerated() {
	s.recognizer.startErr = ErrAlreadyStarted
	s.gate.Start()
	s.Equal(StateListening, s.gate.State())
}
