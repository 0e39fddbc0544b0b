// Package presence monitors the camera feed for face count anomalies. Two
// independent conditions - nobody in frame, and more than one person in
// frame - each carry their own persistence timer: a first-detection warning
// fires immediately, and a sustained-violation callback fires once the
// condition has held for the persistence threshold.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Detector counts faces in the current video frame. LoadModels is called
// once before sampling begins; a failed load degrades the monitor rather
// than blocking the interview.
type Detector interface {
	LoadModels(ctx context.Context) error
	CountFaces(ctx context.Context) (int, error)
}

const (
	// DefaultSampleInterval is how often the frame is sampled.
	DefaultSampleInterval = time.Second
	// DefaultPersistThreshold is how long a condition must hold before the
	// persist callback starts firing.
	DefaultPersistThreshold = 5 * time.Second
)

// Callbacks are the presence event hooks. First-detection hooks fire once
// per episode; persist hooks fire on every sample past the threshold until
// the condition clears (the caller terminates on the first firing).
type Callbacks struct {
	OnNoFaceDetected        func()
	OnNoFacePersist         func()
	OnMultipleFacesDetected func()
	OnMultipleFacesPersist  func()
}

// Monitor samples the detector on an interval and tracks both conditions.
type Monitor struct {
	detector Detector
	cb       Callbacks

	SampleInterval   time.Duration
	PersistThreshold time.Duration

	mu        sync.Mutex
	loaded    bool
	degraded  bool
	faceCount int

	noFaceSince   time.Time
	noFaceWarned  bool
	multiSince    time.Time
	multiWarned   bool
	noFaceWarning bool
	multiWarning  bool

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// NewMonitor creates a presence monitor over the detector.
func NewMonitor(detector Detector, cb Callbacks) *Monitor {
	return &Monitor{
		detector:         detector,
		cb:               cb,
		SampleInterval:   DefaultSampleInterval,
		PersistThreshold: DefaultPersistThreshold,
		now:              time.Now,
	}
}

// LoadModels loads the detection model. Idempotent and best-effort: a load
// failure marks the monitor loaded-but-degraded so the interview is never
// blocked on this dependency; degraded sampling reports nothing.
func (m *Monitor) LoadModels(ctx context.Context) {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	err := m.detector.LoadModels(ctx)

	m.mu.Lock()
	m.loaded = true
	m.degraded = err != nil
	m.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to load face detection models, presence monitoring degraded")
		return
	}
	log.Info().Msg("Face detection models loaded")
}

// Start begins periodic sampling. No-op when models were never loaded.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if !m.loaded || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample(ctx)
			}
		}
	}()
}

// Stop halts sampling and resets both condition timers.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	m.resetNoFaceLocked()
	m.resetMultiLocked()
	m.mu.Unlock()
}

func (m *Monitor) sample(ctx context.Context) {
	m.mu.Lock()
	degraded := m.degraded
	m.mu.Unlock()
	if degraded {
		return
	}

	count, err := m.detector.CountFaces(ctx)
	if err != nil {
		// Frame not ready or detector hiccup; skip the tick.
		log.Debug().Err(err).Msg("Face detection sample failed")
		return
	}
	m.Observe(count)
}

// Observe evaluates one face-count sample against both conditions. Exposed
// for deterministic tick-driven evaluation.
func (m *Monitor) Observe(count int) {
	now := m.now()

	m.mu.Lock()
	m.faceCount = count

	var fire []func()
	switch {
	case count > 1:
		// Multiple faces cancel an in-flight no-face timer.
		m.resetNoFaceLocked()
		if m.multiSince.IsZero() {
			m.multiSince = now
			m.multiWarning = true
			if !m.multiWarned {
				m.multiWarned = true
				if m.cb.OnMultipleFacesDetected != nil {
					fire = append(fire, m.cb.OnMultipleFacesDetected)
				}
			}
		} else if now.Sub(m.multiSince) >= m.PersistThreshold {
			if m.cb.OnMultipleFacesPersist != nil {
				fire = append(fire, m.cb.OnMultipleFacesPersist)
			}
		}
	case count == 0:
		// An empty frame cancels an in-flight multiple-face timer.
		m.resetMultiLocked()
		if m.noFaceSince.IsZero() {
			m.noFaceSince = now
			m.noFaceWarning = true
			if !m.noFaceWarned {
				m.noFaceWarned = true
				if m.cb.OnNoFaceDetected != nil {
					fire = append(fire, m.cb.OnNoFaceDetected)
				}
			}
		} else if now.Sub(m.noFaceSince) >= m.PersistThreshold {
			if m.cb.OnNoFacePersist != nil {
				fire = append(fire, m.cb.OnNoFacePersist)
			}
		}
	default:
		// Exactly one face: both timers reset and both first-occurrence
		// triggers re-arm.
		m.resetNoFaceLocked()
		m.resetMultiLocked()
	}
	m.mu.Unlock()

	for _, f := range fire {
		f()
	}
}

func (m *Monitor) resetNoFaceLocked() {
	m.noFaceSince = time.Time{}
	m.noFaceWarned = false
	m.noFaceWarning = false
}

func (m *Monitor) resetMultiLocked() {
	m.multiSince = time.Time{}
	m.multiWarned = false
	m.multiWarning = false
}

// FaceCount returns the most recent sample.
func (m *Monitor) FaceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faceCount
}

// Warnings reports the active condition flags (noFace, multipleFaces).
func (m *Monitor) Warnings() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noFaceWarning, m.multiWarning
}

// Degraded reports whether model load failed and sampling is inert.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}
