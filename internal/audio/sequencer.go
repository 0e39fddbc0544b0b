// Package audio sequences interviewer speech playback. Segments arrive as
// binary frames from the interview stream and must be played strictly in
// arrival order with no overlap, exposing a single "is speaking" signal the
// capture gate keys off.
package audio

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Player renders one audio segment and returns when playback completes.
// A decode or device failure is non-fatal to the queue.
type Player interface {
	Play(ctx context.Context, segment []byte) error
}

// Sequencer owns the audio output discipline: at most one segment audible at
// any instant, FIFO across segments.
type Sequencer struct {
	player     Player
	onSpeaking func(bool)

	mu      sync.Mutex
	queue   [][]byte
	playing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSequencer creates a sequencer over the given player. onSpeaking is
// invoked with true when a segment starts and false when it completes; it may
// be nil.
func NewSequencer(player Player, onSpeaking func(bool)) *Sequencer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		player:     player,
		onSpeaking: onSpeaking,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Enqueue plays the segment immediately if nothing is playing, otherwise
// appends it to the queue.
func (s *Sequencer) Enqueue(segment []byte) {
	s.mu.Lock()
	if s.playing {
		s.queue = append(s.queue, segment)
		depth := len(s.queue)
		s.mu.Unlock()
		log.Debug().Int("queueDepth", depth).Msg("Audio segment queued")
		return
	}
	s.playing = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.playLoop(segment)
}

// playLoop plays the given segment and then drains the queue in order.
func (s *Sequencer) playLoop(segment []byte) {
	defer s.wg.Done()

	for {
		s.setSpeaking(true)
		if err := s.player.Play(s.ctx, segment); err != nil {
			log.Error().Err(err).Int("segmentBytes", len(segment)).Msg("Audio playback failed, dropping segment")
		}
		s.setSpeaking(false)

		s.mu.Lock()
		if len(s.queue) == 0 || s.ctx.Err() != nil {
			s.playing = false
			s.mu.Unlock()
			return
		}
		segment = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func (s *Sequencer) setSpeaking(v bool) {
	if s.onSpeaking != nil {
		s.onSpeaking(v)
	}
}

// Speaking reports whether a segment is currently playing or queued playback
// is in progress.
func (s *Sequencer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// QueueDepth returns the number of segments waiting behind the current one.
func (s *Sequencer) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops playback and waits for the play loop to exit. Queued segments
// are discarded.
func (s *Sequencer) Close() {
	s.cancel()
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.wg.Wait()
}
