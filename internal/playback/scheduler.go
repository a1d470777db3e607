// Package playback schedules received audio chunks on a single gapless timeline.
package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"livemic/internal/clock"
	"livemic/internal/pcm"
	"livemic/internal/ports"
)

// ErrClosed is returned when scheduling on a closed scheduler.
var ErrClosed = errors.New("playback scheduler closed")

// Scheduler hands chunks to a sink back to back, never overlapping and never
// earlier than their arrival.
type Scheduler struct {
	clock  clock.Clock
	sink   ports.AudioSink
	logger *slog.Logger

	mu       sync.Mutex
	cursor   time.Time
	nextID   uint64
	inflight map[uint64]*scheduledChunk
	closed   bool
}

type scheduledChunk struct {
	start time.Time
	end   time.Time
	play  clock.Timer
	done  clock.Timer
}

// NewScheduler creates a scheduler writing to sink.
func NewScheduler(c clock.Clock, sink ports.AudioSink, logger *slog.Logger) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:    c,
		sink:     sink,
		logger:   logger,
		inflight: make(map[uint64]*scheduledChunk),
	}
}

// Schedule queues chunk at max(cursor, now) and returns its start time.
func (s *Scheduler) Schedule(chunk pcm.AudioChunk) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return time.Time{}, ErrClosed
	}

	now := s.clock.Now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	duration := chunk.Duration()
	end := start.Add(duration)

	s.nextID++
	id := s.nextID
	entry := &scheduledChunk{start: start, end: end}
	s.inflight[id] = entry
	entry.play = s.clock.AfterFunc(start.Sub(now), func() {
		s.playChunk(id, chunk)
	})
	entry.done = s.clock.AfterFunc(end.Sub(now), func() {
		s.finishChunk(id)
	})
	s.cursor = end

	return start, nil
}

func (s *Scheduler) playChunk(id uint64, chunk pcm.AudioChunk) {
	s.mu.Lock()
	_, ok := s.inflight[id]
	s.mu.Unlock()
	if !ok || len(chunk.Samples) == 0 {
		return
	}
	if err := s.sink.Play(chunk); err != nil {
		s.logger.Warn("audio sink rejected chunk", "error", err, "frames", chunk.Frames())
	}
}

func (s *Scheduler) finishChunk(id uint64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Interrupt drops every queued and playing chunk and rewinds the cursor to now.
func (s *Scheduler) Interrupt() error {
	s.mu.Lock()
	s.stopAllLocked()
	s.cursor = s.clock.Now()
	s.mu.Unlock()

	return s.sink.Flush()
}

// Close interrupts playback, closes the sink and refuses further scheduling.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopAllLocked()
	s.mu.Unlock()

	return s.sink.Close()
}

func (s *Scheduler) stopAllLocked() {
	for id, entry := range s.inflight {
		entry.play.Stop()
		entry.done.Stop()
		delete(s.inflight, id)
	}
}

// Pending returns the number of chunks not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Cursor returns the time at which the next chunk would start.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
