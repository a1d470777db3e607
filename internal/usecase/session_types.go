package usecase

import (
	"context"
	"sync"

	"livemic/internal/credential"
	"livemic/internal/playback"
	"livemic/internal/ports"
)

// activeSession holds the resources of one Start attempt. Fields other than
// the immutable ones are guarded by LiveController.mu.
type activeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	countdown *credential.Countdown
	conn      ports.LiveConnection
	mic       ports.AudioSession
	camera    ports.CameraSession
	speaker   *playback.Scheduler
	video     *videoPump

	workers  sync.WaitGroup
	finished chan struct{}
}

func newActiveSession(parent context.Context, id string) *activeSession {
	ctx, cancel := context.WithCancel(parent)
	return &activeSession{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
}

// sessionResources is what teardown detaches from an activeSession.
type sessionResources struct {
	countdown *credential.Countdown
	conn      ports.LiveConnection
	mic       ports.AudioSession
	camera    ports.CameraSession
	speaker   *playback.Scheduler
	video     *videoPump
}

// detachLocked moves every resource out of the session. Callers hold the
// controller mutex.
func (s *activeSession) detachLocked() sessionResources {
	res := sessionResources{
		countdown: s.countdown,
		conn:      s.conn,
		mic:       s.mic,
		camera:    s.camera,
		speaker:   s.speaker,
		video:     s.video,
	}
	s.countdown = nil
	s.conn = nil
	s.mic = nil
	s.camera = nil
	s.speaker = nil
	s.video = nil
	return res
}
