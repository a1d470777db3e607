package usecase

import (
	"sync"
	"time"

	"livemic/internal/clock"
)

const defaultVideoInterval = 500 * time.Millisecond

// videoPump invokes tick on a fixed cadence until stopped. Ticks never
// overlap: the next one is armed after the previous returns.
type videoPump struct {
	clock    clock.Clock
	interval time.Duration
	tick     func()

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func startVideoPump(c clock.Clock, interval time.Duration, tick func()) *videoPump {
	if interval <= 0 {
		interval = defaultVideoInterval
	}
	p := &videoPump{clock: c, interval: interval, tick: tick}
	p.mu.Lock()
	p.armLocked()
	p.mu.Unlock()
	return p
}

func (p *videoPump) armLocked() {
	p.timer = p.clock.AfterFunc(p.interval, p.fire)
}

func (p *videoPump) fire() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.tick()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.armLocked()
	}
}

// Stop cancels the pending tick. It is safe to call more than once.
func (p *videoPump) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
