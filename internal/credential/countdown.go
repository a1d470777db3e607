// Package credential tracks the lifetime of the ephemeral token held by a session.
package credential

import (
	"sync"
	"time"

	"livemic/internal/clock"
	"livemic/internal/domain"
)

const tickInterval = time.Second

// Countdown holds at most one credential and reports its remaining lifetime
// once per second. Reaching zero always invokes onExpire.
//
// Start and Stop must not be called while holding a lock that onTick or
// onExpire acquire; both callbacks run outside the countdown's own lock.
type Countdown struct {
	clock    clock.Clock
	onTick   func(remaining time.Duration)
	onExpire func()

	mu         sync.Mutex
	credential domain.Credential
	held       bool
	timer      clock.Timer
	generation uint64
}

func NewCountdown(c clock.Clock, onTick func(time.Duration), onExpire func()) *Countdown {
	if c == nil {
		c = clock.Real()
	}
	if onTick == nil {
		onTick = func(time.Duration) {}
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Countdown{clock: c, onTick: onTick, onExpire: onExpire}
}

// Start replaces any held credential and begins counting down immediately.
func (c *Countdown) Start(credential domain.Credential) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.credential = credential
	c.held = true
	generation := c.generation
	c.mu.Unlock()

	c.tick(generation)
}

// Stop discards the credential and clears the timer without calling onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.held = false
	c.credential = domain.Credential{}
}

// Remaining returns the time left on the held credential.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		return 0
	}
	return c.credential.Remaining(c.clock.Now())
}

// Credential returns the held credential, if any.
func (c *Countdown) Credential() (domain.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential, c.held
}

func (c *Countdown) tick(generation uint64) {
	c.mu.Lock()
	if generation != c.generation || !c.held {
		c.mu.Unlock()
		return
	}

	remaining := c.credential.Remaining(c.clock.Now())
	if remaining <= 0 {
		c.held = false
		c.timer = nil
		c.credential = domain.Credential{}
		c.mu.Unlock()

		c.onTick(0)
		c.onExpire()
		return
	}

	next := tickInterval
	if remaining < next {
		next = remaining
	}
	c.timer = c.clock.AfterFunc(next, func() { c.tick(generation) })
	c.mu.Unlock()

	c.onTick(remaining)
}

// Seconds rounds a remaining duration up to whole seconds for display.
func Seconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
