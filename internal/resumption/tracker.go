// Package resumption keeps the newest server-issued session resumption handle.
package resumption

import "sync"

// Tracker holds at most one resumption handle.
type Tracker struct {
	mu     sync.Mutex
	handle string
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Update replaces the held handle when the server marks it resumable.
// It reports whether the handle changed.
func (t *Tracker) Update(handle string, resumable bool) bool {
	if !resumable || handle == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == handle {
		return false
	}
	t.handle = handle
	return true
}

// Handle returns the current handle, or "" when none is held.
func (t *Tracker) Handle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

// Available reports whether a handle is held.
func (t *Tracker) Available() bool {
	return t.Handle() != ""
}

// Reset discards the handle so the next session starts fresh.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handle = ""
}
