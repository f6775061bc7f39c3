package utils

import (
	"sync"
	"time"
)

// JoinCounter counts member joins for one guild inside a rolling window and remembers
// when the burst threshold last fired so a single raid trips it once.
type JoinCounter struct {
	mu      sync.Mutex
	window  time.Duration
	entries []time.Time
	firedAt time.Time
}

func NewJoinCounter(window time.Duration) *JoinCounter {
	return &JoinCounter{window: window}
}

func (c *JoinCounter) Add(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.window)
	idx := 0
	for _, entry := range c.entries {
		if entry.After(cutoff) {
			break
		}
		idx++
	}
	c.entries = c.entries[idx:]
	c.entries = append(c.entries, now)
	return len(c.entries)
}

// Trip reports whether a burst of at least threshold joins is in the window and has not
// already fired within the same window.
func (c *JoinCounter) Trip(now time.Time, count, threshold int) bool {
	if threshold <= 0 || count < threshold {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.firedAt.IsZero() && now.Sub(c.firedAt) < c.window {
		return false
	}
	c.firedAt = now
	return true
}
