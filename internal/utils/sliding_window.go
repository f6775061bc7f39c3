package utils

import (
	"sync"
	"time"
)

// SlidingWindow keeps the timestamps observed during the last window, oldest first.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

// Add records a hit at now and returns the number of hits still inside the window.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) Window() time.Duration {
	return w.window
}

// pruneLocked drops every hit at or before now-window. Hits are appended in order,
// so the scan stops at the first one still inside.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	if idx == 0 {
		return
	}
	if idx == len(w.hits) {
		w.hits = nil
		return
	}
	w.hits = append(w.hits[:0:0], w.hits[idx:]...)
}
