// Package tracker counts actions per guild, actor and action kind inside a sliding window.
package tracker

import (
	"context"
	"sync"
	"time"

	"guardbot/internal/utils"

	"go.uber.org/zap"
)

// Registry owns one sliding window per (guild, actor, kind). Windows are created on the
// first observed action and removed by Sweep once every hit has aged out.
type Registry struct {
	mu      sync.Mutex
	window  time.Duration
	clock   utils.Clock
	windows map[string]*utils.SlidingWindow
	logger  *zap.Logger
}

func New(window time.Duration, logger *zap.Logger) *Registry {
	if window <= 0 {
		window = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		window:  window,
		clock:   utils.SystemClock(),
		windows: make(map[string]*utils.SlidingWindow),
		logger:  logger,
	}
}

func (r *Registry) WithClock(clock utils.Clock) {
	r.clock = clock
}

func (r *Registry) Window() time.Duration {
	return r.window
}

// Record appends a hit at the current time and returns how many hits the key holds
// after pruning.
func (r *Registry) Record(guildID, actorID, kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key(guildID, actorID, kind)
	window := r.windows[key]
	if window == nil {
		window = utils.NewSlidingWindow(r.window)
		r.windows[key] = window
	}
	return window.Add(r.clock.Now())
}

// Count returns the current in-window count without recording a hit.
func (r *Registry) Count(guildID, actorID, kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	window := r.windows[Key(guildID, actorID, kind)]
	if window == nil {
		return 0
	}
	return window.Count(r.clock.Now())
}

// Reset forgets every window of an actor in a guild.
func (r *Registry) Reset(guildID, actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := guildID + ":" + actorID + ":"
	for key := range r.windows {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(r.windows, key)
		}
	}
}

// Sweep evicts keys whose windows are empty and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	removed := 0
	for key, window := range r.windows {
		if window.Count(now) == 0 {
			delete(r.windows, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// Run sweeps on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				r.logger.Debug("swept idle windows", zap.Int("removed", removed), zap.Int("remaining", r.Len()))
			}
		}
	}
}

func Key(guildID, actorID, kind string) string {
	return guildID + ":" + actorID + ":" + kind
}
