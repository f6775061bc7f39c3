package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, 1, window.Add(now))
	window.Add(now.Add(500 * time.Millisecond))
	assert.Equal(t, 2, window.Count(now.Add(1*time.Second)))
	assert.Equal(t, 0, window.Count(now.Add(3*time.Second)))
}

func TestSlidingWindowDropsOnlyExpiredHits(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	window.Add(now)
	window.Add(now.Add(5 * time.Second))
	assert.Equal(t, 2, window.Add(now.Add(11*time.Second)))
}
