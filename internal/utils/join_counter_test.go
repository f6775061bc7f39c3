package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinCounter(t *testing.T) {
	counter := NewJoinCounter(5 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, 1, counter.Add(now))
	counter.Add(now.Add(1 * time.Second))
	counter.Add(now.Add(2 * time.Second))
	assert.Equal(t, 4, counter.Add(now.Add(3*time.Second)))
	assert.Equal(t, 2, counter.Add(now.Add(7*time.Second)))
}

func TestJoinCounterTripsOncePerWindow(t *testing.T) {
	counter := NewJoinCounter(10 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, counter.Trip(now, 2, 3))
	assert.True(t, counter.Trip(now, 3, 3))
	assert.False(t, counter.Trip(now.Add(time.Second), 4, 3))
	assert.True(t, counter.Trip(now.Add(11*time.Second), 3, 3))
}
