package raidmode

import (
	"context"
	"errors"
	"testing"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/protection/protectiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *protectiontest.ConfigStore, *protectiontest.Clock, *protectiontest.LogSink) {
	t.Helper()
	store := protectiontest.NewConfigStore(protection.DefaultConfig())
	sink := &protectiontest.LogSink{}
	engine := New(store, audit.NewLogger(sink, nil), nil)
	clock := protectiontest.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	engine.WithClock(clock)
	return engine, store, clock, sink
}

func TestRaidModeExpiresLazily(t *testing.T) {
	engine, store, clock, sink := newEngine(t)
	ctx := context.Background()

	state, err := engine.Enable(ctx, "g1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, state.Auto)
	require.NotNil(t, state.EndsAt)

	active, err := engine.IsActive(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, active)

	clock.Advance(10 * time.Minute)
	active, err = engine.IsActive(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, active)

	cfg, err := store.LoadConfig(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, cfg.RaidMode.Enabled)
	assert.Len(t, sink.Events("raid_mode_expired"), 1)
}

func TestRaidModeWithoutDurationIsAutomatic(t *testing.T) {
	engine, _, clock, _ := newEngine(t)
	ctx := context.Background()

	state, err := engine.Enable(ctx, "g1", 0)
	require.NoError(t, err)
	assert.True(t, state.Auto)
	assert.Nil(t, state.EndsAt)
	assert.Equal(t, clock.Now(), *state.EnabledAt)

	clock.Advance(48 * time.Hour)
	active, err := engine.IsActive(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, engine.Disable(ctx, "g1"))
	active, err = engine.IsActive(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRaidModeReEnableIsNotClearedByStaleExpiry(t *testing.T) {
	engine, store, clock, _ := newEngine(t)
	ctx := context.Background()

	_, err := engine.Enable(ctx, "g1", time.Minute)
	require.NoError(t, err)
	stale, err := store.LoadConfig(ctx, "g1")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = engine.Enable(ctx, "g1", time.Hour)
	require.NoError(t, err)

	assert.False(t, engine.Resolve(ctx, "g1", stale).Enabled)
	active, err := engine.IsActive(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRaidModeLoadFailure(t *testing.T) {
	engine, store, _, _ := newEngine(t)
	store.LoadErr = errors.New("db down")

	active, err := engine.IsActive(context.Background(), "g1")
	require.Error(t, err)
	assert.False(t, active)
}
