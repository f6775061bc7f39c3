package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"guardbot/internal/protection"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryConfigStore struct {
	configs map[string]protection.Config
	loads   int
}

func (m *memoryConfigStore) LoadConfig(_ context.Context, guildID string) (protection.Config, error) {
	m.loads++
	if cfg, ok := m.configs[guildID]; ok {
		return cfg, nil
	}
	return protection.DefaultConfig(), nil
}

func (m *memoryConfigStore) UpdateConfig(_ context.Context, guildID string, mutate func(*protection.Config) error) error {
	cfg, ok := m.configs[guildID]
	if !ok {
		cfg = protection.DefaultConfig()
	}
	if err := mutate(&cfg); err != nil {
		return err
	}
	m.configs[guildID] = cfg
	return nil
}

func newTestCache(t *testing.T) (*ConfigCache, *memoryConfigStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	backing := &memoryConfigStore{configs: map[string]protection.Config{}}
	return NewConfigCache(backing, client, time.Minute, nil), backing, mr
}

func TestConfigCacheReadThrough(t *testing.T) {
	cache, backing, mr := newTestCache(t)
	ctx := context.Background()

	first, err := cache.LoadConfig(ctx, "g1")
	require.NoError(t, err)
	second, err := cache.LoadConfig(ctx, "g1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.loads)
	assert.True(t, mr.Exists(configCacheKeyPrefix+"g1"))
	assert.Equal(t, time.Minute, mr.TTL(configCacheKeyPrefix+"g1"))
}

func TestConfigCacheInvalidatesOnUpdate(t *testing.T) {
	cache, backing, mr := newTestCache(t)
	ctx := context.Background()

	_, err := cache.LoadConfig(ctx, "g1")
	require.NoError(t, err)

	err = cache.UpdateConfig(ctx, "g1", func(cfg *protection.Config) error {
		cfg.AntiNuke.Thresholds.Bans = 9
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(configCacheKeyPrefix+"g1"))

	cfg, err := cache.LoadConfig(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.AntiNuke.Thresholds.Bans)
	assert.Equal(t, 2, backing.loads)
}

func TestConfigCacheRejectedMutationKeepsCache(t *testing.T) {
	cache, _, mr := newTestCache(t)
	ctx := context.Background()

	_, err := cache.LoadConfig(ctx, "g1")
	require.NoError(t, err)

	boom := errors.New("rejected")
	err = cache.UpdateConfig(ctx, "g1", func(*protection.Config) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.True(t, mr.Exists(configCacheKeyPrefix+"g1"))
}

func TestConfigCacheFallsBackWhenRedisDown(t *testing.T) {
	cache, backing, mr := newTestCache(t)
	mr.Close()

	cfg, err := cache.LoadConfig(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, protection.DefaultConfig(), cfg)
	assert.Equal(t, 1, backing.loads)
}
