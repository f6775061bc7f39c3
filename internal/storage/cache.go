package storage

import (
	"context"
	"fmt"
	"time"

	"guardbot/internal/protection"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const configCacheKeyPrefix = "protection:config:"

// ConfigCache is a read-through Redis cache in front of a protection.ConfigStore.
// Redis failures fall back to the backing store.
type ConfigCache struct {
	next   protection.ConfigStore
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewConfigCache(next protection.ConfigStore, client rueidis.Client, ttl time.Duration, logger *zap.Logger) *ConfigCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.Named("config_cache"),
	}
}

func (c *ConfigCache) LoadConfig(ctx context.Context, guildID string) (protection.Config, error) {
	key := configCacheKeyPrefix + guildID

	raw, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
	if err == nil {
		var cfg protection.Config
		if err := sonic.UnmarshalString(raw, &cfg); err == nil {
			return cfg, nil
		}
		c.logger.Warn("discarding undecodable cached config", zap.String("guild_id", guildID))
	} else if !rueidis.IsRedisNil(err) {
		c.logger.Warn("config cache read failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	cfg, err := c.next.LoadConfig(ctx, guildID)
	if err != nil {
		return protection.Config{}, err
	}
	c.store(ctx, guildID, cfg)
	return cfg, nil
}

func (c *ConfigCache) UpdateConfig(ctx context.Context, guildID string, mutate func(*protection.Config) error) error {
	if err := c.next.UpdateConfig(ctx, guildID, mutate); err != nil {
		return err
	}
	return c.Invalidate(ctx, guildID)
}

func (c *ConfigCache) Invalidate(ctx context.Context, guildID string) error {
	key := configCacheKeyPrefix + guildID
	if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
		c.logger.Warn("config cache invalidation failed", zap.String("guild_id", guildID), zap.Error(err))
		return fmt.Errorf("invalidate config cache for %s: %w", guildID, err)
	}
	return nil
}

func (c *ConfigCache) store(ctx context.Context, guildID string, cfg protection.Config) {
	encoded, err := sonic.MarshalString(cfg)
	if err != nil {
		return
	}
	key := configCacheKeyPrefix + guildID
	if err := c.client.Do(ctx, c.client.B().Set().Key(key).Value(encoded).Ex(c.ttl).Build()).Error(); err != nil {
		c.logger.Warn("config cache write failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}
