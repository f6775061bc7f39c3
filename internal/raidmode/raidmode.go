// Package raidmode keeps the per-guild raid-mode posture inside the protection config.
// Expiry is evaluated when the state is read.
package raidmode

import (
	"context"
	"fmt"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/utils"

	"go.uber.org/zap"
)

type Engine struct {
	store  protection.ConfigStore
	audit  *audit.Logger
	clock  utils.Clock
	logger *zap.Logger
}

func New(store protection.ConfigStore, auditLogger *audit.Logger, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		audit:  auditLogger,
		clock:  utils.SystemClock(),
		logger: logger.Named("raidmode"),
	}
}

func (e *Engine) WithClock(clock utils.Clock) {
	e.clock = clock
}

// Enable turns raid mode on. A zero duration marks the activation automatic and
// indefinite; it lasts until Disable.
func (e *Engine) Enable(ctx context.Context, guildID string, duration time.Duration) (protection.RaidMode, error) {
	now := e.clock.Now()
	var state protection.RaidMode
	err := e.store.UpdateConfig(ctx, guildID, func(cfg *protection.Config) error {
		cfg.RaidMode = protection.RaidMode{Enabled: true, EnabledAt: &now}
		if duration > 0 {
			endsAt := now.Add(duration)
			cfg.RaidMode.EndsAt = &endsAt
		} else {
			cfg.RaidMode.Auto = true
		}
		state = cfg.RaidMode
		return nil
	})
	if err != nil {
		return protection.RaidMode{}, fmt.Errorf("enable raid mode: %w", err)
	}

	details := "indefinite"
	if duration > 0 {
		details = "for " + duration.String()
	}
	e.log(ctx, audit.LevelWarn, guildID, "raid_mode_enabled", details)
	return state, nil
}

func (e *Engine) Disable(ctx context.Context, guildID string) error {
	if err := e.store.UpdateConfig(ctx, guildID, func(cfg *protection.Config) error {
		cfg.RaidMode = protection.RaidMode{}
		return nil
	}); err != nil {
		return fmt.Errorf("disable raid mode: %w", err)
	}
	e.log(ctx, audit.LevelInfo, guildID, "raid_mode_disabled", "manual")
	return nil
}

func (e *Engine) IsActive(ctx context.Context, guildID string) (bool, error) {
	state, err := e.Status(ctx, guildID)
	if err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// Status returns the current raid-mode state, disabling it first if its end time has
// passed.
func (e *Engine) Status(ctx context.Context, guildID string) (protection.RaidMode, error) {
	cfg, err := e.store.LoadConfig(ctx, guildID)
	if err != nil {
		return protection.RaidMode{}, fmt.Errorf("load raid mode: %w", err)
	}
	return e.resolve(ctx, guildID, cfg.RaidMode), nil
}

// Resolve applies lazy expiry to a state the caller already loaded.
func (e *Engine) Resolve(ctx context.Context, guildID string, cfg protection.Config) protection.RaidMode {
	return e.resolve(ctx, guildID, cfg.RaidMode)
}

func (e *Engine) resolve(ctx context.Context, guildID string, state protection.RaidMode) protection.RaidMode {
	if !state.Enabled || state.EndsAt == nil {
		return state
	}
	if e.clock.Now().Before(*state.EndsAt) {
		return state
	}

	expiredAt := *state.EndsAt
	err := e.store.UpdateConfig(ctx, guildID, func(cfg *protection.Config) error {
		if cfg.RaidMode.EndsAt != nil && cfg.RaidMode.EndsAt.Equal(expiredAt) {
			cfg.RaidMode = protection.RaidMode{}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("raid mode expiry write failed", zap.String("guild_id", guildID), zap.Error(err))
	} else {
		e.log(ctx, audit.LevelInfo, guildID, "raid_mode_expired", "ended at "+expiredAt.UTC().Format(time.RFC3339))
	}
	return protection.RaidMode{}
}

func (e *Engine) log(ctx context.Context, level, guildID, event, details string) {
	if e.audit != nil {
		e.audit.Log(ctx, level, guildID, "", event, details)
	}
}
