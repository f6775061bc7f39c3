// Package warnings records moderator warnings and escalates through the guild's
// auto-punish ladder.
package warnings

import (
	"context"
	"fmt"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"go.uber.org/zap"
)

type Store interface {
	AddWarn(ctx context.Context, warn storage.Warn) (storage.Warn, int, error)
	ListWarns(ctx context.Context, guildID, userID string) ([]storage.Warn, error)
	CountWarns(ctx context.Context, guildID, userID string) (int, error)
	DeleteWarn(ctx context.Context, guildID, warnID string) error
	ClearWarns(ctx context.Context, guildID, userID string) (int64, error)
}

type Result struct {
	Warn  storage.Warn
	Count int
	// Escalation is set when the new count matched a rung of the ladder.
	Escalation *protection.StepResult
	Rung       protection.PunishAt
}

type Service struct {
	store    Store
	configs  protection.ConfigStore
	punisher *remediation.Punisher
	audit    *audit.Logger
	logger   *zap.Logger
}

func New(store Store, configs protection.ConfigStore, punisher *remediation.Punisher, auditLogger *audit.Logger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		configs:  configs,
		punisher: punisher,
		audit:    auditLogger,
		logger:   logger.Named("warnings"),
	}
}

// Warn stores a warning and applies the ladder rung whose count equals the new total.
func (s *Service) Warn(ctx context.Context, guildID, userID, modID, reason string) (Result, error) {
	warn, count, err := s.store.AddWarn(ctx, storage.Warn{
		GuildID: guildID,
		UserID:  userID,
		ModID:   modID,
		Reason:  reason,
	})
	if err != nil {
		return Result{}, fmt.Errorf("add warn: %w", err)
	}
	result := Result{Warn: warn, Count: count}
	s.audit.Log(ctx, audit.LevelInfo, guildID, userID, "warn_added", fmt.Sprintf("by=%s count=%d reason=%s", modID, count, reason))

	cfg, err := s.configs.LoadConfig(ctx, guildID)
	if err != nil {
		s.logger.Error("config load failed", zap.String("guild_id", guildID), zap.Error(err))
		return result, nil
	}
	if !cfg.AutoPunish.Enabled {
		return result, nil
	}
	rung, ok := cfg.AutoPunish.Rung(count)
	if !ok {
		return result, nil
	}

	step := s.punisher.Apply(ctx, cfg, remediation.Penalty{
		GuildID:  guildID,
		UserID:   userID,
		Action:   rung.Action,
		Duration: time.Duration(rung.DurationMinutes) * time.Minute,
		Reason:   fmt.Sprintf("Auto-punish: reached %d warnings", count),
	})
	result.Escalation = &step
	result.Rung = rung
	s.audit.Log(ctx, audit.LevelWarn, guildID, userID, "auto_punish", fmt.Sprintf("warns=%d %s", count, step))
	return result, nil
}

func (s *Service) List(ctx context.Context, guildID, userID string) ([]storage.Warn, error) {
	return s.store.ListWarns(ctx, guildID, userID)
}

func (s *Service) Count(ctx context.Context, guildID, userID string) (int, error) {
	return s.store.CountWarns(ctx, guildID, userID)
}

func (s *Service) Remove(ctx context.Context, guildID, warnID, modID string) error {
	if err := s.store.DeleteWarn(ctx, guildID, warnID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.LevelInfo, guildID, modID, "warn_removed", "warn="+warnID)
	return nil
}

func (s *Service) Clear(ctx context.Context, guildID, userID, modID string) (int64, error) {
	removed, err := s.store.ClearWarns(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	s.audit.Log(ctx, audit.LevelInfo, guildID, userID, "warns_cleared", fmt.Sprintf("by=%s removed=%d", modID, removed))
	return removed, nil
}
