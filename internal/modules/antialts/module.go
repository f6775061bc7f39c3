// Package antialts screens joining members whose accounts are younger than the guild's
// minimum age.
package antialts

import (
	"context"
	"fmt"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/storage"
	"guardbot/internal/utils"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

const Name = "anti_alts"

type Recorder interface {
	AddSuspiciousAccount(ctx context.Context, record storage.SuspiciousAccount) error
}

type Decision struct {
	Suspicious bool
	AgeDays    int
	Mode       protection.Punishment
	Step       *protection.StepResult
}

type Module struct {
	store    protection.ConfigStore
	recorder Recorder
	punisher *remediation.Punisher
	audit    *audit.Logger
	clock    utils.Clock
	logger   *zap.Logger
}

func New(store protection.ConfigStore, recorder Recorder, punisher *remediation.Punisher, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		store:    store,
		recorder: recorder,
		punisher: punisher,
		audit:    auditLogger,
		clock:    utils.SystemClock(),
		logger:   logger.Named("antialts"),
	}
}

func (m *Module) WithClock(clock utils.Clock) {
	m.clock = clock
}

// AccountCreated decodes the creation time embedded in a user ID.
func AccountCreated(userID string) (time.Time, error) {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse user id %q: %w", userID, err)
	}
	return id.Time(), nil
}

// AgeDays returns the whole days between createdAt and now.
func AgeDays(createdAt, now time.Time) int {
	if now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt) / (24 * time.Hour))
}

// HandleJoin evaluates one member join. Exactly one configured mode is applied to a
// suspicious account.
func (m *Module) HandleJoin(ctx context.Context, guildID, userID string, createdAt time.Time) Decision {
	cfg, err := m.store.LoadConfig(ctx, guildID)
	if err != nil {
		m.logger.Error("config load failed", zap.String("guild_id", guildID), zap.Error(err))
		return Decision{}
	}
	if !cfg.Enabled || !cfg.AntiAlts.Enabled || cfg.AntiAlts.MinAccountAgeDays <= 0 {
		return Decision{}
	}

	age := AgeDays(createdAt, m.clock.Now())
	if age >= cfg.AntiAlts.MinAccountAgeDays {
		return Decision{AgeDays: age}
	}

	mode := cfg.AntiAlts.Mode
	if mode == "" {
		mode = protection.PunishFlag
	}
	decision := Decision{Suspicious: true, AgeDays: age, Mode: mode}

	if err := m.recorder.AddSuspiciousAccount(ctx, storage.SuspiciousAccount{
		GuildID:        guildID,
		UserID:         userID,
		AccountAgeDays: age,
		Action:         string(mode),
	}); err != nil {
		m.logger.Error("suspicious account record failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	detail := fmt.Sprintf("account age %dd below minimum %dd, mode=%s", age, cfg.AntiAlts.MinAccountAgeDays, mode)
	switch mode {
	case protection.PunishBan, protection.PunishKick, protection.PunishTimeout, protection.PunishQuarantine:
		step := m.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID:  guildID,
			UserID:   userID,
			Action:   mode,
			Duration: time.Duration(cfg.AntiAlts.TimeoutMinutes) * time.Minute,
			Reason:   fmt.Sprintf("Account younger than %d days", cfg.AntiAlts.MinAccountAgeDays),
		})
		decision.Step = &step
		detail += "; " + step.String()
	}
	m.audit.Log(ctx, audit.LevelWarn, guildID, userID, Name, detail)
	return decision
}
