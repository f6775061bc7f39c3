// Package antiraid switches a guild into raid mode on join bursts and applies the raid
// mode restrictions to joins and invites.
package antiraid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/raidmode"
	"guardbot/internal/tracker"
	"guardbot/internal/utils"

	"go.uber.org/zap"
)

const (
	Name       = "anti_raid"
	inviteKind = "invite"
)

type Config struct {
	JoinThreshold int
	JoinWindow    time.Duration
	InviteLimit   int
}

type JoinDecision struct {
	Count     int
	Triggered bool
	Active    bool
	Kick      *protection.StepResult
}

type InviteDecision struct {
	Count   int
	Exempt  bool
	Delete  *protection.StepResult
	Timeout *protection.StepResult
}

type Module struct {
	mu        sync.Mutex
	counters  map[string]*utils.JoinCounter
	cfg       Config
	store     protection.ConfigStore
	raid      *raidmode.Engine
	registry  *tracker.Registry
	actuator  protection.Actuator
	directory protection.Directory
	punisher  *remediation.Punisher
	audit     *audit.Logger
	clock     utils.Clock
	logger    *zap.Logger
}

func New(cfg Config, store protection.ConfigStore, raid *raidmode.Engine, registry *tracker.Registry, actuator protection.Actuator, directory protection.Directory, punisher *remediation.Punisher, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if cfg.JoinWindow <= 0 {
		cfg.JoinWindow = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		counters:  make(map[string]*utils.JoinCounter),
		cfg:       cfg,
		store:     store,
		raid:      raid,
		registry:  registry,
		actuator:  actuator,
		directory: directory,
		punisher:  punisher,
		audit:     auditLogger,
		clock:     utils.SystemClock(),
		logger:    logger.Named("antiraid"),
	}
}

func (m *Module) WithClock(clock utils.Clock) {
	m.clock = clock
}

// HandleJoin counts the join, enables automatic raid mode on a burst and kicks the member
// when raid mode is active.
func (m *Module) HandleJoin(ctx context.Context, guildID, userID string) JoinDecision {
	cfg, err := m.store.LoadConfig(ctx, guildID)
	if err != nil {
		m.logger.Error("config load failed", zap.String("guild_id", guildID), zap.Error(err))
		return JoinDecision{}
	}
	if !cfg.Enabled {
		return JoinDecision{}
	}

	now := m.clock.Now()
	counter := m.getCounter(guildID)
	count := counter.Add(now)
	decision := JoinDecision{Count: count}

	state := m.raid.Resolve(ctx, guildID, cfg)
	decision.Active = state.Enabled
	if !state.Enabled && counter.Trip(now, count, m.cfg.JoinThreshold) {
		detail := fmt.Sprintf("type=RAID rule=%djoins/%s value=%djoins", m.cfg.JoinThreshold, m.cfg.JoinWindow, count)
		m.audit.Log(ctx, audit.LevelWarn, guildID, userID, Name, detail)
		if _, err := m.raid.Enable(ctx, guildID, 0); err != nil {
			m.logger.Error("automatic raid mode failed", zap.String("guild_id", guildID), zap.Error(err))
		} else {
			decision.Triggered = true
			decision.Active = true
		}
	}

	if decision.Active && !protection.IsExempt(cfg, userID, "") {
		step := m.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID: guildID,
			UserID:  userID,
			Action:  protection.PunishKick,
			Reason:  "Raid mode is active",
		})
		decision.Kick = &step
	}
	return decision
}

// HandleInvite counts invites per creator. While raid mode is active the invite is
// deleted; an actor over the invite limit is timed out.
func (m *Module) HandleInvite(ctx context.Context, guildID, inviterID, code string) InviteDecision {
	cfg, err := m.store.LoadConfig(ctx, guildID)
	if err != nil {
		m.logger.Error("config load failed", zap.String("guild_id", guildID), zap.Error(err))
		return InviteDecision{}
	}
	if !cfg.Enabled || inviterID == "" {
		return InviteDecision{}
	}
	if m.exempt(ctx, cfg, guildID, inviterID) {
		return InviteDecision{Exempt: true}
	}

	count := m.registry.Record(guildID, inviterID, inviteKind)
	decision := InviteDecision{Count: count}

	if m.raid.Resolve(ctx, guildID, cfg).Enabled {
		ref := protection.EntityRef{Type: protection.EntityInvite, ID: code}
		step := protection.Attempted("delete_invite", m.actuator.DeleteEntity(ctx, guildID, ref, "Raid mode is active"))
		decision.Delete = &step
	}

	if evaluation := protection.Evaluate(count, m.cfg.InviteLimit); evaluation.Exceeded {
		step := m.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID: guildID,
			UserID:  inviterID,
			Action:  protection.PunishTimeout,
			Reason:  fmt.Sprintf("Invite limit reached (%d/%d)", evaluation.Count, evaluation.Limit),
		})
		decision.Timeout = &step
		m.audit.Log(ctx, audit.LevelWarn, guildID, inviterID, "invite_limit", step.String())
	}
	return decision
}

func (m *Module) exempt(ctx context.Context, cfg protection.Config, guildID, userID string) bool {
	ownerID, _ := m.directory.OwnerID(ctx, guildID)
	if protection.IsExempt(cfg, userID, ownerID) {
		return true
	}
	self, err := m.directory.Self(ctx, guildID)
	return err == nil && self != nil && self.UserID == userID
}

func (m *Module) getCounter(guildID string) *utils.JoinCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter := m.counters[guildID]
	if counter == nil {
		counter = utils.NewJoinCounter(m.cfg.JoinWindow)
		m.counters[guildID] = counter
	}
	return counter
}
