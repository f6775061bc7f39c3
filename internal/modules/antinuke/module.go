// Package antinuke turns audited destructive actions into per-actor counts and
// dispatches remediation when a guild's limit is reached.
package antinuke

import (
	"context"
	"time"

	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/tracker"
	"guardbot/internal/utils"

	"go.uber.org/zap"
)

type Status string

const (
	StatusDisabled     Status = "disabled"
	StatusKindDisabled Status = "kind_disabled"
	StatusUnattributed Status = "unattributed"
	StatusStale        Status = "stale"
	StatusExempt       Status = "exempt"
	StatusTracked      Status = "tracked"
	StatusBreach       Status = "breach"
)

// Event is one observed action. SubjectID is the role or channel created or deleted, or
// the banned or kicked user.
type Event struct {
	GuildID   string
	Kind      protection.ActionKind
	SubjectID string
}

type Decision struct {
	Status     Status
	ActorID    string
	Evaluation protection.Evaluation
	Outcome    *remediation.Outcome
}

type Module struct {
	store      protection.ConfigStore
	source     protection.AuditSource
	directory  protection.Directory
	registry   *tracker.Registry
	dispatcher *remediation.Dispatcher
	clock      utils.Clock
	maxAge     time.Duration
	logger     *zap.Logger
}

func New(store protection.ConfigStore, source protection.AuditSource, directory protection.Directory, registry *tracker.Registry, dispatcher *remediation.Dispatcher, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		store:      store,
		source:     source,
		directory:  directory,
		registry:   registry,
		dispatcher: dispatcher,
		clock:      utils.SystemClock(),
		maxAge:     5 * time.Second,
		logger:     logger.Named("antinuke"),
	}
}

func (m *Module) WithClock(clock utils.Clock) {
	m.clock = clock
}

// SetAttributionMaxAge sets how old an audit entry may be and still be attributed to the
// event being handled.
func (m *Module) SetAttributionMaxAge(maxAge time.Duration) {
	if maxAge > 0 {
		m.maxAge = maxAge
	}
}

func (m *Module) Handle(ctx context.Context, event Event) Decision {
	cfg, err := m.store.LoadConfig(ctx, event.GuildID)
	if err != nil {
		m.logger.Error("config load failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return Decision{Status: StatusDisabled}
	}
	if !cfg.Enabled || !cfg.AntiNuke.Enabled {
		return Decision{Status: StatusDisabled}
	}
	if !cfg.AntiNuke.Actions.Enabled(event.Kind) {
		return Decision{Status: StatusKindDisabled}
	}

	entry, err := m.source.FetchRecentEntry(ctx, event.GuildID, event.Kind)
	if err != nil {
		m.logger.Warn("audit log fetch failed",
			zap.String("guild_id", event.GuildID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
		return Decision{Status: StatusUnattributed}
	}
	if entry == nil || entry.ExecutorID == "" {
		return Decision{Status: StatusUnattributed}
	}
	if m.clock.Now().Sub(entry.CreatedAt) > m.maxAge {
		return Decision{Status: StatusStale, ActorID: entry.ExecutorID}
	}

	actorID := entry.ExecutorID
	if m.exempt(ctx, cfg, event.GuildID, actorID) {
		return Decision{Status: StatusExempt, ActorID: actorID}
	}

	count := m.registry.Record(event.GuildID, actorID, string(event.Kind))
	evaluation := protection.Evaluate(count, cfg.AntiNuke.Thresholds.For(event.Kind))
	if !evaluation.Exceeded {
		return Decision{Status: StatusTracked, ActorID: actorID, Evaluation: evaluation}
	}

	m.logger.Warn("anti-nuke threshold reached",
		zap.String("guild_id", event.GuildID),
		zap.String("actor_id", actorID),
		zap.String("kind", string(event.Kind)),
		zap.Int("count", evaluation.Count),
		zap.Int("limit", evaluation.Limit))

	outcome := m.dispatcher.Remediate(ctx, cfg, remediation.Breach{
		GuildID:   event.GuildID,
		ActorID:   actorID,
		Kind:      event.Kind,
		SubjectID: event.SubjectID,
		Count:     evaluation.Count,
		Limit:     evaluation.Limit,
	})
	return Decision{Status: StatusBreach, ActorID: actorID, Evaluation: evaluation, Outcome: &outcome}
}

// exempt covers the guild owner, the whitelist and the bot itself, whose own reversals
// must not count against it.
func (m *Module) exempt(ctx context.Context, cfg protection.Config, guildID, actorID string) bool {
	ownerID, err := m.directory.OwnerID(ctx, guildID)
	if err != nil {
		m.logger.Warn("owner lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	if protection.IsExempt(cfg, actorID, ownerID) {
		return true
	}
	self, err := m.directory.Self(ctx, guildID)
	return err == nil && self != nil && self.UserID == actorID
}
