// Package remediation reverses and punishes detected abuse. Every step is attempted once,
// independently, and reported as a protection.StepResult.
package remediation

import (
	"context"
	"fmt"
	"strings"

	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const EventBreach = "anti_nuke_breach"

// Breach is a threshold crossing for one actor and action kind. SubjectID is the role,
// channel or banned user the triggering event touched.
type Breach struct {
	GuildID   string
	ActorID   string
	Kind      protection.ActionKind
	SubjectID string
	Count     int
	Limit     int
}

type Outcome struct {
	Reversal   protection.StepResult
	Punishment protection.StepResult
	Audit      protection.StepResult
}

func (o Outcome) Steps() []protection.StepResult {
	return []protection.StepResult{o.Reversal, o.Punishment, o.Audit}
}

func (o Outcome) String() string {
	parts := make([]string, 0, 3)
	for _, step := range o.Steps() {
		parts = append(parts, step.String())
	}
	return strings.Join(parts, "; ")
}

type Dispatcher struct {
	actuator protection.Actuator
	punisher *Punisher
	audit    *audit.Logger
	logger   *zap.Logger
}

func NewDispatcher(actuator protection.Actuator, punisher *Punisher, auditLogger *audit.Logger, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		actuator: actuator,
		punisher: punisher,
		audit:    auditLogger,
		logger:   logger.Named("remediation"),
	}
}

// Remediate reverses the triggering action and punishes the actor concurrently, then
// appends an audit entry. A failed step never prevents the others.
func (d *Dispatcher) Remediate(ctx context.Context, cfg protection.Config, breach Breach) Outcome {
	var outcome Outcome
	reason := fmt.Sprintf("Anti-nuke: %s limit reached (%d/%d)", breach.Kind, breach.Count, breach.Limit)

	p := pool.New()
	p.Go(func() {
		outcome.Reversal = d.reverse(ctx, breach, reason)
	})
	p.Go(func() {
		action := cfg.AntiNuke.Action
		if action == "" {
			action = protection.PunishBan
		}
		outcome.Punishment = d.punisher.Apply(ctx, cfg, Penalty{
			GuildID: breach.GuildID,
			UserID:  breach.ActorID,
			Action:  action,
			Reason:  reason,
		})
	})
	p.Wait()

	outcome.Audit = protection.Attempted("audit", d.audit.Record(ctx, storage.AuditLog{
		GuildID: breach.GuildID,
		UserID:  breach.ActorID,
		Level:   audit.LevelCrit,
		Event:   EventBreach,
		Kind:    string(breach.Kind),
		Count:   breach.Count,
		Details: fmt.Sprintf("limit=%d %s; %s", breach.Limit, outcome.Reversal, outcome.Punishment),
	}))

	for _, step := range outcome.Steps() {
		if step.Attempted && step.Err != nil {
			d.logger.Warn("remediation step failed",
				zap.String("guild_id", breach.GuildID),
				zap.String("actor_id", breach.ActorID),
				zap.String("step", step.Step),
				zap.Error(step.Err))
		}
	}
	return outcome
}

func (d *Dispatcher) reverse(ctx context.Context, breach Breach, reason string) protection.StepResult {
	const step = "reversal"
	if !breach.Kind.Reversible() {
		return protection.Skipped(step, "no reversal for "+string(breach.Kind))
	}
	if breach.SubjectID == "" {
		return protection.Skipped(step, "unknown subject")
	}

	switch breach.Kind {
	case protection.KindRoleCreate:
		ref := protection.EntityRef{Type: protection.EntityRole, ID: breach.SubjectID}
		return protection.Attempted(step, d.actuator.DeleteEntity(ctx, breach.GuildID, ref, reason))
	case protection.KindChannelCreate:
		ref := protection.EntityRef{Type: protection.EntityChannel, ID: breach.SubjectID}
		return protection.Attempted(step, d.actuator.DeleteEntity(ctx, breach.GuildID, ref, reason))
	case protection.KindBan:
		return protection.Attempted(step, d.actuator.Unban(ctx, breach.GuildID, breach.SubjectID, reason))
	default:
		return protection.Skipped(step, "no reversal for "+string(breach.Kind))
	}
}
