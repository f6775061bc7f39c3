package remediation

import (
	"context"
	"fmt"
	"time"

	"guardbot/internal/protection"

	"go.uber.org/zap"
)

const quarantineNotice = "You have been placed in quarantine by the server's protection system. A moderator will review your account."

// Penalty describes a punitive action against one member.
type Penalty struct {
	GuildID  string
	UserID   string
	Action   protection.Punishment
	Duration time.Duration
	Reason   string
}

// Punisher applies a single punishment after checking the bot's permission and role
// position against the target.
type Punisher struct {
	actuator  protection.Actuator
	directory protection.Directory
	logger    *zap.Logger
}

func NewPunisher(actuator protection.Actuator, directory protection.Directory, logger *zap.Logger) *Punisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Punisher{actuator: actuator, directory: directory, logger: logger.Named("punisher")}
}

// Apply runs the penalty. cfg supplies the quarantine role. A denied or inapplicable
// penalty returns a result that was not attempted.
func (p *Punisher) Apply(ctx context.Context, cfg protection.Config, penalty Penalty) protection.StepResult {
	step := string(penalty.Action)
	permission := protection.RequiredPermission(penalty.Action)
	if permission == 0 {
		return protection.Skipped(step, "not a punitive action")
	}

	self, err := p.directory.Self(ctx, penalty.GuildID)
	if err != nil || self == nil {
		return p.denied(penalty, step, fmt.Sprintf("bot member unavailable: %v", err))
	}
	target, err := p.directory.Member(ctx, penalty.GuildID, penalty.UserID)
	if err != nil {
		return p.denied(penalty, step, fmt.Sprintf("member lookup failed: %v", err))
	}

	if target == nil {
		if penalty.Action != protection.PunishBan {
			return protection.Skipped(step, "target is not a member")
		}
		if !self.Has(permission) {
			return p.denied(penalty, step, "missing ban permission")
		}
	} else if !protection.CanPunish(self, target, permission) {
		return p.denied(penalty, step, "insufficient permission or role position")
	}

	switch penalty.Action {
	case protection.PunishBan:
		return protection.Attempted(step, p.actuator.Ban(ctx, penalty.GuildID, penalty.UserID, penalty.Reason))
	case protection.PunishKick:
		return protection.Attempted(step, p.actuator.Kick(ctx, penalty.GuildID, penalty.UserID, penalty.Reason))
	case protection.PunishTimeout:
		duration := penalty.Duration
		if duration <= 0 {
			duration = 10 * time.Minute
		}
		return protection.Attempted(step, p.actuator.Timeout(ctx, penalty.GuildID, penalty.UserID, duration, penalty.Reason))
	case protection.PunishQuarantine:
		if cfg.Quarantine.RoleID == "" {
			return protection.Skipped(step, "quarantine role not configured")
		}
		err := p.actuator.SetRoles(ctx, penalty.GuildID, penalty.UserID, []string{cfg.Quarantine.RoleID})
		if err == nil {
			if dmErr := p.actuator.SendDM(ctx, penalty.UserID, quarantineNotice); dmErr != nil {
				p.logger.Debug("quarantine dm failed", zap.String("user_id", penalty.UserID), zap.Error(dmErr))
			}
		}
		return protection.Attempted(step, err)
	default:
		return protection.Skipped(step, "not a punitive action")
	}
}

func (p *Punisher) denied(penalty Penalty, step, reason string) protection.StepResult {
	p.logger.Warn("punishment not attempted",
		zap.String("guild_id", penalty.GuildID),
		zap.String("user_id", penalty.UserID),
		zap.String("action", step),
		zap.String("reason", reason))
	return protection.Skipped(step, reason)
}
