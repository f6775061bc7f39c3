// Package enforce applies message-filter verdicts. The violation is recorded before
// anything else; each following step is best-effort and independent.
package enforce

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/modules/warnings"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// AutoModeratorID is stored as the moderator of warnings issued by filters.
const AutoModeratorID = "automod"

type ViolationRecorder interface {
	AddFilterViolation(ctx context.Context, record storage.FilterViolation) error
}

type Warner interface {
	Warn(ctx context.Context, guildID, userID, modID, reason string) (warnings.Result, error)
}

type Report struct {
	Violation protection.StepResult
	Steps     []protection.StepResult
}

type Enforcer struct {
	actuator       protection.Actuator
	punisher       *remediation.Punisher
	violations     ViolationRecorder
	warner         Warner
	audit          *audit.Logger
	defaultTimeout time.Duration
	logger         *zap.Logger
}

func New(actuator protection.Actuator, punisher *remediation.Punisher, violations ViolationRecorder, warner Warner, auditLogger *audit.Logger, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{
		actuator:       actuator,
		punisher:       punisher,
		violations:     violations,
		warner:         warner,
		audit:          auditLogger,
		defaultTimeout: 10 * time.Minute,
		logger:         logger.Named("enforce"),
	}
}

func (e *Enforcer) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		e.defaultTimeout = d
	}
}

// Apply records the violation, then deletes the message and applies the verdict's
// action concurrently. It returns nil when the verdict does not call for action.
func (e *Enforcer) Apply(ctx context.Context, cfg protection.Config, msg protection.Message, verdict protection.Verdict) *Report {
	if !verdict.ShouldAct {
		return nil
	}

	report := &Report{Violation: e.recordViolation(ctx, msg, verdict)}

	var mu sync.Mutex
	collect := func(step protection.StepResult) {
		mu.Lock()
		report.Steps = append(report.Steps, step)
		mu.Unlock()
	}

	p := pool.New()
	p.Go(func() {
		collect(protection.Attempted("delete_message", e.actuator.DeleteMessage(ctx, msg.ChannelID, msg.MessageID)))
	})
	switch verdict.Action {
	case protection.PunishWarn:
		p.Go(func() {
			_, err := e.warner.Warn(ctx, msg.GuildID, msg.AuthorID, AutoModeratorID, verdict.Reason)
			collect(protection.Attempted("warn", err))
		})
	case protection.PunishTimeout, protection.PunishKick, protection.PunishBan, protection.PunishQuarantine:
		p.Go(func() {
			collect(e.punisher.Apply(ctx, cfg, remediation.Penalty{
				GuildID:  msg.GuildID,
				UserID:   msg.AuthorID,
				Action:   verdict.Action,
				Duration: e.timeout(verdict),
				Reason:   verdict.Reason,
			}))
		})
	}
	p.Wait()

	for _, step := range report.Steps {
		if step.Attempted && step.Err != nil {
			e.logger.Warn("enforcement step failed",
				zap.String("guild_id", msg.GuildID),
				zap.String("user_id", msg.AuthorID),
				zap.String("filter", verdict.Filter),
				zap.String("step", step.Step),
				zap.Error(step.Err))
		}
	}
	return report
}

func (e *Enforcer) recordViolation(ctx context.Context, msg protection.Message, verdict protection.Verdict) protection.StepResult {
	detail := verdict.Reason
	if len(verdict.URLs) > 0 && !strings.Contains(detail, verdict.URLs[0]) {
		detail = fmt.Sprintf("%s urls=%s", detail, strings.Join(verdict.URLs, ","))
	}
	e.logger.Info("filter violation",
		zap.String("guild_id", msg.GuildID),
		zap.String("user_id", msg.AuthorID),
		zap.String("filter", verdict.Filter),
		zap.String("action", string(verdict.Action)),
		zap.String("reason", verdict.Reason))

	err := e.violations.AddFilterViolation(ctx, storage.FilterViolation{
		GuildID:   msg.GuildID,
		UserID:    msg.AuthorID,
		ChannelID: msg.ChannelID,
		Filter:    verdict.Filter,
		Action:    string(verdict.Action),
		Detail:    detail,
	})
	if err != nil {
		e.logger.Error("filter violation record failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}
	e.audit.Log(ctx, audit.LevelInfo, msg.GuildID, msg.AuthorID, verdict.Filter, detail)
	return protection.Attempted("record_violation", err)
}

func (e *Enforcer) timeout(verdict protection.Verdict) time.Duration {
	if verdict.TimeoutMinutes > 0 {
		return time.Duration(verdict.TimeoutMinutes) * time.Minute
	}
	return e.defaultTimeout
}
