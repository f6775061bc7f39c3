// Package audit persists security events, mirrors them to the structured log and
// optionally forwards them to a guild's log channel.
package audit

import (
	"context"
	"fmt"
	"strings"

	"guardbot/internal/protection"
	"guardbot/internal/storage"
	"guardbot/internal/utils"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Sink interface {
	AddAuditLog(ctx context.Context, entry storage.AuditLog) error
}

type Logger struct {
	sink   Sink
	logger *zap.Logger
	clock  utils.Clock
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(sink Sink, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sink: sink, logger: logger.Named("audit"), clock: utils.SystemClock()}
}

func (l *Logger) WithClock(clock utils.Clock) {
	l.clock = clock
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	_ = l.Record(ctx, storage.AuditLog{
		GuildID: guildID,
		UserID:  userID,
		Level:   level,
		Event:   event,
		Details: details,
	})
}

// Record appends entry to the sink. A sink failure is logged and returned; the notifier
// still runs. A nil Logger records nothing.
func (l *Logger) Record(ctx context.Context, entry storage.AuditLog) error {
	if l == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.clock.Now()
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	var err error
	if l.sink != nil {
		if err = l.sink.AddAuditLog(ctx, entry); err != nil {
			l.logger.Error("audit append failed",
				zap.String("guild_id", entry.GuildID),
				zap.String("event", entry.Event),
				zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", entry.Level),
		zap.String("guild_id", entry.GuildID),
		zap.String("user_id", entry.UserID),
		zap.String("event", entry.Event),
		zap.String("kind", entry.Kind),
		zap.Int("count", entry.Count),
		zap.String("details", entry.Details))
	return err
}

// ChannelNotifier posts each entry to the guild's configured log channel. Guilds without
// a log channel are skipped.
func ChannelNotifier(store protection.ConfigStore, actuator protection.Actuator, logger *zap.Logger) func(context.Context, storage.AuditLog) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, entry storage.AuditLog) {
		if entry.GuildID == "" {
			return
		}
		cfg, err := store.LoadConfig(ctx, entry.GuildID)
		if err != nil || cfg.LogChannelID == "" {
			return
		}
		if err := actuator.SendMessage(ctx, cfg.LogChannelID, FormatEntry(entry)); err != nil {
			logger.Warn("audit channel post failed",
				zap.String("guild_id", entry.GuildID),
				zap.String("channel_id", cfg.LogChannelID),
				zap.Error(err))
		}
	}
}

func FormatEntry(entry storage.AuditLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", entry.Level, entry.Event)
	if entry.UserID != "" {
		fmt.Fprintf(&b, " user=<@%s>", entry.UserID)
	}
	if entry.Kind != "" {
		fmt.Fprintf(&b, " kind=%s", entry.Kind)
	}
	if entry.Count > 0 {
		fmt.Fprintf(&b, " count=%d", entry.Count)
	}
	if entry.Details != "" {
		b.WriteString(" | ")
		b.WriteString(entry.Details)
	}
	return b.String()
}
