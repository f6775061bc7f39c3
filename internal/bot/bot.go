package bot

import (
	"context"
	"sync"
	"time"

	"guardbot/internal/analytics"
	"guardbot/internal/config"
	"guardbot/internal/modules/antialts"
	"guardbot/internal/modules/antinuke"
	"guardbot/internal/modules/antiraid"
	"guardbot/internal/modules/antispam"
	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/backup"
	"guardbot/internal/modules/enforce"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/modules/warnings"
	"guardbot/internal/protection"
	"guardbot/internal/raidmode"
	"guardbot/internal/storage"
	"guardbot/internal/tracker"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventTimeout = 15 * time.Second

// Store is the persistence the bot works against. *storage.Store implements it.
type Store interface {
	warnings.Store
	backup.Store
	antialts.Recorder
	enforce.ViolationRecorder
	AddGlobalBan(ctx context.Context, ban storage.GlobalBan) error
	GetGlobalBan(ctx context.Context, userID string) (storage.GlobalBan, error)
	RemoveGlobalBan(ctx context.Context, userID string) error
	CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error)
}

// Platform is the guild API the protection modules act through.
type Platform interface {
	protection.Actuator
	protection.Directory
	protection.AuditSource
	backup.Guild
}

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     Store
	configs   protection.ConfigStore
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	discord   *discordAdapter

	nukeCounter       *tracker.Registry
	protectionCounter *tracker.Registry

	raid     *raidmode.Engine
	punisher *remediation.Punisher
	antinuke *antinuke.Module
	antiraid *antiraid.Module
	antialts *antialts.Module
	antispam *antispam.Module
	enforcer *enforce.Enforcer
	warnings *warnings.Service
	backups  *backup.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the bot. configs is the config store seen by every module, usually the store
// itself or a cache in front of it.
func New(cfg config.Config, logger *zap.Logger, store *storage.Store, configs protection.ConfigStore, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsMessageContent

	if configs == nil {
		configs = store
	}

	discord := newDiscordAdapter(session, cfg.Actions.RateLimitPerSecond, cfg.Actions.RateLimitBurst)
	b := assemble(cfg, logger, store, configs, auditLogger, discord)
	b.analytics = analyticsService
	b.session = session
	b.discord = discord

	if auditLogger != nil {
		auditLogger.SetNotifier(audit.ChannelNotifier(configs, discord, logger))
	}

	return b, nil
}

// assemble wires the protection modules to store and platform. The gateway session is
// attached by New.
func assemble(cfg config.Config, logger *zap.Logger, store Store, configs protection.ConfigStore, auditLogger *audit.Logger, platform Platform) *Bot {
	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		configs: configs,
		audit:   auditLogger,
	}

	b.nukeCounter = tracker.New(cfg.AntiNukeWindow(), logger.Named("nuke_counter"))
	b.protectionCounter = tracker.New(cfg.ProtectionWindow(), logger.Named("protection_counter"))

	b.raid = raidmode.New(configs, auditLogger, logger)
	b.punisher = remediation.NewPunisher(platform, platform, logger)
	dispatcher := remediation.NewDispatcher(platform, b.punisher, auditLogger, logger)

	b.antinuke = antinuke.New(configs, platform, platform, b.nukeCounter, dispatcher, logger)
	b.antinuke.SetAttributionMaxAge(cfg.AttributionMaxAge())

	b.antiraid = antiraid.New(antiraid.Config{
		JoinThreshold: cfg.Raid.JoinThreshold,
		JoinWindow:    cfg.RaidJoinWindow(),
		InviteLimit:   cfg.Protection.RaidInviteLimit,
	}, configs, b.raid, b.protectionCounter, platform, platform, b.punisher, auditLogger, logger)
	b.antialts = antialts.New(configs, store, b.punisher, auditLogger, logger)
	b.antispam = antispam.New(b.protectionCounter, cfg.Protection.SpamMessages)

	b.warnings = warnings.New(store, configs, b.punisher, auditLogger, logger)
	b.enforcer = enforce.New(platform, b.punisher, store, b.warnings, auditLogger, logger)
	b.enforcer.SetDefaultTimeout(time.Duration(cfg.Actions.TimeoutMinutes) * time.Minute)

	b.backups = backup.New(store, platform, cfg.Backup.MaxPerGuild, auditLogger, logger)
	return b
}

func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onRoleCreate)
	b.session.AddHandler(b.onRoleDelete)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onInviteCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.goRun(func(ctx context.Context) { b.nukeCounter.Run(ctx, b.cfg.AntiNukeSweep()) })
	b.goRun(func(ctx context.Context) { b.protectionCounter.Run(ctx, b.cfg.ProtectionSweep()) })
	if b.cfg.Backup.Enabled {
		b.goRun(func(ctx context.Context) { b.backups.Run(ctx, b.cfg.BackupInterval(), b.guildIDs) })
	}
	if b.cfg.RetentionDays > 0 {
		b.goRun(b.runRetention)
	}

	return nil
}

func (b *Bot) goRun(fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

func (b *Bot) Close(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("background workers did not stop in time")
	}

	if b.session != nil {
		_ = b.session.Close()
	}
}

// eventContext bounds the work done for one gateway event.
func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	parent := b.ctx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, eventTimeout)
}

func (b *Bot) guildIDs() []string {
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		if guild != nil {
			ids = append(ids, guild.ID)
		}
	}
	return ids
}

func (b *Bot) runRetention(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays)
			if err != nil {
				b.logger.Error("audit log cleanup failed", zap.Error(err))
				continue
			}
			b.logger.Info("audit log cleanup", zap.Int64("removed", removed))
		}
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func logSteps(logger *zap.Logger, msg string, steps []protection.StepResult) {
	for _, step := range steps {
		switch {
		case !step.Attempted:
			logger.Debug(msg, zap.String("step", step.Step), zap.String("skipped", step.Reason))
		case step.Err != nil:
			logger.Warn(msg, zap.String("step", step.Step), zap.Error(step.Err))
		}
	}
}
