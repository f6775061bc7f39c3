package bot

import (
	"context"
	"errors"

	"guardbot/internal/modules/antialts"
	"guardbot/internal/modules/antilink"
	"guardbot/internal/modules/antimention"
	"guardbot/internal/modules/antinuke"
	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/enforce"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onRoleCreate(session *discordgo.Session, event *discordgo.GuildRoleCreate) {
	if event.GuildRole == nil || event.Role == nil {
		return
	}
	b.handleNukeEvent(event.GuildID, protection.KindRoleCreate, event.Role.ID)
}

func (b *Bot) onRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	b.handleNukeEvent(event.GuildID, protection.KindRoleDelete, event.RoleID)
}

func (b *Bot) onChannelCreate(session *discordgo.Session, event *discordgo.ChannelCreate) {
	if event.Channel == nil || event.GuildID == "" {
		return
	}
	b.handleNukeEvent(event.GuildID, protection.KindChannelCreate, event.ID)
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.GuildID == "" {
		return
	}
	b.handleNukeEvent(event.GuildID, protection.KindChannelDelete, event.ID)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.User == nil {
		return
	}
	b.handleNukeEvent(event.GuildID, protection.KindBan, event.User.ID)
}

// onGuildMemberRemove fires for leaves and kicks alike; only an attributable kick entry
// turns it into an anti-nuke event.
func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.Member == nil || event.User == nil {
		return
	}
	b.handleNukeEvent(event.GuildID, protection.KindKick, event.User.ID)
}

func (b *Bot) handleNukeEvent(guildID string, kind protection.ActionKind, subjectID string) {
	if guildID == "" {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	decision := b.antinuke.Handle(ctx, antinuke.Event{GuildID: guildID, Kind: kind, SubjectID: subjectID})
	if decision.Outcome != nil {
		logSteps(b.logger.With(zap.String("guild_id", guildID), zap.String("actor_id", decision.ActorID)),
			"anti-nuke remediation step", decision.Outcome.Steps())
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil || event.User.Bot {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	b.handleJoin(ctx, event.GuildID, event.User.ID)
}

// joinStage names the check that settled a member join.
type joinStage string

const (
	joinGlobalBan joinStage = "global_ban"
	joinRaidMode  joinStage = "raid_mode"
	joinAntiAlts  joinStage = "anti_alts"
)

// handleJoin runs the join checks in order: global ban, raid mode, then account age. A
// global ban or a successful raid-mode kick ends the sequence.
func (b *Bot) handleJoin(ctx context.Context, guildID, userID string) joinStage {
	logger := b.logger.With(zap.String("guild_id", guildID), zap.String("user_id", userID))

	ban, err := b.store.GetGlobalBan(ctx, userID)
	switch {
	case err == nil:
		cfg, err := b.configs.LoadConfig(ctx, guildID)
		if err != nil {
			logger.Error("config load failed", zap.Error(err))
			return joinGlobalBan
		}
		step := b.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID: guildID,
			UserID:  userID,
			Action:  protection.PunishBan,
			Reason:  "Global ban: " + ban.Reason,
		})
		logSteps(logger, "global ban enforcement", []protection.StepResult{step})
		b.audit.Log(ctx, audit.LevelWarn, guildID, userID, "global_ban_enforced", ban.Reason)
		return joinGlobalBan
	case !errors.Is(err, storage.ErrNotFound):
		logger.Error("global ban lookup failed", zap.Error(err))
	}

	join := b.antiraid.HandleJoin(ctx, guildID, userID)
	if join.Kick != nil {
		logSteps(logger, "raid mode join", []protection.StepResult{*join.Kick})
		if join.Kick.OK() {
			return joinRaidMode
		}
	}

	createdAt, err := antialts.AccountCreated(userID)
	if err != nil {
		logger.Warn("account age unavailable", zap.Error(err))
		return joinAntiAlts
	}
	alts := b.antialts.HandleJoin(ctx, guildID, userID, createdAt)
	if alts.Step != nil {
		logSteps(logger, "anti-alts step", []protection.StepResult{*alts.Step})
	}
	return joinAntiAlts
}

func (b *Bot) onInviteCreate(session *discordgo.Session, event *discordgo.InviteCreate) {
	if event.Invite == nil || event.Inviter == nil || event.GuildID == "" {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	decision := b.antiraid.HandleInvite(ctx, event.GuildID, event.Inviter.ID, event.Code)
	var steps []protection.StepResult
	if decision.Delete != nil {
		steps = append(steps, *decision.Delete)
	}
	if decision.Timeout != nil {
		steps = append(steps, *decision.Timeout)
	}
	logSteps(b.logger.With(zap.String("guild_id", event.GuildID)), "raid invite step", steps)
}

func (b *Bot) onMessageCreate(session *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot || event.GuildID == "" {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	b.handleMessage(ctx, b.toMessage(session, event))
}

// handleMessage runs the message filters and enforces the first verdict that calls for
// action. Spam is always counted so a burst is tracked even while another filter acts.
func (b *Bot) handleMessage(ctx context.Context, msg protection.Message) *enforce.Report {
	cfg, err := b.configs.LoadConfig(ctx, msg.GuildID)
	if err != nil {
		b.logger.Error("config load failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return nil
	}
	if !cfg.Enabled {
		return nil
	}

	spam := b.antispam.Check(msg)
	for _, verdict := range []protection.Verdict{
		antilink.Check(cfg.AntiLinks, msg),
		antimention.Check(cfg.AntiMentions, msg),
		spam,
	} {
		if !verdict.ShouldAct {
			continue
		}
		report := b.enforcer.Apply(ctx, cfg, msg, verdict)
		if report != nil {
			logSteps(b.logger.With(zap.String("guild_id", msg.GuildID), zap.String("filter", verdict.Filter)),
				"filter enforcement step", append([]protection.StepResult{report.Violation}, report.Steps...))
		}
		return report
	}
	return nil
}

func (b *Bot) toMessage(session *discordgo.Session, event *discordgo.MessageCreate) protection.Message {
	var permissions int64
	if perms, err := session.State.UserChannelPermissions(event.Author.ID, event.ChannelID); err == nil {
		permissions = perms
	} else if event.Member != nil {
		ctx, cancel := b.eventContext()
		permissions = b.discord.memberPermissions(ctx, event.GuildID, event.Author.ID, event.Member.Roles)
		cancel()
	}
	return messageFromEvent(event.Message, permissions)
}

func messageFromEvent(m *discordgo.Message, permissions int64) protection.Message {
	msg := protection.Message{
		GuildID:           m.GuildID,
		ChannelID:         m.ChannelID,
		MessageID:         m.ID,
		AuthorPermissions: permissions,
		Content:           m.Content,
		MentionRoleIDs:    m.MentionRoles,
		MentionEveryone:   m.MentionEveryone,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	for _, user := range m.Mentions {
		if user != nil {
			msg.MentionUserIDs = append(msg.MentionUserIDs, user.ID)
		}
	}
	return msg
}
