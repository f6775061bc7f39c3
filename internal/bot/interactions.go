package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"guardbot/internal/modules/antialts"
	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const commandTimeout = 2 * time.Minute

var errGuildOnly = errors.New("this command only works in a server")

type commandRequest struct {
	guildID    string
	actorID    string
	subcommand string
	options    commandOptions
}

type commandHandler func(ctx context.Context, req commandRequest) (string, error)

type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(options []*discordgo.ApplicationCommandInteractionDataOption) (string, commandOptions) {
	var sub string
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = options[0].Name
		options = options[0].Options
	}
	out := make(commandOptions, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return sub, out
}

func (o commandOptions) stringValue(name string) string {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (o commandOptions) intValue(name string) (int, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	return int(opt.IntValue()), true
}

func (o commandOptions) boolValue(name string) bool {
	opt, ok := o[name]
	return ok && opt.BoolValue()
}

func (b *Bot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"protection":   b.handleProtection,
		"antinuke":     b.handleAntiNuke,
		"antilinks":    b.handleAntiLinks,
		"antimentions": b.handleAntiMentions,
		"antialts":     b.handleAntiAlts,
		"quarantine":   b.handleQuarantine,
		"raidmode":     b.handleRaidMode,
		"warn":         b.handleWarn,
		"warnings":     b.handleWarnings,
		"autopunish":   b.handleAutoPunish,
		"globalban":    b.handleGlobalBan,
		"inspect":      b.handleInspect,
		"backup":       b.handleBackup,
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	handler, ok := b.commandHandlers()[data.Name]
	if !ok {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil || interaction.Member.User == nil {
		b.respond(session, interaction, errGuildOnly.Error(), true)
		return
	}

	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Warn("interaction defer failed", zap.String("command", data.Name), zap.Error(err))
		return
	}

	parent := b.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	sub, options := optionsOf(data.Options)
	reply, err := handler(ctx, commandRequest{
		guildID:    interaction.GuildID,
		actorID:    interaction.Member.User.ID,
		subcommand: sub,
		options:    options,
	})
	if err != nil {
		b.logger.Warn("command failed",
			zap.String("command", data.Name),
			zap.String("subcommand", sub),
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err))
		reply = "Error: " + err.Error()
	}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		b.logger.Warn("interaction edit failed", zap.String("command", data.Name), zap.Error(err))
	}
}

// updateConfig applies mutate and records who changed what.
func (b *Bot) updateConfig(ctx context.Context, req commandRequest, event string, mutate func(*protection.Config) error) error {
	if err := b.configs.UpdateConfig(ctx, req.guildID, mutate); err != nil {
		return err
	}
	b.audit.Log(ctx, audit.LevelInfo, req.guildID, req.actorID, event, req.subcommand)
	return nil
}

func (b *Bot) handleProtection(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "status":
		cfg, err := b.configs.LoadConfig(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		raid := b.raid.Resolve(ctx, req.guildID, cfg)
		return formatStatus(cfg, raid), nil
	case "enable", "disable":
		enabled := req.subcommand == "enable"
		if err := b.updateConfig(ctx, req, "protection_toggled", func(c *protection.Config) error {
			c.Enabled = enabled
			return nil
		}); err != nil {
			return "", err
		}
		return "Protection " + onOff(enabled) + ".", nil
	case "report":
		since := time.Now().Add(-24 * time.Hour)
		if req.options.stringValue("period") == "week" {
			since = time.Now().Add(-7 * 24 * time.Hour)
		}
		report, err := b.analytics.Report(ctx, req.guildID, since)
		if err != nil {
			return "", err
		}
		return report.Summary(), nil
	case "logchannel":
		channelID := req.options.stringValue("channel")
		if err := b.updateConfig(ctx, req, "log_channel_set", func(c *protection.Config) error {
			c.LogChannelID = channelID
			return nil
		}); err != nil {
			return "", err
		}
		if channelID == "" {
			return "Log channel cleared.", nil
		}
		return fmt.Sprintf("Security logs go to <#%s>.", channelID), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleAntiNuke(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "threshold":
		kind := req.options.stringValue("kind")
		value, _ := req.options.intValue("value")
		if value < 1 {
			return "", errors.New("threshold must be at least 1")
		}
		if err := b.updateConfig(ctx, req, "antinuke_threshold_set", func(c *protection.Config) error {
			return setNukeThreshold(&c.AntiNuke.Thresholds, kind, value)
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Anti-nuke %s threshold set to %d.", kind, value), nil
	case "action":
		action := protection.Punishment(req.options.stringValue("value"))
		if err := b.updateConfig(ctx, req, "antinuke_action_set", func(c *protection.Config) error {
			c.AntiNuke.Action = action
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Anti-nuke breaches now %s the actor.", action), nil
	case "toggle":
		kind := req.options.stringValue("kind")
		enabled := req.options.boolValue("enabled")
		if err := b.updateConfig(ctx, req, "antinuke_toggled", func(c *protection.Config) error {
			if kind == "all" {
				c.AntiNuke.Enabled = enabled
				return nil
			}
			if !c.AntiNuke.Actions.Set(protection.ActionKind(kind), enabled) {
				return fmt.Errorf("unknown action kind %q", kind)
			}
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Anti-nuke %s %s.", kind, onOff(enabled)), nil
	case "whitelist":
		return b.handleWhitelist(ctx, req)
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func setNukeThreshold(t *protection.NukeThresholds, kind string, value int) error {
	switch kind {
	case "roles":
		t.RoleCreateDelete = value
	case "channels":
		t.ChannelCreateDelete = value
	case "bans":
		t.Bans = value
	case "kicks":
		t.Kicks = value
	default:
		return fmt.Errorf("unknown threshold %q", kind)
	}
	return nil
}

func (b *Bot) handleWhitelist(ctx context.Context, req commandRequest) (string, error) {
	action := req.options.stringValue("action")
	userID := req.options.stringValue("user")
	if action == "list" {
		cfg, err := b.configs.LoadConfig(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		if len(cfg.AntiNuke.Whitelist) == 0 {
			return "Whitelist is empty.", nil
		}
		return "Whitelist: " + mentions(cfg.AntiNuke.Whitelist), nil
	}
	if userID == "" {
		return "", errors.New("a user is required")
	}
	if err := b.updateConfig(ctx, req, "antinuke_whitelist_"+action, func(c *protection.Config) error {
		if action == "add" {
			c.AntiNuke.Whitelist = addUnique(c.AntiNuke.Whitelist, userID)
		} else {
			c.AntiNuke.Whitelist = removeValue(c.AntiNuke.Whitelist, userID)
		}
		return nil
	}); err != nil {
		return "", err
	}
	if action == "add" {
		return fmt.Sprintf("<@%s> is now exempt from anti-nuke.", userID), nil
	}
	return fmt.Sprintf("<@%s> is no longer exempt.", userID), nil
}

func (b *Bot) handleAntiLinks(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "list":
		cfg, err := b.configs.LoadConfig(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		return formatAllowList(cfg.AntiLinks.AllowList), nil
	case "toggle":
		enabled := req.options.boolValue("enabled")
		if err := b.updateConfig(ctx, req, "antilinks_toggled", func(c *protection.Config) error {
			c.AntiLinks.Enabled = enabled
			return nil
		}); err != nil {
			return "", err
		}
		return "Anti-link " + onOff(enabled) + ".", nil
	case "action":
		action := protection.Punishment(req.options.stringValue("value"))
		if err := b.updateConfig(ctx, req, "antilinks_action_set", func(c *protection.Config) error {
			c.AntiLinks.Action = action
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Anti-link action set to %s.", action), nil
	case "allow", "disallow":
		domain := strings.ToLower(req.options.stringValue("domain"))
		if domain == "" {
			return "", errors.New("a domain is required")
		}
		allow := req.subcommand == "allow"
		var remaining int
		if err := b.updateConfig(ctx, req, "antilinks_allowlist_changed", func(c *protection.Config) error {
			c.AntiLinks.AllowList = editAllowList(c.AntiLinks.AllowList, domain, allow)
			remaining = len(c.AntiLinks.AllowList)
			return nil
		}); err != nil {
			return "", err
		}
		if allow {
			return fmt.Sprintf("%s is allowed.", domain), nil
		}
		if remaining == 0 {
			return fmt.Sprintf("%s is no longer allowed. The allow-list is empty, so every link is blocked.", domain), nil
		}
		return fmt.Sprintf("%s is no longer allowed.", domain), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleAntiMentions(ctx context.Context, req commandRequest) (string, error) {
	var (
		mutate func(*protection.Config) error
		reply  string
	)
	switch req.subcommand {
	case "toggle":
		enabled := req.options.boolValue("enabled")
		mutate = func(c *protection.Config) error { c.AntiMentions.Enabled = enabled; return nil }
		reply = "Anti-mention " + onOff(enabled) + "."
	case "max":
		value, _ := req.options.intValue("value")
		if value < 1 {
			return "", errors.New("limit must be at least 1")
		}
		mutate = func(c *protection.Config) error { c.AntiMentions.MaxMentionsUser = value; return nil }
		reply = fmt.Sprintf("Messages may mention at most %d users or roles.", value)
	case "everyone":
		enabled := req.options.boolValue("enabled")
		mutate = func(c *protection.Config) error { c.AntiMentions.BlockEveryone = enabled; return nil }
		reply = "@everyone blocking " + onOff(enabled) + "."
	case "action":
		action := protection.Punishment(req.options.stringValue("value"))
		mutate = func(c *protection.Config) error { c.AntiMentions.Action = action; return nil }
		reply = fmt.Sprintf("Anti-mention action set to %s.", action)
	default:
		return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
	}
	if err := b.updateConfig(ctx, req, "antimentions_changed", mutate); err != nil {
		return "", err
	}
	return reply, nil
}

func (b *Bot) handleAntiAlts(ctx context.Context, req commandRequest) (string, error) {
	var (
		mutate func(*protection.Config) error
		reply  string
	)
	switch req.subcommand {
	case "toggle":
		enabled := req.options.boolValue("enabled")
		mutate = func(c *protection.Config) error { c.AntiAlts.Enabled = enabled; return nil }
		reply = "Anti-alts " + onOff(enabled) + "."
	case "age":
		days, _ := req.options.intValue("days")
		if days < 1 {
			return "", errors.New("minimum age must be at least 1 day")
		}
		mutate = func(c *protection.Config) error { c.AntiAlts.MinAccountAgeDays = days; return nil }
		reply = fmt.Sprintf("Accounts younger than %d days are screened.", days)
	case "mode":
		mode := protection.Punishment(req.options.stringValue("value"))
		mutate = func(c *protection.Config) error {
			if mode == protection.PunishQuarantine && c.Quarantine.RoleID == "" {
				return errors.New("set a quarantine role first with /quarantine setup")
			}
			c.AntiAlts.Mode = mode
			return nil
		}
		reply = fmt.Sprintf("Young accounts are now handled with %s.", mode)
	default:
		return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
	}
	if err := b.updateConfig(ctx, req, "antialts_changed", mutate); err != nil {
		return "", err
	}
	return reply, nil
}

func (b *Bot) handleQuarantine(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "setup":
		roleID := req.options.stringValue("role")
		channelID := req.options.stringValue("channel")
		if err := b.updateConfig(ctx, req, "quarantine_setup", func(c *protection.Config) error {
			c.Quarantine.RoleID = roleID
			c.Quarantine.ChannelID = channelID
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Quarantine role set to <@&%s>.", roleID), nil
	case "user":
		cfg, err := b.configs.LoadConfig(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		userID := req.options.stringValue("user")
		reason := req.options.stringValue("reason")
		if reason == "" {
			reason = "Quarantined by a moderator"
		}
		step := b.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID: req.guildID,
			UserID:  userID,
			Action:  protection.PunishQuarantine,
			Reason:  reason,
		})
		b.audit.Log(ctx, audit.LevelWarn, req.guildID, userID, "member_quarantined", step.String())
		return step.String(), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleRaidMode(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "on":
		minutes, _ := req.options.intValue("minutes")
		if minutes < 0 {
			return "", errors.New("duration cannot be negative")
		}
		state, err := b.raid.Enable(ctx, req.guildID, time.Duration(minutes)*time.Minute)
		if err != nil {
			return "", err
		}
		return formatRaid(state), nil
	case "off":
		if err := b.raid.Disable(ctx, req.guildID); err != nil {
			return "", err
		}
		return "Raid mode disabled.", nil
	case "status":
		state, err := b.raid.Status(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		return formatRaid(state), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleWarn(ctx context.Context, req commandRequest) (string, error) {
	userID := req.options.stringValue("user")
	reason := req.options.stringValue("reason")
	if reason == "" {
		reason = "No reason given"
	}
	result, err := b.warnings.Warn(ctx, req.guildID, userID, req.actorID, reason)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Warned <@%s> (warn %d, id `%s`).", userID, result.Count, result.Warn.ID)
	if result.Escalation != nil {
		reply += fmt.Sprintf("\nEscalation at %d warns: %s", result.Rung.WarnCount, result.Escalation.String())
	}
	return reply, nil
}

func (b *Bot) handleWarnings(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "list":
		userID := req.options.stringValue("user")
		warns, err := b.warnings.List(ctx, req.guildID, userID)
		if err != nil {
			return "", err
		}
		return formatWarns(userID, warns), nil
	case "remove":
		if err := b.warnings.Remove(ctx, req.guildID, req.options.stringValue("id"), req.actorID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "No warn with that id.", nil
			}
			return "", err
		}
		return "Warn removed.", nil
	case "clear":
		userID := req.options.stringValue("user")
		removed, err := b.warnings.Clear(ctx, req.guildID, userID, req.actorID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Cleared %d warns for <@%s>.", removed, userID), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleAutoPunish(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "list":
		cfg, err := b.configs.LoadConfig(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		return formatLadder(cfg.AutoPunish), nil
	case "toggle":
		enabled := req.options.boolValue("enabled")
		if err := b.updateConfig(ctx, req, "autopunish_toggled", func(c *protection.Config) error {
			c.AutoPunish.Enabled = enabled
			return nil
		}); err != nil {
			return "", err
		}
		return "Auto-punish " + onOff(enabled) + ".", nil
	case "set":
		count, _ := req.options.intValue("count")
		minutes, _ := req.options.intValue("minutes")
		if count < 1 {
			return "", errors.New("warn count must be at least 1")
		}
		rung := protection.PunishAt{
			WarnCount:       count,
			Action:          protection.Punishment(req.options.stringValue("action")),
			DurationMinutes: minutes,
		}
		if err := b.updateConfig(ctx, req, "autopunish_rung_set", func(c *protection.Config) error {
			c.AutoPunish.Thresholds = setRung(c.AutoPunish.Thresholds, rung)
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d warns now trigger %s.", count, rung.Action), nil
	case "remove":
		count, _ := req.options.intValue("count")
		if err := b.updateConfig(ctx, req, "autopunish_rung_removed", func(c *protection.Config) error {
			c.AutoPunish.Thresholds = removeRung(c.AutoPunish.Thresholds, count)
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed the rung for %d warns.", count), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func (b *Bot) handleGlobalBan(ctx context.Context, req commandRequest) (string, error) {
	if !b.cfg.IsOwner(req.actorID) {
		return "Only bot owners can manage global bans.", nil
	}
	userID := req.options.stringValue("user")
	switch req.subcommand {
	case "add":
		reason := req.options.stringValue("reason")
		if reason == "" {
			reason = "No reason given"
		}
		if err := b.store.AddGlobalBan(ctx, storage.GlobalBan{
			UserID:   userID,
			Reason:   reason,
			BannedBy: req.actorID,
			Date:     time.Now().UTC(),
		}); err != nil {
			return "", err
		}
		banned := b.enforceGlobalBan(ctx, userID, reason)
		b.audit.Log(ctx, audit.LevelCrit, req.guildID, userID, "global_ban_added", reason)
		return fmt.Sprintf("<@%s> is globally banned (applied in %d servers).", userID, banned), nil
	case "remove":
		if err := b.store.RemoveGlobalBan(ctx, userID); err != nil {
			return "", err
		}
		b.audit.Log(ctx, audit.LevelInfo, req.guildID, userID, "global_ban_removed", "")
		return fmt.Sprintf("Global ban for <@%s> removed. Existing server bans stay in place.", userID), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

// enforceGlobalBan bans userID in every guild the bot is in and returns how many bans
// succeeded.
func (b *Bot) enforceGlobalBan(ctx context.Context, userID, reason string) int {
	banned := 0
	for _, guildID := range b.guildIDs() {
		cfg, err := b.configs.LoadConfig(ctx, guildID)
		if err != nil {
			b.logger.Error("config load failed", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		step := b.punisher.Apply(ctx, cfg, remediation.Penalty{
			GuildID: guildID,
			UserID:  userID,
			Action:  protection.PunishBan,
			Reason:  "Global ban: " + reason,
		})
		if step.OK() {
			banned++
		}
	}
	return banned
}

func (b *Bot) handleInspect(ctx context.Context, req commandRequest) (string, error) {
	userID := req.options.stringValue("user")
	createdAt, err := antialts.AccountCreated(userID)
	if err != nil {
		return "", err
	}
	cfg, err := b.configs.LoadConfig(ctx, req.guildID)
	if err != nil {
		return "", err
	}
	warns, err := b.warnings.Count(ctx, req.guildID, userID)
	if err != nil {
		return "", err
	}

	var lines []string
	age := antialts.AgeDays(createdAt, time.Now())
	lines = append(lines, fmt.Sprintf("User: <@%s>", userID))
	lines = append(lines, fmt.Sprintf("Account created: %s (%d days)", createdAt.UTC().Format("2006-01-02"), age))
	if age < cfg.AntiAlts.MinAccountAgeDays {
		lines = append(lines, fmt.Sprintf("Below the minimum account age of %d days", cfg.AntiAlts.MinAccountAgeDays))
	}
	ban, err := b.store.GetGlobalBan(ctx, userID)
	switch {
	case err == nil:
		lines = append(lines, fmt.Sprintf("Globally banned: %s (by <@%s>)", ban.Reason, ban.BannedBy))
	case errors.Is(err, storage.ErrNotFound):
		lines = append(lines, "Globally banned: no")
	default:
		return "", err
	}
	lines = append(lines, fmt.Sprintf("Warns: %d", warns))
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) handleBackup(ctx context.Context, req commandRequest) (string, error) {
	switch req.subcommand {
	case "create":
		created, err := b.backups.Create(ctx, req.guildID, req.actorID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Backup `%s` created (%d roles, %d categories, %d channels).",
			created.ID, len(created.Data.Roles), len(created.Data.Categories), len(created.Data.Channels)), nil
	case "list":
		backups, err := b.backups.List(ctx, req.guildID)
		if err != nil {
			return "", err
		}
		if len(backups) == 0 {
			return "No backups yet.", nil
		}
		lines := make([]string, 0, len(backups))
		for _, item := range backups {
			lines = append(lines, fmt.Sprintf("`%s` %s by <@%s> (%s)", item.ID, item.CreatedAt.UTC().Format(time.RFC3339), item.CreatedBy, item.GuildName))
		}
		return strings.Join(lines, "\n"), nil
	case "restore":
		report, err := b.backups.Restore(ctx, req.guildID, req.options.stringValue("id"), req.actorID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "No backup with that id.", nil
			}
			return "", err
		}
		reply := fmt.Sprintf("Restored %d roles, %d categories, %d channels and the roles of %d members.",
			report.Roles, report.Categories, report.Channels, report.Members)
		if len(report.Failures) > 0 {
			reply += fmt.Sprintf(" %d items failed.", len(report.Failures))
		}
		return reply, nil
	case "delete":
		if err := b.backups.Delete(ctx, req.guildID, req.options.stringValue("id"), req.actorID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "No backup with that id.", nil
			}
			return "", err
		}
		return "Backup deleted.", nil
	}
	return "", fmt.Errorf("unknown subcommand %q", req.subcommand)
}

func formatStatus(cfg protection.Config, raid protection.RaidMode) string {
	t := cfg.AntiNuke.Thresholds
	lines := []string{
		"Protection: " + onOff(cfg.Enabled),
		fmt.Sprintf("Anti-nuke: %s, action %s, limits roles=%d channels=%d bans=%d kicks=%d, %d whitelisted",
			onOff(cfg.AntiNuke.Enabled), cfg.AntiNuke.Action, t.RoleCreateDelete, t.ChannelCreateDelete, t.Bans, t.Kicks, len(cfg.AntiNuke.Whitelist)),
		fmt.Sprintf("Anti-link: %s, action %s", onOff(cfg.AntiLinks.Enabled), cfg.AntiLinks.Action),
		fmt.Sprintf("Anti-mention: %s, max %d, block everyone %s, action %s",
			onOff(cfg.AntiMentions.Enabled), cfg.AntiMentions.MaxMentionsUser, onOff(cfg.AntiMentions.BlockEveryone), cfg.AntiMentions.Action),
		fmt.Sprintf("Anti-alts: %s, min age %d days, mode %s", onOff(cfg.AntiAlts.Enabled), cfg.AntiAlts.MinAccountAgeDays, cfg.AntiAlts.Mode),
		fmt.Sprintf("Auto-punish: %s, %d rungs", onOff(cfg.AutoPunish.Enabled), len(cfg.AutoPunish.Thresholds)),
		formatRaid(raid),
	}
	if cfg.LogChannelID != "" {
		lines = append(lines, fmt.Sprintf("Log channel: <#%s>", cfg.LogChannelID))
	} else {
		lines = append(lines, "Log channel: not set")
	}
	return strings.Join(lines, "\n")
}

func formatRaid(raid protection.RaidMode) string {
	if !raid.Enabled {
		return "Raid mode: off"
	}
	if raid.EndsAt == nil {
		if raid.Auto {
			return "Raid mode: on (automatic, until disabled)"
		}
		return "Raid mode: on (until disabled)"
	}
	return fmt.Sprintf("Raid mode: on until %s", raid.EndsAt.UTC().Format(time.RFC3339))
}

func formatWarns(userID string, warns []storage.Warn) string {
	if len(warns) == 0 {
		return fmt.Sprintf("<@%s> has no warns.", userID)
	}
	lines := []string{fmt.Sprintf("<@%s> has %d warns:", userID, len(warns))}
	for _, warn := range warns {
		lines = append(lines, fmt.Sprintf("`%s` %s by <@%s>: %s", warn.ID, warn.CreatedAt.UTC().Format("2006-01-02"), warn.ModID, warn.Reason))
	}
	return strings.Join(lines, "\n")
}

func formatLadder(ap protection.AutoPunish) string {
	if len(ap.Thresholds) == 0 {
		return "Auto-punish " + onOff(ap.Enabled) + ", no rungs."
	}
	lines := []string{"Auto-punish " + onOff(ap.Enabled) + ":"}
	for _, rung := range ap.Thresholds {
		line := fmt.Sprintf("%d warns: %s", rung.WarnCount, rung.Action)
		if rung.DurationMinutes > 0 {
			line += fmt.Sprintf(" (%d min)", rung.DurationMinutes)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func setRung(rungs []protection.PunishAt, rung protection.PunishAt) []protection.PunishAt {
	out := removeRung(rungs, rung.WarnCount)
	out = append(out, rung)
	sort.Slice(out, func(i, j int) bool { return out[i].WarnCount < out[j].WarnCount })
	return out
}

func removeRung(rungs []protection.PunishAt, count int) []protection.PunishAt {
	out := make([]protection.PunishAt, 0, len(rungs))
	for _, rung := range rungs {
		if rung.WarnCount != count {
			out = append(out, rung)
		}
	}
	return out
}

// editAllowList adds or removes domain. A nil list stands for the defaults, so the first
// edit starts from a copy of them; removing the last entry leaves an empty, non-nil list.
func editAllowList(list []string, domain string, allow bool) []string {
	if list == nil {
		list = append([]string(nil), protection.DefaultAllowList...)
	}
	if allow {
		return addUnique(list, domain)
	}
	return removeValue(list, domain)
}

func formatAllowList(list []string) string {
	switch {
	case list == nil:
		return "Allowed domains (defaults): " + strings.Join(protection.DefaultAllowList, ", ")
	case len(list) == 0:
		return "No domains are allowed; every link is blocked."
	default:
		return "Allowed domains: " + strings.Join(list, ", ")
	}
}

func addUnique(list []string, value string) []string {
	for _, item := range list {
		if item == value {
			return list
		}
	}
	out := make([]string, 0, len(list)+1)
	return append(append(out, list...), value)
}

func removeValue(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != value {
			out = append(out, item)
		}
	}
	return out
}

func mentions(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "<@"+id+">")
	}
	return strings.Join(parts, ", ")
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
