package bot

import "github.com/bwmarrin/discordgo"

var (
	adminPermission     int64 = discordgo.PermissionAdministrator
	moderatorPermission int64 = discordgo.PermissionModerateMembers
	dmPermission              = false
)

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func option(kind discordgo.ApplicationCommandOptionType, name, description string, required bool, choices ...string) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Type:        kind,
		Name:        name,
		Description: description,
		Required:    required,
	}
	for _, choice := range choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
	}
	return opt
}

var (
	punishChoices = []string{"ban", "kick", "timeout", "quarantine"}
	filterChoices = []string{"delete", "warn", "timeout"}
	nukeKinds     = []string{"all", "role_create", "role_delete", "channel_create", "channel_delete", "ban", "kick"}
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	enabled := func() *discordgo.ApplicationCommandOption {
		return option(discordgo.ApplicationCommandOptionBoolean, "enabled", "on or off", true)
	}
	user := func(required bool) *discordgo.ApplicationCommandOption {
		return option(discordgo.ApplicationCommandOptionUser, "user", "target user", required)
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "protection",
			Description:              "Guild protection settings",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("status", "Show protection status"),
				subcommand("enable", "Enable all protection"),
				subcommand("disable", "Disable all protection"),
				subcommand("report", "Security report",
					option(discordgo.ApplicationCommandOptionString, "period", "day or week", true, "day", "week")),
				subcommand("logchannel", "Set or clear the security log channel",
					option(discordgo.ApplicationCommandOptionChannel, "channel", "log channel, empty to clear", false)),
			},
		},
		{
			Name:                     "antinuke",
			Description:              "Anti-nuke settings",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("threshold", "Set a per-actor limit",
					option(discordgo.ApplicationCommandOptionString, "kind", "tracked action", true, "roles", "channels", "bans", "kicks"),
					option(discordgo.ApplicationCommandOptionInteger, "value", "actions allowed per window", true)),
				subcommand("action", "Set the punishment for a breach",
					option(discordgo.ApplicationCommandOptionString, "value", "punishment", true, punishChoices...)),
				subcommand("toggle", "Enable or disable anti-nuke or one tracked action",
					option(discordgo.ApplicationCommandOptionString, "kind", "tracked action", true, nukeKinds...),
					enabled()),
				subcommand("whitelist", "Manage exempt users",
					option(discordgo.ApplicationCommandOptionString, "action", "add, remove, list", true, "add", "remove", "list"),
					user(false)),
			},
		},
		{
			Name:                     "antilinks",
			Description:              "Anti-link filter",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("toggle", "Enable or disable the filter", enabled()),
				subcommand("action", "Set the filter action",
					option(discordgo.ApplicationCommandOptionString, "value", "action", true, filterChoices...)),
				subcommand("allow", "Allow a domain",
					option(discordgo.ApplicationCommandOptionString, "domain", "domain", true)),
				subcommand("disallow", "Remove an allowed domain",
					option(discordgo.ApplicationCommandOptionString, "domain", "domain", true)),
				subcommand("list", "Show allowed domains"),
			},
		},
		{
			Name:                     "antimentions",
			Description:              "Anti-mention filter",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("toggle", "Enable or disable the filter", enabled()),
				subcommand("max", "Set the mention limit per message",
					option(discordgo.ApplicationCommandOptionInteger, "value", "mentions allowed", true)),
				subcommand("everyone", "Block @everyone and @here", enabled()),
				subcommand("action", "Set the filter action",
					option(discordgo.ApplicationCommandOptionString, "value", "action", true, filterChoices...)),
			},
		},
		{
			Name:                     "antialts",
			Description:              "New account screening",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("toggle", "Enable or disable screening", enabled()),
				subcommand("age", "Set the minimum account age",
					option(discordgo.ApplicationCommandOptionInteger, "days", "minimum age in days", true)),
				subcommand("mode", "Set what happens to young accounts",
					option(discordgo.ApplicationCommandOptionString, "value", "mode", true, append(append([]string{}, punishChoices...), "flag")...)),
			},
		},
		{
			Name:                     "quarantine",
			Description:              "Quarantine setup and use",
			DefaultMemberPermissions: &moderatorPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("setup", "Set the quarantine role and channel",
					option(discordgo.ApplicationCommandOptionRole, "role", "quarantine role", true),
					option(discordgo.ApplicationCommandOptionChannel, "channel", "quarantine channel", false)),
				subcommand("user", "Quarantine a member",
					user(true),
					option(discordgo.ApplicationCommandOptionString, "reason", "reason", false)),
			},
		},
		{
			Name:                     "raidmode",
			Description:              "Raid mode",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("on", "Enable raid mode",
					option(discordgo.ApplicationCommandOptionInteger, "minutes", "duration, empty until disabled", false)),
				subcommand("off", "Disable raid mode"),
				subcommand("status", "Show raid mode state"),
			},
		},
		{
			Name:                     "warn",
			Description:              "Warn a member",
			DefaultMemberPermissions: &moderatorPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				user(true),
				option(discordgo.ApplicationCommandOptionString, "reason", "reason", false),
			},
		},
		{
			Name:                     "warnings",
			Description:              "Manage warns",
			DefaultMemberPermissions: &moderatorPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("list", "List a member's warns", user(true)),
				subcommand("remove", "Delete one warn",
					option(discordgo.ApplicationCommandOptionString, "id", "warn id", true)),
				subcommand("clear", "Delete all warns of a member", user(true)),
			},
		},
		{
			Name:                     "autopunish",
			Description:              "Warn escalation ladder",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("toggle", "Enable or disable escalation", enabled()),
				subcommand("set", "Set the action for a warn count",
					option(discordgo.ApplicationCommandOptionInteger, "count", "warn count", true),
					option(discordgo.ApplicationCommandOptionString, "action", "action", true, "ban", "kick", "timeout"),
					option(discordgo.ApplicationCommandOptionInteger, "minutes", "timeout minutes", false)),
				subcommand("remove", "Remove the rung for a warn count",
					option(discordgo.ApplicationCommandOptionInteger, "count", "warn count", true)),
				subcommand("list", "Show the ladder"),
			},
		},
		{
			Name:         "globalban",
			Description:  "Ban a user from every protected guild",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Add a global ban",
					user(true),
					option(discordgo.ApplicationCommandOptionString, "reason", "reason", false)),
				subcommand("remove", "Remove a global ban", user(true)),
			},
		},
		{
			Name:                     "inspect",
			Description:              "Show account age, global ban and warns",
			DefaultMemberPermissions: &moderatorPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				user(true),
			},
		},
		{
			Name:                     "backup",
			Description:              "Guild structure backups",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("create", "Snapshot roles and channels"),
				subcommand("list", "List backups"),
				subcommand("restore", "Recreate roles and channels from a backup",
					option(discordgo.ApplicationCommandOptionString, "id", "backup id", true)),
				subcommand("delete", "Delete a backup",
					option(discordgo.ApplicationCommandOptionString, "id", "backup id", true)),
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
