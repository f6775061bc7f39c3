package protection

import "github.com/bwmarrin/discordgo"

// Member is the slice of guild-member state the guard needs.
type Member struct {
	UserID          string
	RoleIDs         []string
	TopRolePosition int
	Permissions     int64
}

func (m *Member) Has(permission int64) bool {
	if m == nil {
		return false
	}
	if m.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return m.Permissions&permission != 0
}

// IsExempt reports whether actorID is the guild owner or explicitly whitelisted.
func IsExempt(cfg Config, actorID, ownerID string) bool {
	if actorID == "" {
		return false
	}
	if actorID == ownerID {
		return true
	}
	for _, id := range cfg.AntiNuke.Whitelist {
		if id == actorID {
			return true
		}
	}
	return false
}

// CanPunish reports whether bot holds permission and sits strictly above target in the
// role hierarchy.
func CanPunish(bot, target *Member, permission int64) bool {
	if bot == nil || target == nil {
		return false
	}
	if !bot.Has(permission) {
		return false
	}
	return bot.TopRolePosition > target.TopRolePosition
}

// RequiredPermission maps a punishment to the permission the bot needs to apply it.
func RequiredPermission(p Punishment) int64 {
	switch p {
	case PunishBan:
		return discordgo.PermissionBanMembers
	case PunishKick:
		return discordgo.PermissionKickMembers
	case PunishTimeout:
		return discordgo.PermissionModerateMembers
	case PunishQuarantine:
		return discordgo.PermissionManageRoles
	default:
		return 0
	}
}

// IsModerator reports whether permissions exempt a member from message filters.
func IsModerator(permissions int64) bool {
	return permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageMessages|discordgo.PermissionManageServer) != 0
}
