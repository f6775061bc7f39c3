package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"time"

	"guardbot/internal/modules/backup"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

const restoreReason = "backup restore"

// discordAdapter implements the protection ports over a gateway session. Every REST
// call waits on a shared limiter first.
type discordAdapter struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func newDiscordAdapter(session *discordgo.Session, perSecond float64, burst int) *discordAdapter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &discordAdapter{session: session, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (a *discordAdapter) wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// requestOptions binds a REST call to ctx and, when reason is set, attaches it to the
// audit log entry Discord records for the call.
func requestOptions(ctx context.Context, reason string) []discordgo.RequestOption {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(url.PathEscape(reason)))
	}
	return opts
}

func (a *discordAdapter) Ban(ctx context.Context, guildID, userID, reason string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

func (a *discordAdapter) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (a *discordAdapter) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	until := time.Now().Add(duration)
	return a.session.GuildMemberTimeout(guildID, userID, &until, requestOptions(ctx, reason)...)
}

func (a *discordAdapter) Unban(ctx context.Context, guildID, userID, reason string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.session.GuildBanDelete(guildID, userID, requestOptions(ctx, reason)...)
}

func (a *discordAdapter) DeleteEntity(ctx context.Context, guildID string, ref protection.EntityRef, reason string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	switch ref.Type {
	case protection.EntityRole:
		return a.session.GuildRoleDelete(guildID, ref.ID, requestOptions(ctx, reason)...)
	case protection.EntityChannel:
		_, err := a.session.ChannelDelete(ref.ID, requestOptions(ctx, reason)...)
		return err
	case protection.EntityInvite:
		_, err := a.session.InviteDelete(ref.ID, requestOptions(ctx, reason)...)
		return err
	default:
		return fmt.Errorf("unsupported entity type %q", ref.Type)
	}
}

func (a *discordAdapter) SetRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	roles := append([]string{}, roleIDs...)
	_, err := a.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, discordgo.WithContext(ctx))
	return err
}

func (a *discordAdapter) SendDM(ctx context.Context, userID, content string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	channel, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = a.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return err
}

func (a *discordAdapter) SendMessage(ctx context.Context, channelID, content string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	_, err := a.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

func (a *discordAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (a *discordAdapter) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := a.session.State.Guild(guildID); err == nil && guild != nil {
		return guild, nil
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	return a.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (a *discordAdapter) OwnerID(ctx context.Context, guildID string) (string, error) {
	guild, err := a.guild(ctx, guildID)
	if err != nil {
		return "", err
	}
	return guild.OwnerID, nil
}

func (a *discordAdapter) Member(ctx context.Context, guildID, userID string) (*protection.Member, error) {
	guild, err := a.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	member, err := a.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		if err := a.wait(ctx); err != nil {
			return nil, err
		}
		member, err = a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
	}
	return memberFromGuild(guild, userID, member.Roles), nil
}

func (a *discordAdapter) Self(ctx context.Context, guildID string) (*protection.Member, error) {
	if a.session.State == nil || a.session.State.User == nil {
		return nil, errors.New("session not ready")
	}
	return a.Member(ctx, guildID, a.session.State.User.ID)
}

// memberPermissions returns the guild-level permissions of an author known only by role
// IDs, as delivered with message events.
func (a *discordAdapter) memberPermissions(ctx context.Context, guildID, userID string, roleIDs []string) int64 {
	guild, err := a.guild(ctx, guildID)
	if err != nil {
		return 0
	}
	return memberFromGuild(guild, userID, roleIDs).Permissions
}

func memberFromGuild(guild *discordgo.Guild, userID string, roleIDs []string) *protection.Member {
	member := &protection.Member{UserID: userID, RoleIDs: append([]string(nil), roleIDs...)}
	if guild.OwnerID == userID {
		member.Permissions = discordgo.PermissionAll
		member.TopRolePosition = math.MaxInt32
		return member
	}

	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roles[role.ID] = role
	}
	if everyone := roles[guild.ID]; everyone != nil {
		member.Permissions |= everyone.Permissions
	}
	for _, id := range roleIDs {
		role := roles[id]
		if role == nil {
			continue
		}
		member.Permissions |= role.Permissions
		if role.Position > member.TopRolePosition {
			member.TopRolePosition = role.Position
		}
	}
	return member
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

var auditActions = map[protection.ActionKind]discordgo.AuditLogAction{
	protection.KindRoleCreate:    discordgo.AuditLogActionRoleCreate,
	protection.KindRoleDelete:    discordgo.AuditLogActionRoleDelete,
	protection.KindChannelCreate: discordgo.AuditLogActionChannelCreate,
	protection.KindChannelDelete: discordgo.AuditLogActionChannelDelete,
	protection.KindBan:           discordgo.AuditLogActionMemberBanAdd,
	protection.KindKick:          discordgo.AuditLogActionMemberKick,
}

func (a *discordAdapter) FetchRecentEntry(ctx context.Context, guildID string, kind protection.ActionKind) (*protection.AuditEntry, error) {
	action, ok := auditActions[kind]
	if !ok {
		return nil, fmt.Errorf("no audit action for %q", kind)
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	logs, err := a.session.GuildAuditLog(guildID, "", "", int(action), 1, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if logs == nil || len(logs.AuditLogEntries) == 0 || logs.AuditLogEntries[0] == nil {
		return nil, nil
	}
	return auditEntry(logs.AuditLogEntries[0])
}

func auditEntry(entry *discordgo.AuditLogEntry) (*protection.AuditEntry, error) {
	id, err := snowflake.Parse(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("audit entry id: %w", err)
	}
	return &protection.AuditEntry{ExecutorID: entry.UserID, TargetID: entry.TargetID, CreatedAt: id.Time()}, nil
}

func (a *discordAdapter) Snapshot(ctx context.Context, guildID string) (storage.BackupData, error) {
	guild, err := a.guild(ctx, guildID)
	if err != nil {
		return storage.BackupData{}, err
	}
	if err := a.wait(ctx); err != nil {
		return storage.BackupData{}, err
	}
	channels, err := a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return storage.BackupData{}, err
	}
	members, err := a.guildMembers(ctx, guildID)
	if err != nil {
		return storage.BackupData{}, fmt.Errorf("list members: %w", err)
	}
	return snapshotGuild(guild, channels, members), nil
}

const membersPageSize = 1000

func (a *discordAdapter) guildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var out []*discordgo.Member
	after := ""
	for {
		if err := a.wait(ctx); err != nil {
			return nil, err
		}
		page, err := a.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < membersPageSize || page[len(page)-1].User == nil {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (a *discordAdapter) AssignRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	member, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return backup.ErrMemberNotFound
		}
		return err
	}
	roles := mergeRoles(member.Roles, roleIDs)
	if len(roles) == len(member.Roles) {
		return nil
	}
	if err := a.wait(ctx); err != nil {
		return err
	}
	_, err = a.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, requestOptions(ctx, restoreReason)...)
	return err
}

func mergeRoles(current, extra []string) []string {
	out := append([]string(nil), current...)
	for _, id := range extra {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func snapshotGuild(guild *discordgo.Guild, channels []*discordgo.Channel, members []*discordgo.Member) storage.BackupData {
	data := storage.BackupData{GuildName: guild.Name}
	for _, role := range guild.Roles {
		if role.Managed {
			continue
		}
		data.Roles = append(data.Roles, storage.BackupRole{
			ID:          role.ID,
			Name:        role.Name,
			Color:       role.Color,
			Hoist:       role.Hoist,
			Mentionable: role.Mentionable,
			Permissions: role.Permissions,
			Position:    role.Position,
		})
	}
	sort.SliceStable(data.Roles, func(i, j int) bool { return data.Roles[i].Position < data.Roles[j].Position })

	for _, channel := range channels {
		entry := storage.BackupChannel{
			ID:               channel.ID,
			Name:             channel.Name,
			Type:             int(channel.Type),
			Topic:            channel.Topic,
			Position:         channel.Position,
			ParentID:         channel.ParentID,
			NSFW:             channel.NSFW,
			RateLimitPerUser: channel.RateLimitPerUser,
			Bitrate:          channel.Bitrate,
			UserLimit:        channel.UserLimit,
		}
		for _, ow := range channel.PermissionOverwrites {
			entry.Overwrites = append(entry.Overwrites, storage.BackupOverwrite{
				ID:    ow.ID,
				Type:  int(ow.Type),
				Allow: ow.Allow,
				Deny:  ow.Deny,
			})
		}
		if channel.Type == discordgo.ChannelTypeGuildCategory {
			data.Categories = append(data.Categories, entry)
		} else {
			data.Channels = append(data.Channels, entry)
		}
	}

	saved := make(map[string]bool, len(data.Roles))
	for _, role := range data.Roles {
		saved[role.ID] = role.ID != guild.ID
	}
	for _, member := range members {
		if member.User == nil || member.User.Bot {
			continue
		}
		var roleIDs []string
		for _, id := range member.Roles {
			if saved[id] {
				roleIDs = append(roleIDs, id)
			}
		}
		if len(roleIDs) > 0 {
			data.Members = append(data.Members, storage.BackupMember{ID: member.User.ID, RoleIDs: roleIDs})
		}
	}
	return data
}

func (a *discordAdapter) CreateRole(ctx context.Context, guildID string, role storage.BackupRole) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	color, hoist, mentionable, perms := role.Color, role.Hoist, role.Mentionable, role.Permissions
	created, err := a.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        role.Name,
		Color:       &color,
		Hoist:       &hoist,
		Mentionable: &mentionable,
		Permissions: &perms,
	}, requestOptions(ctx, restoreReason)...)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (a *discordAdapter) CreateChannel(ctx context.Context, guildID string, channel storage.BackupChannel) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(channel.Overwrites))
	for _, ow := range channel.Overwrites {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    ow.ID,
			Type:  discordgo.PermissionOverwriteType(ow.Type),
			Allow: ow.Allow,
			Deny:  ow.Deny,
		})
	}
	created, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 channel.Name,
		Type:                 discordgo.ChannelType(channel.Type),
		Topic:                channel.Topic,
		Bitrate:              channel.Bitrate,
		UserLimit:            channel.UserLimit,
		RateLimitPerUser:     channel.RateLimitPerUser,
		Position:             channel.Position,
		PermissionOverwrites: overwrites,
		ParentID:             channel.ParentID,
		NSFW:                 channel.NSFW,
	}, requestOptions(ctx, restoreReason)...)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}
