package bot

import (
	"math"
	"testing"
	"time"

	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      "g1",
		Name:    "Test Guild",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Name: "@everyone", Permissions: discordgo.PermissionSendMessages, Position: 0},
			{ID: "mod", Name: "Mod", Permissions: discordgo.PermissionKickMembers, Position: 5},
			{ID: "helper", Name: "Helper", Permissions: discordgo.PermissionManageMessages, Position: 2},
			{ID: "integration", Name: "Some Bot", Managed: true, Position: 4},
		},
	}
}

func TestMemberFromGuildCombinesRoles(t *testing.T) {
	member := memberFromGuild(testGuild(), "u1", []string{"helper", "mod", "missing"})

	assert.Equal(t, 5, member.TopRolePosition)
	assert.True(t, member.Has(discordgo.PermissionKickMembers))
	assert.True(t, member.Has(discordgo.PermissionManageMessages))
	assert.True(t, member.Has(discordgo.PermissionSendMessages))
	assert.False(t, member.Has(discordgo.PermissionBanMembers))
}

func TestMemberFromGuildOwnerOutranksEveryone(t *testing.T) {
	member := memberFromGuild(testGuild(), "owner", nil)

	assert.Equal(t, math.MaxInt32, member.TopRolePosition)
	assert.True(t, member.Has(discordgo.PermissionBanMembers))
}

func TestMessageFromEvent(t *testing.T) {
	msg := messageFromEvent(&discordgo.Message{
		ID:              "m1",
		ChannelID:       "c1",
		GuildID:         "g1",
		Content:         "hello <@u2>",
		Author:          &discordgo.User{ID: "u1"},
		Mentions:        []*discordgo.User{{ID: "u2"}, nil, {ID: "u3"}},
		MentionRoles:    []string{"r1"},
		MentionEveryone: true,
	}, discordgo.PermissionManageMessages)

	assert.Equal(t, protection.Message{
		GuildID:           "g1",
		ChannelID:         "c1",
		MessageID:         "m1",
		AuthorID:          "u1",
		AuthorPermissions: discordgo.PermissionManageMessages,
		Content:           "hello <@u2>",
		MentionUserIDs:    []string{"u2", "u3"},
		MentionRoleIDs:    []string{"r1"},
		MentionEveryone:   true,
	}, msg)
}

func TestSnapshotGuildSplitsCategories(t *testing.T) {
	data := snapshotGuild(testGuild(), []*discordgo.Channel{
		{ID: "cat", Name: "General", Type: discordgo.ChannelTypeGuildCategory},
		{ID: "text", Name: "chat", Type: discordgo.ChannelTypeGuildText, ParentID: "cat", Topic: "talk",
			PermissionOverwrites: []*discordgo.PermissionOverwrite{{ID: "mod", Type: discordgo.PermissionOverwriteTypeRole, Allow: 1, Deny: 2}}},
	}, nil)

	assert.Equal(t, "Test Guild", data.GuildName)
	require.Len(t, data.Roles, 3)
	assert.Equal(t, "g1", data.Roles[0].ID)
	assert.Equal(t, "mod", data.Roles[2].ID)

	require.Len(t, data.Categories, 1)
	assert.Equal(t, "cat", data.Categories[0].ID)
	require.Len(t, data.Channels, 1)
	assert.Equal(t, "cat", data.Channels[0].ParentID)
	require.Len(t, data.Channels[0].Overwrites, 1)
	assert.Equal(t, int64(1), data.Channels[0].Overwrites[0].Allow)
}

func TestSnapshotGuildKeepsMemberRoles(t *testing.T) {
	data := snapshotGuild(testGuild(), nil, []*discordgo.Member{
		{User: &discordgo.User{ID: "u1"}, Roles: []string{"mod", "integration", "deleted"}},
		{User: &discordgo.User{ID: "u2"}, Roles: []string{"g1"}},
		{User: &discordgo.User{ID: "u3"}},
		{User: &discordgo.User{ID: "bot", Bot: true}, Roles: []string{"helper"}},
		{Roles: []string{"mod"}},
	})

	assert.Equal(t, []storage.BackupMember{{ID: "u1", RoleIDs: []string{"mod"}}}, data.Members)
}

func TestMergeRoles(t *testing.T) {
	current := []string{"a", "b"}
	merged := mergeRoles(current, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
	assert.Equal(t, []string{"a", "b"}, current)
}

func TestAuditEntryUsesSnowflakeTime(t *testing.T) {
	entry, err := auditEntry(&discordgo.AuditLogEntry{ID: "175928847299117063", UserID: "actor", TargetID: "target"})
	require.NoError(t, err)

	assert.Equal(t, "actor", entry.ExecutorID)
	assert.Equal(t, "target", entry.TargetID)
	assert.Equal(t, time.Date(2016, 4, 30, 11, 18, 25, 796_000_000, time.UTC), entry.CreatedAt.UTC())

	_, err = auditEntry(&discordgo.AuditLogEntry{ID: "nope"})
	assert.Error(t, err)
}

func TestOptionsOfSubcommand(t *testing.T) {
	sub, opts := optionsOf([]*discordgo.ApplicationCommandInteractionDataOption{{
		Name: "threshold",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "kind", Type: discordgo.ApplicationCommandOptionString, Value: " bans "},
			{Name: "value", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(4)},
			{Name: "enabled", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		},
	}})

	assert.Equal(t, "threshold", sub)
	assert.Equal(t, "bans", opts.stringValue("kind"))
	value, ok := opts.intValue("value")
	assert.True(t, ok)
	assert.Equal(t, 4, value)
	assert.True(t, opts.boolValue("enabled"))
	_, ok = opts.intValue("missing")
	assert.False(t, ok)
	assert.Empty(t, opts.stringValue("missing"))
}

func TestSetNukeThreshold(t *testing.T) {
	var thresholds protection.NukeThresholds
	require.NoError(t, setNukeThreshold(&thresholds, "bans", 2))
	require.NoError(t, setNukeThreshold(&thresholds, "roles", 4))
	assert.Equal(t, 2, thresholds.For(protection.KindBan))
	assert.Equal(t, 4, thresholds.For(protection.KindRoleDelete))
	assert.Error(t, setNukeThreshold(&thresholds, "webhooks", 1))
}

func TestLadderEditing(t *testing.T) {
	rungs := []protection.PunishAt{
		{WarnCount: 5, Action: protection.PunishKick},
		{WarnCount: 3, Action: protection.PunishTimeout, DurationMinutes: 60},
	}
	rungs = setRung(rungs, protection.PunishAt{WarnCount: 5, Action: protection.PunishBan})
	rungs = setRung(rungs, protection.PunishAt{WarnCount: 1, Action: protection.PunishTimeout, DurationMinutes: 5})

	require.Len(t, rungs, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{rungs[0].WarnCount, rungs[1].WarnCount, rungs[2].WarnCount})
	assert.Equal(t, protection.PunishBan, rungs[2].Action)

	rungs = removeRung(rungs, 3)
	assert.Len(t, rungs, 2)
	assert.Contains(t, formatLadder(protection.AutoPunish{Enabled: true, Thresholds: rungs}), "5 warns: ban")
}

func TestListHelpers(t *testing.T) {
	list := addUnique([]string{"a"}, "b")
	list = addUnique(list, "a")
	assert.Equal(t, []string{"a", "b"}, list)
	assert.Equal(t, []string{"b"}, removeValue(list, "a"))
	assert.Equal(t, "<@a>, <@b>", mentions(list))
}

func TestFormatRaid(t *testing.T) {
	ends := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "Raid mode: off", formatRaid(protection.RaidMode{}))
	assert.Contains(t, formatRaid(protection.RaidMode{Enabled: true, Auto: true}), "automatic")
	assert.Equal(t, "Raid mode: on until 2026-01-02T03:04:05Z", formatRaid(protection.RaidMode{Enabled: true, EndsAt: &ends}))
}

func TestFormatStatus(t *testing.T) {
	cfg := protection.DefaultConfig()
	cfg.LogChannelID = "logs"

	status := formatStatus(cfg, protection.RaidMode{})
	assert.Contains(t, status, "Protection: enabled")
	assert.Contains(t, status, "limits roles=3 channels=3 bans=3 kicks=3")
	assert.Contains(t, status, "Log channel: <#logs>")
}

func TestCommandDefinitionsHaveHandlers(t *testing.T) {
	handlers := (&Bot{}).commandHandlers()
	for _, cmd := range commandDefinitions() {
		_, ok := handlers[cmd.Name]
		assert.True(t, ok, cmd.Name)
	}
	assert.Len(t, handlers, len(commandDefinitions()))
}

func TestEditAllowListDownToEmpty(t *testing.T) {
	list := editAllowList(nil, "example.org", true)
	assert.Contains(t, list, "discord.gg")
	assert.Contains(t, list, "example.org")
	assert.NotContains(t, protection.DefaultAllowList, "example.org")

	list = []string{"example.org"}
	list = editAllowList(list, "example.org", false)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Contains(t, formatAllowList(list), "every link is blocked")
	assert.Contains(t, formatAllowList(nil), "defaults")
}

func TestAddUniqueDoesNotWriteIntoSharedArray(t *testing.T) {
	backing := make([]string, 1, 4)
	backing[0] = "a"
	grown := addUnique(backing, "b")
	other := addUnique(backing, "c")

	assert.Equal(t, []string{"a", "b"}, grown)
	assert.Equal(t, []string{"a", "c"}, other)
}
