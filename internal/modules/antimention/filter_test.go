package antimention

import (
	"testing"

	"guardbot/internal/protection"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func enabled() protection.AntiMentions {
	cfg := protection.DefaultConfig().AntiMentions
	cfg.Enabled = true
	return cfg
}

func sixUsers() protection.Message {
	return protection.Message{MentionUserIDs: []string{"1", "2", "3", "4", "5", "6"}}
}

func TestTooManyMentions(t *testing.T) {
	verdict := Check(enabled(), sixUsers())
	assert.True(t, verdict.ShouldAct)
	assert.Contains(t, verdict.Reason, "6")
	assert.Equal(t, protection.PunishDelete, verdict.Action)
}

func TestModeratorIsExempt(t *testing.T) {
	msg := sixUsers()
	msg.AuthorPermissions = discordgo.PermissionManageMessages
	assert.False(t, Check(enabled(), msg).ShouldAct)
}

func TestDuplicateMentionsCountOnce(t *testing.T) {
	msg := protection.Message{MentionUserIDs: []string{"1", "1", "2", "2", "3", "3"}}
	assert.False(t, Check(enabled(), msg).ShouldAct)
}

func TestRolesCountTowardsLimit(t *testing.T) {
	msg := protection.Message{MentionUserIDs: []string{"1", "2", "3"}, MentionRoleIDs: []string{"a", "b", "c"}}
	assert.True(t, Check(enabled(), msg).ShouldAct)
}

func TestBroadcastMention(t *testing.T) {
	verdict := Check(enabled(), protection.Message{Content: "hey @everyone"})
	assert.True(t, verdict.ShouldAct)
	assert.Contains(t, verdict.Reason, "broadcast")

	cfg := enabled()
	cfg.BlockEveryone = false
	assert.False(t, Check(cfg, protection.Message{Content: "hey @here"}).ShouldAct)
}
