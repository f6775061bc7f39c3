package antilink

import (
	"testing"

	"guardbot/internal/protection"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func enabled() protection.AntiLinks {
	cfg := protection.DefaultConfig().AntiLinks
	cfg.Enabled = true
	return cfg
}

func TestBlocksUnknownHost(t *testing.T) {
	verdict := Check(enabled(), protection.Message{Content: "look https://evil.example/x now"})
	assert.True(t, verdict.ShouldAct)
	assert.Equal(t, protection.PunishDelete, verdict.Action)
	assert.Equal(t, []string{"https://evil.example/x"}, verdict.URLs)
}

func TestAllowsDefaultDomains(t *testing.T) {
	verdict := Check(enabled(), protection.Message{Content: "join https://discord.gg/abc"})
	assert.False(t, verdict.ShouldAct)
	assert.Empty(t, verdict.URLs)
}

func TestOnlyOffendingURLsReported(t *testing.T) {
	verdict := Check(enabled(), protection.Message{Content: "https://youtu.be/x and http://bad.test/y"})
	assert.True(t, verdict.ShouldAct)
	assert.Equal(t, []string{"http://bad.test/y"}, verdict.URLs)
}

func TestModeratorsAndDisabledAreExempt(t *testing.T) {
	msg := protection.Message{Content: "https://evil.example/x", AuthorPermissions: discordgo.PermissionManageMessages}
	assert.False(t, Check(enabled(), msg).ShouldAct)

	cfg := enabled()
	cfg.Enabled = false
	assert.False(t, Check(cfg, protection.Message{Content: "https://evil.example/x"}).ShouldAct)
}

func TestNilAllowListUsesDefaults(t *testing.T) {
	cfg := enabled()
	cfg.AllowList = nil
	cfg.Action = protection.PunishTimeout
	assert.False(t, Check(cfg, protection.Message{Content: "https://github.com/x"}).ShouldAct)

	verdict := Check(cfg, protection.Message{Content: "https://evil.example"})
	assert.Equal(t, protection.PunishTimeout, verdict.Action)
}

func TestEmptyAllowListBlocksEveryLink(t *testing.T) {
	cfg := enabled()
	cfg.AllowList = []string{}

	verdict := Check(cfg, protection.Message{Content: "https://discord.gg/abc"})
	assert.True(t, verdict.ShouldAct)
	assert.Equal(t, []string{"https://discord.gg/abc"}, verdict.URLs)
}
