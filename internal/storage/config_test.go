package storage

import (
	"testing"

	"guardbot/internal/protection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfigLeavesDefaultsIntact(t *testing.T) {
	s := &Store{defaults: protection.DefaultConfig()}

	first, err := s.decodeConfig([]byte(`{
		"antiNuke": {"whitelist": ["u1"]},
		"antiLinks": {"allowList": ["evil.example"]},
		"autoPunish": {"thresholds": [{"warnCount": 1, "action": "ban", "durationMinutes": 60}]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.example"}, first.AntiLinks.AllowList)
	assert.Equal(t, []string{"u1"}, first.AntiNuke.Whitelist)
	require.Len(t, first.AutoPunish.Thresholds, 1)

	second, err := s.decodeConfig([]byte(`{"enabled": false}`))
	require.NoError(t, err)
	assert.False(t, second.Enabled)

	defaults := protection.DefaultConfig()
	assert.Equal(t, defaults, s.defaults)
	assert.Equal(t, defaults.AntiLinks.AllowList, second.AntiLinks.AllowList)
	assert.Equal(t, defaults.AutoPunish.Thresholds, second.AutoPunish.Thresholds)
	assert.Empty(t, second.AntiNuke.Whitelist)
}

func TestDecodeConfigKeepsEmptyAllowList(t *testing.T) {
	s := &Store{defaults: protection.DefaultConfig()}

	cfg, err := s.decodeConfig([]byte(`{"antiLinks": {"enabled": true, "allowList": []}}`))
	require.NoError(t, err)
	assert.NotNil(t, cfg.AntiLinks.AllowList)
	assert.Empty(t, cfg.AntiLinks.AllowList)
}

func TestSetDefaultsCopiesInput(t *testing.T) {
	s := &Store{}
	cfg := protection.DefaultConfig()
	s.SetDefaults(cfg)
	cfg.AntiLinks.AllowList[0] = "evil.example"

	assert.Equal(t, "discord.gg", s.defaults.AntiLinks.AllowList[0])
}
