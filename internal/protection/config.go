// Package protection holds the per-guild protection configuration and the decision
// helpers shared by every detector: exemption, hierarchy and threshold checks.
package protection

import "time"

type ActionKind string

const (
	KindRoleCreate    ActionKind = "role_create"
	KindRoleDelete    ActionKind = "role_delete"
	KindChannelCreate ActionKind = "channel_create"
	KindChannelDelete ActionKind = "channel_delete"
	KindBan           ActionKind = "ban"
	KindKick          ActionKind = "kick"
)

// NukeKinds lists every action kind the anti-nuke handler tracks.
var NukeKinds = []ActionKind{KindRoleCreate, KindRoleDelete, KindChannelCreate, KindChannelDelete, KindBan, KindKick}

func (k ActionKind) Reversible() bool {
	switch k {
	case KindRoleCreate, KindChannelCreate, KindBan:
		return true
	default:
		return false
	}
}

type Punishment string

const (
	PunishBan        Punishment = "ban"
	PunishKick       Punishment = "kick"
	PunishTimeout    Punishment = "timeout"
	PunishQuarantine Punishment = "quarantine"
	PunishFlag       Punishment = "flag"
	PunishAllow      Punishment = "allow"
	PunishDelete     Punishment = "delete"
	PunishWarn       Punishment = "warn"
)

type Config struct {
	Enabled      bool         `json:"enabled"`
	LogChannelID string       `json:"logChannelId,omitempty"`
	AntiNuke     AntiNuke     `json:"antiNuke"`
	AntiLinks    AntiLinks    `json:"antiLinks"`
	AntiMentions AntiMentions `json:"antiMentions"`
	AntiAlts     AntiAlts     `json:"antiAlts"`
	Quarantine   Quarantine   `json:"quarantine"`
	RaidMode     RaidMode     `json:"raidMode"`
	AutoPunish   AutoPunish   `json:"autoPunish"`
}

type AntiNuke struct {
	Enabled    bool           `json:"enabled"`
	Thresholds NukeThresholds `json:"thresholds"`
	Whitelist  []string       `json:"whitelist"`
	Actions    NukeActions    `json:"actions"`
	Action     Punishment     `json:"action"`
}

type NukeThresholds struct {
	RoleCreateDelete    int   `json:"roleCreateDelete"`
	ChannelCreateDelete int   `json:"channelCreateDelete"`
	Bans                int   `json:"bans"`
	Kicks               int   `json:"kicks"`
	TimeWindowMs        int64 `json:"timeWindowMs"`
}

// For returns the limit configured for kind, or 0 when the kind is not tracked.
func (t NukeThresholds) For(kind ActionKind) int {
	switch kind {
	case KindRoleCreate, KindRoleDelete:
		return t.RoleCreateDelete
	case KindChannelCreate, KindChannelDelete:
		return t.ChannelCreateDelete
	case KindBan:
		return t.Bans
	case KindKick:
		return t.Kicks
	default:
		return 0
	}
}

type NukeActions struct {
	RoleCreate    bool `json:"roleCreate"`
	RoleDelete    bool `json:"roleDelete"`
	ChannelCreate bool `json:"channelCreate"`
	ChannelDelete bool `json:"channelDelete"`
	MemberBan     bool `json:"memberBan"`
	MemberKick    bool `json:"memberKick"`
}

func (a NukeActions) Enabled(kind ActionKind) bool {
	switch kind {
	case KindRoleCreate:
		return a.RoleCreate
	case KindRoleDelete:
		return a.RoleDelete
	case KindChannelCreate:
		return a.ChannelCreate
	case KindChannelDelete:
		return a.ChannelDelete
	case KindBan:
		return a.MemberBan
	case KindKick:
		return a.MemberKick
	default:
		return false
	}
}

func (a *NukeActions) Set(kind ActionKind, enabled bool) bool {
	switch kind {
	case KindRoleCreate:
		a.RoleCreate = enabled
	case KindRoleDelete:
		a.RoleDelete = enabled
	case KindChannelCreate:
		a.ChannelCreate = enabled
	case KindChannelDelete:
		a.ChannelDelete = enabled
	case KindBan:
		a.MemberBan = enabled
	case KindKick:
		a.MemberKick = enabled
	default:
		return false
	}
	return true
}

type AntiLinks struct {
	Enabled        bool       `json:"enabled"`
	AllowList      []string   `json:"allowList"`
	Action         Punishment `json:"action"`
	TimeoutMinutes int        `json:"timeoutMinutes,omitempty"`
}

type AntiMentions struct {
	Enabled         bool       `json:"enabled"`
	MaxMentionsUser int        `json:"maxMentionsUser"`
	BlockEveryone   bool       `json:"blockEveryone"`
	Action          Punishment `json:"action"`
	TimeoutMinutes  int        `json:"timeoutMinutes,omitempty"`
}

type AntiAlts struct {
	Enabled           bool       `json:"enabled"`
	MinAccountAgeDays int        `json:"minAccountAgeDays"`
	Mode              Punishment `json:"mode"`
	TimeoutMinutes    int        `json:"timeoutMinutes,omitempty"`
}

type Quarantine struct {
	RoleID    string `json:"roleId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

type RaidMode struct {
	Enabled   bool       `json:"enabled"`
	EnabledAt *time.Time `json:"enabledAt,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	Auto      bool       `json:"auto"`
}

type AutoPunish struct {
	Enabled    bool       `json:"enabled"`
	Thresholds []PunishAt `json:"thresholds"`
}

// PunishAt is one rung of the warn ladder: reaching WarnCount warns applies Action.
type PunishAt struct {
	WarnCount       int        `json:"warnCount"`
	Action          Punishment `json:"action"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
}

// Rung returns the rung matching count exactly.
func (a AutoPunish) Rung(count int) (PunishAt, bool) {
	for _, rung := range a.Thresholds {
		if rung.WarnCount == count {
			return rung, true
		}
	}
	return PunishAt{}, false
}

// DefaultAllowList is the anti-link allow-list used when a guild has not set its own.
var DefaultAllowList = []string{
	"discord.gg",
	"discord.com",
	"discordapp.com",
	"discordapp.net",
	"youtube.com",
	"youtu.be",
	"twitch.tv",
	"twitter.com",
	"x.com",
	"tenor.com",
	"giphy.com",
	"imgur.com",
	"spotify.com",
	"github.com",
	"reddit.com",
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		AntiNuke: AntiNuke{
			Enabled: true,
			Thresholds: NukeThresholds{
				RoleCreateDelete:    3,
				ChannelCreateDelete: 3,
				Bans:                3,
				Kicks:               3,
				TimeWindowMs:        10_000,
			},
			Actions: NukeActions{
				RoleCreate:    true,
				RoleDelete:    true,
				ChannelCreate: true,
				ChannelDelete: true,
				MemberBan:     true,
				MemberKick:    true,
			},
			Action: PunishBan,
		},
		AntiLinks: AntiLinks{
			Enabled:        false,
			AllowList:      append([]string(nil), DefaultAllowList...),
			Action:         PunishDelete,
			TimeoutMinutes: 10,
		},
		AntiMentions: AntiMentions{
			Enabled:         false,
			MaxMentionsUser: 5,
			BlockEveryone:   true,
			Action:          PunishDelete,
			TimeoutMinutes:  10,
		},
		AntiAlts: AntiAlts{
			Enabled:           false,
			MinAccountAgeDays: 7,
			Mode:              PunishFlag,
			TimeoutMinutes:    60,
		},
		AutoPunish: AutoPunish{
			Enabled: false,
			Thresholds: []PunishAt{
				{WarnCount: 3, Action: PunishTimeout, DurationMinutes: 60},
				{WarnCount: 5, Action: PunishKick},
				{WarnCount: 7, Action: PunishBan},
			},
		},
	}
}

// Clone returns a deep copy of c. Decoding or mutating the copy never reaches c's slices
// or raid-mode timestamps.
func (c Config) Clone() Config {
	out := c
	out.AntiNuke.Whitelist = cloneStrings(c.AntiNuke.Whitelist)
	out.AntiLinks.AllowList = cloneStrings(c.AntiLinks.AllowList)
	if c.AutoPunish.Thresholds != nil {
		out.AutoPunish.Thresholds = append(make([]PunishAt, 0, len(c.AutoPunish.Thresholds)), c.AutoPunish.Thresholds...)
	}
	if c.RaidMode.EnabledAt != nil {
		at := *c.RaidMode.EnabledAt
		out.RaidMode.EnabledAt = &at
	}
	if c.RaidMode.EndsAt != nil {
		at := *c.RaidMode.EndsAt
		out.RaidMode.EndsAt = &at
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
