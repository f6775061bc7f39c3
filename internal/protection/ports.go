package protection

import (
	"context"
	"time"
)

type ConfigStore interface {
	LoadConfig(ctx context.Context, guildID string) (Config, error)
	// UpdateConfig applies mutate to the stored config atomically, creating it from
	// defaults when the guild has none yet.
	UpdateConfig(ctx context.Context, guildID string, mutate func(*Config) error) error
}

type AuditEntry struct {
	ExecutorID string
	TargetID   string
	CreatedAt  time.Time
}

type AuditSource interface {
	// FetchRecentEntry returns the newest audit entry of kind, or nil when there is none.
	FetchRecentEntry(ctx context.Context, guildID string, kind ActionKind) (*AuditEntry, error)
}

type EntityType string

const (
	EntityRole    EntityType = "role"
	EntityChannel EntityType = "channel"
	EntityInvite  EntityType = "invite"
)

type EntityRef struct {
	Type EntityType
	ID   string
}

type Actuator interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	DeleteEntity(ctx context.Context, guildID string, ref EntityRef, reason string) error
	SetRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	SendDM(ctx context.Context, userID, content string) error
	SendMessage(ctx context.Context, channelID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type Directory interface {
	OwnerID(ctx context.Context, guildID string) (string, error)
	// Member returns nil without error when the user is not in the guild.
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	Self(ctx context.Context, guildID string) (*Member, error)
}
