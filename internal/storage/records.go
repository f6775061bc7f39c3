package storage

import (
	"context"
	"time"
)

type SuspiciousAccount struct {
	GuildID        string
	UserID         string
	AccountAgeDays int
	Action         string
	CreatedAt      time.Time
}

type FilterViolation struct {
	GuildID   string
	UserID    string
	ChannelID string
	Filter    string
	Action    string
	Detail    string
	CreatedAt time.Time
}

func (s *Store) AddSuspiciousAccount(ctx context.Context, record SuspiciousAccount) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO suspicious_accounts (guild_id, user_id, account_age_days, action, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, record.GuildID, record.UserID, record.AccountAgeDays, record.Action, record.CreatedAt)
		return err
	})
}

func (s *Store) AddFilterViolation(ctx context.Context, record FilterViolation) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO filter_violations (guild_id, user_id, channel_id, filter, action, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, record.GuildID, record.UserID, record.ChannelID, record.Filter, record.Action, record.Detail, record.CreatedAt)
		return err
	})
}
