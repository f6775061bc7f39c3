package storage

import (
	"context"
	"time"
)

type GlobalBan struct {
	UserID   string
	Reason   string
	BannedBy string
	Date     time.Time
}

func (s *Store) AddGlobalBan(ctx context.Context, ban GlobalBan) error {
	if ban.Date.IsZero() {
		ban.Date = time.Now()
	}
	return withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO global_bans (user_id, reason, banned_by, banned_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				reason = excluded.reason,
				banned_by = excluded.banned_by,
				banned_at = excluded.banned_at
		`, ban.UserID, ban.Reason, ban.BannedBy, ban.Date)
		return err
	})
}

// GetGlobalBan returns ErrNotFound when the user is not globally banned.
func (s *Store) GetGlobalBan(ctx context.Context, userID string) (GlobalBan, error) {
	return withRetry(ctx, func(ctx context.Context) (GlobalBan, error) {
		var ban GlobalBan
		err := s.pool.QueryRow(ctx, `
			SELECT user_id, reason, banned_by, banned_at FROM global_bans WHERE user_id = $1
		`, userID).Scan(&ban.UserID, &ban.Reason, &ban.BannedBy, &ban.Date)
		if notFound(err) {
			return GlobalBan{}, ErrNotFound
		}
		return ban, err
	})
}

func (s *Store) RemoveGlobalBan(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM global_bans WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
