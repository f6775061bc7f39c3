package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Warn struct {
	ID        string
	GuildID   string
	UserID    string
	ModID     string
	Reason    string
	CreatedAt time.Time
}

// AddWarn stores a warn and returns it together with the user's warn count afterwards.
func (s *Store) AddWarn(ctx context.Context, warn Warn) (Warn, int, error) {
	if warn.ID == "" {
		warn.ID = uuid.NewString()
	}
	if warn.CreatedAt.IsZero() {
		warn.CreatedAt = time.Now()
	}
	count, err := withRetry(ctx, func(ctx context.Context) (int, error) {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return 0, err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if _, err := tx.Exec(ctx, `
			INSERT INTO warns (id, guild_id, user_id, mod_id, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, warn.ID, warn.GuildID, warn.UserID, warn.ModID, warn.Reason, warn.CreatedAt); err != nil {
			return 0, err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM warns WHERE guild_id = $1 AND user_id = $2`, warn.GuildID, warn.UserID).Scan(&count); err != nil {
			return 0, err
		}
		return count, tx.Commit(ctx)
	})
	if err != nil {
		return Warn{}, 0, err
	}
	return warn, count, nil
}

func (s *Store) ListWarns(ctx context.Context, guildID, userID string) ([]Warn, error) {
	return withRetry(ctx, func(ctx context.Context) ([]Warn, error) {
		rows, err := s.pool.Query(ctx, `
			SELECT id, guild_id, user_id, mod_id, reason, created_at
			FROM warns
			WHERE guild_id = $1 AND user_id = $2
			ORDER BY created_at ASC
		`, guildID, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var warns []Warn
		for rows.Next() {
			var w Warn
			if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModID, &w.Reason, &w.CreatedAt); err != nil {
				return nil, err
			}
			warns = append(warns, w)
		}
		return warns, rows.Err()
	})
}

func (s *Store) CountWarns(ctx context.Context, guildID, userID string) (int, error) {
	return withRetry(ctx, func(ctx context.Context) (int, error) {
		var count int
		err := s.pool.QueryRow(ctx, `SELECT count(*) FROM warns WHERE guild_id = $1 AND user_id = $2`, guildID, userID).Scan(&count)
		return count, err
	})
}

func (s *Store) DeleteWarn(ctx context.Context, guildID, warnID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM warns WHERE guild_id = $1 AND id = $2`, guildID, warnID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearWarns(ctx context.Context, guildID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM warns WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
