package storage

import (
	"context"
	"fmt"

	"guardbot/internal/protection"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// LoadConfig returns the stored protection config for guildID, or the defaults when the
// guild has never written one.
func (s *Store) LoadConfig(ctx context.Context, guildID string) (protection.Config, error) {
	return withRetry(ctx, func(ctx context.Context) (protection.Config, error) {
		var data []byte
		err := s.pool.QueryRow(ctx, `SELECT data FROM protection_configs WHERE guild_id = $1`, guildID).Scan(&data)
		if err != nil {
			if notFound(err) {
				return s.defaults.Clone(), nil
			}
			return protection.Config{}, err
		}
		return s.decodeConfig(data)
	})
}

// UpdateConfig runs mutate against the current config under a row lock and upserts the
// result, so concurrent edits to different nested fields do not overwrite each other.
func (s *Store) UpdateConfig(ctx context.Context, guildID string, mutate func(*protection.Config) error) error {
	return withRetryNoResult(ctx, func(ctx context.Context) error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		cfg := s.defaults.Clone()
		var data []byte
		err = tx.QueryRow(ctx, `SELECT data FROM protection_configs WHERE guild_id = $1 FOR UPDATE`, guildID).Scan(&data)
		switch {
		case err == nil:
			if cfg, err = s.decodeConfig(data); err != nil {
				return err
			}
		case notFound(err):
		default:
			return err
		}

		if err := mutate(&cfg); err != nil {
			return permanent(err)
		}

		encoded, err := sonic.Marshal(cfg)
		if err != nil {
			return permanent(fmt.Errorf("encode config: %w", err))
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO protection_configs (guild_id, data, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (guild_id) DO UPDATE SET
				data = excluded.data,
				updated_at = now()
		`, guildID, encoded); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func (s *Store) decodeConfig(data []byte) (protection.Config, error) {
	cfg := s.defaults.Clone()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return protection.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
