package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"guardbot/internal/protection"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	pool     *pgxpool.Pool
	defaults protection.Config
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Kind      string
	Count     int
	Details   string
	CreatedAt time.Time
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, defaults: protection.DefaultConfig()}, nil
}

// SetDefaults replaces the config returned for guilds that have not stored one yet.
func (s *Store) SetDefaults(cfg protection.Config) {
	s.defaults = cfg.Clone()
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	return withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO audit_logs (guild_id, user_id, level, event, kind, count, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, log.GuildID, log.UserID, log.Level, log.Event, log.Kind, log.Count, log.Details, log.CreatedAt)
		return err
	})
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	return withRetry(ctx, func(ctx context.Context) ([]AuditLog, error) {
		rows, err := s.pool.Query(ctx, `
			SELECT id, guild_id, user_id, level, event, kind, count, details, created_at
			FROM audit_logs
			WHERE guild_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
		`, guildID, since)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var logs []AuditLog
		for rows.Next() {
			var log AuditLog
			if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Kind, &log.Count, &log.Details, &log.CreatedAt); err != nil {
				return nil, err
			}
			logs = append(logs, log)
		}
		return logs, rows.Err()
	})
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "already exists")
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
