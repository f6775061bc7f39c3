package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

type Backup struct {
	ID        string
	GuildID   string
	CreatedBy string
	Data      BackupData
	CreatedAt time.Time
}

type BackupData struct {
	GuildName  string          `json:"guildName"`
	Roles      []BackupRole    `json:"roles"`
	Categories []BackupChannel `json:"categories"`
	Channels   []BackupChannel `json:"channels"`
	Members    []BackupMember  `json:"members,omitempty"`
}

// BackupMember records which backed-up roles a member held.
type BackupMember struct {
	ID      string   `json:"id"`
	RoleIDs []string `json:"roleIds"`
}

type BackupRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Mentionable bool   `json:"mentionable"`
	Permissions int64  `json:"permissions"`
	Position    int    `json:"position"`
}

type BackupChannel struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             int               `json:"type"`
	Topic            string            `json:"topic,omitempty"`
	Position         int               `json:"position"`
	ParentID         string            `json:"parentId,omitempty"`
	NSFW             bool              `json:"nsfw,omitempty"`
	RateLimitPerUser int               `json:"rateLimitPerUser,omitempty"`
	Bitrate          int               `json:"bitrate,omitempty"`
	UserLimit        int               `json:"userLimit,omitempty"`
	Overwrites       []BackupOverwrite `json:"overwrites,omitempty"`
}

type BackupOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow int64  `json:"allow"`
	Deny  int64  `json:"deny"`
}

type BackupSummary struct {
	ID        string
	GuildName string
	CreatedBy string
	CreatedAt time.Time
}

func (s *Store) CreateBackup(ctx context.Context, backup Backup) (Backup, error) {
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	if backup.CreatedAt.IsZero() {
		backup.CreatedAt = time.Now()
	}
	data, err := sonic.Marshal(backup.Data)
	if err != nil {
		return Backup{}, fmt.Errorf("encode backup: %w", err)
	}
	err = withRetryNoResult(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO backups (id, guild_id, created_by, data, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, backup.ID, backup.GuildID, backup.CreatedBy, data, backup.CreatedAt)
		return err
	})
	if err != nil {
		return Backup{}, err
	}
	return backup, nil
}

func (s *Store) ListBackups(ctx context.Context, guildID string) ([]BackupSummary, error) {
	return withRetry(ctx, func(ctx context.Context) ([]BackupSummary, error) {
		rows, err := s.pool.Query(ctx, `
			SELECT id, COALESCE(data->>'guildName', ''), created_by, created_at
			FROM backups
			WHERE guild_id = $1
			ORDER BY created_at DESC
		`, guildID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []BackupSummary
		for rows.Next() {
			var summary BackupSummary
			if err := rows.Scan(&summary.ID, &summary.GuildName, &summary.CreatedBy, &summary.CreatedAt); err != nil {
				return nil, err
			}
			out = append(out, summary)
		}
		return out, rows.Err()
	})
}

func (s *Store) GetBackup(ctx context.Context, guildID, backupID string) (Backup, error) {
	return withRetry(ctx, func(ctx context.Context) (Backup, error) {
		var backup Backup
		var data []byte
		err := s.pool.QueryRow(ctx, `
			SELECT id, guild_id, created_by, data, created_at
			FROM backups WHERE guild_id = $1 AND id = $2
		`, guildID, backupID).Scan(&backup.ID, &backup.GuildID, &backup.CreatedBy, &data, &backup.CreatedAt)
		if notFound(err) {
			return Backup{}, ErrNotFound
		}
		if err != nil {
			return Backup{}, err
		}
		if err := sonic.Unmarshal(data, &backup.Data); err != nil {
			return Backup{}, permanent(fmt.Errorf("decode backup: %w", err))
		}
		return backup, nil
	})
}

func (s *Store) DeleteBackup(ctx context.Context, guildID, backupID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backups WHERE guild_id = $1 AND id = $2`, guildID, backupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateBackups deletes the oldest backups of a guild beyond keep and returns how many
// were removed.
func (s *Store) RotateBackups(ctx context.Context, guildID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM backups
		WHERE guild_id = $1 AND id IN (
			SELECT id FROM backups WHERE guild_id = $1
			ORDER BY created_at DESC
			OFFSET $2
		)
	`, guildID, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
