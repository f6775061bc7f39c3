// Package backup snapshots a guild's roles, channels and role assignments and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/storage"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// OverwriteRole is the overwrite type of a role permission overwrite.
const OverwriteRole = 0

// ErrMemberNotFound is returned by Guild.AssignRoles for users no longer in the guild.
var ErrMemberNotFound = errors.New("member not found")

// Guild reads and rebuilds guild structure.
type Guild interface {
	Snapshot(ctx context.Context, guildID string) (storage.BackupData, error)
	CreateRole(ctx context.Context, guildID string, role storage.BackupRole) (string, error)
	CreateChannel(ctx context.Context, guildID string, channel storage.BackupChannel) (string, error)
	// AssignRoles adds roleIDs to the member's current roles.
	AssignRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
}

type Store interface {
	CreateBackup(ctx context.Context, backup storage.Backup) (storage.Backup, error)
	ListBackups(ctx context.Context, guildID string) ([]storage.BackupSummary, error)
	GetBackup(ctx context.Context, guildID, backupID string) (storage.Backup, error)
	DeleteBackup(ctx context.Context, guildID, backupID string) error
	RotateBackups(ctx context.Context, guildID string, keep int) (int64, error)
}

type RestoreReport struct {
	Roles      int
	Categories int
	Channels   int
	Members    int
	Failures   []protection.StepResult
}

type Service struct {
	store       Store
	guild       Guild
	maxPerGuild int
	audit       *audit.Logger
	logger      *zap.Logger
}

func New(store Store, guild Guild, maxPerGuild int, auditLogger *audit.Logger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		guild:       guild,
		maxPerGuild: maxPerGuild,
		audit:       auditLogger,
		logger:      logger.Named("backup"),
	}
}

// Create snapshots the guild, stores it and drops backups beyond the per-guild maximum.
func (s *Service) Create(ctx context.Context, guildID, createdBy string) (storage.Backup, error) {
	data, err := s.guild.Snapshot(ctx, guildID)
	if err != nil {
		return storage.Backup{}, fmt.Errorf("snapshot guild: %w", err)
	}
	backup, err := s.store.CreateBackup(ctx, storage.Backup{GuildID: guildID, CreatedBy: createdBy, Data: data})
	if err != nil {
		return storage.Backup{}, fmt.Errorf("store backup: %w", err)
	}
	if removed, err := s.store.RotateBackups(ctx, guildID, s.maxPerGuild); err != nil {
		s.logger.Warn("backup rotation failed", zap.String("guild_id", guildID), zap.Error(err))
	} else if removed > 0 {
		s.logger.Info("rotated backups", zap.String("guild_id", guildID), zap.Int64("removed", removed))
	}

	s.audit.Log(ctx, audit.LevelInfo, guildID, createdBy, "backup_created",
		fmt.Sprintf("id=%s roles=%d categories=%d channels=%d members=%d", backup.ID, len(data.Roles), len(data.Categories), len(data.Channels), len(data.Members)))
	return backup, nil
}

func (s *Service) List(ctx context.Context, guildID string) ([]storage.BackupSummary, error) {
	return s.store.ListBackups(ctx, guildID)
}

func (s *Service) Delete(ctx context.Context, guildID, backupID, actorID string) error {
	if err := s.store.DeleteBackup(ctx, guildID, backupID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.LevelInfo, guildID, actorID, "backup_deleted", "id="+backupID)
	return nil
}

// Restore recreates roles, then categories, then channels under their new categories.
// Permission overwrites are remapped to the recreated role IDs, and members still in the
// guild get the recreated versions of the roles they held. Individual failures are
// collected and do not stop the restore.
func (s *Service) Restore(ctx context.Context, guildID, backupID, actorID string) (RestoreReport, error) {
	backup, err := s.store.GetBackup(ctx, guildID, backupID)
	if err != nil {
		return RestoreReport{}, err
	}

	var report RestoreReport
	// The source guild ID doubles as its @everyone role ID.
	ids := map[string]string{backup.GuildID: guildID}

	roles := append([]storage.BackupRole(nil), backup.Data.Roles...)
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position < roles[j].Position })
	for _, role := range roles {
		if role.ID == backup.GuildID {
			continue
		}
		newID, err := s.guild.CreateRole(ctx, guildID, role)
		if err != nil {
			report.Failures = append(report.Failures, protection.Attempted("role "+role.Name, err))
			continue
		}
		ids[role.ID] = newID
		report.Roles++
	}

	for _, category := range sortChannels(backup.Data.Categories) {
		category.Overwrites = remapOverwrites(category.Overwrites, ids)
		category.ParentID = ""
		newID, err := s.guild.CreateChannel(ctx, guildID, category)
		if err != nil {
			report.Failures = append(report.Failures, protection.Attempted("category "+category.Name, err))
			continue
		}
		ids[category.ID] = newID
		report.Categories++
	}

	for _, channel := range sortChannels(backup.Data.Channels) {
		channel.Overwrites = remapOverwrites(channel.Overwrites, ids)
		channel.ParentID = ids[channel.ParentID]
		if _, err := s.guild.CreateChannel(ctx, guildID, channel); err != nil {
			report.Failures = append(report.Failures, protection.Attempted("channel "+channel.Name, err))
			continue
		}
		report.Channels++
	}

	for _, member := range backup.Data.Members {
		roleIDs := remapRoles(member.RoleIDs, ids, backup.GuildID)
		if len(roleIDs) == 0 {
			continue
		}
		err := s.guild.AssignRoles(ctx, guildID, member.ID, roleIDs)
		if errors.Is(err, ErrMemberNotFound) {
			continue
		}
		if err != nil {
			report.Failures = append(report.Failures, protection.Attempted("member "+member.ID, err))
			continue
		}
		report.Members++
	}

	s.audit.Log(ctx, audit.LevelWarn, guildID, actorID, "backup_restored",
		fmt.Sprintf("id=%s roles=%d categories=%d channels=%d members=%d failures=%d",
			backupID, report.Roles, report.Categories, report.Channels, report.Members, len(report.Failures)))
	return report, nil
}

// Run creates a backup of every guild returned by guilds on each interval until ctx ends.
func (s *Service) Run(ctx context.Context, interval time.Duration, guilds func() []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.backupAll(ctx, guilds())
		}
	}
}

func (s *Service) backupAll(ctx context.Context, guildIDs []string) {
	p := pool.New().WithMaxGoroutines(4)
	for _, guildID := range guildIDs {
		p.Go(func() {
			if _, err := s.Create(ctx, guildID, "scheduler"); err != nil {
				s.logger.Warn("scheduled backup failed", zap.String("guild_id", guildID), zap.Error(err))
			}
		})
	}
	p.Wait()
}

func sortChannels(channels []storage.BackupChannel) []storage.BackupChannel {
	out := append([]storage.BackupChannel(nil), channels...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// remapOverwrites points role overwrites at recreated roles and drops those whose role
// was not recreated. Member overwrites keep their user IDs.
func remapOverwrites(overwrites []storage.BackupOverwrite, ids map[string]string) []storage.BackupOverwrite {
	out := make([]storage.BackupOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		if ow.Type == OverwriteRole {
			newID, ok := ids[ow.ID]
			if !ok {
				continue
			}
			ow.ID = newID
		}
		out = append(out, ow)
	}
	return out
}

// remapRoles returns the recreated IDs of roleIDs. Roles that were not recreated and the
// @everyone role are dropped.
func remapRoles(roleIDs []string, ids map[string]string, everyoneID string) []string {
	var out []string
	for _, id := range roleIDs {
		if id == everyoneID {
			continue
		}
		if newID, ok := ids[id]; ok {
			out = append(out, newID)
		}
	}
	return out
}
