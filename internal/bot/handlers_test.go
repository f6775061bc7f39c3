package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guardbot/internal/config"
	"guardbot/internal/modules/antilink"
	"guardbot/internal/modules/audit"
	"guardbot/internal/protection"
	"guardbot/internal/protection/protectiontest"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// A snowflake from late 2024, young enough to fail any anti-alts minimum used here.
const joinerID = "1300000000000000000"

type memoryStore struct {
	mu         sync.Mutex
	bans       map[string]storage.GlobalBan
	violations []storage.FilterViolation
	suspicious []storage.SuspiciousAccount
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bans: make(map[string]storage.GlobalBan)}
}

func (m *memoryStore) AddGlobalBan(_ context.Context, ban storage.GlobalBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[ban.UserID] = ban
	return nil
}

func (m *memoryStore) GetGlobalBan(_ context.Context, userID string) (storage.GlobalBan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ban, ok := m.bans[userID]
	if !ok {
		return storage.GlobalBan{}, storage.ErrNotFound
	}
	return ban, nil
}

func (m *memoryStore) RemoveGlobalBan(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bans, userID)
	return nil
}

func (m *memoryStore) CleanupAuditLogs(context.Context, int) (int64, error) { return 0, nil }

func (m *memoryStore) AddFilterViolation(_ context.Context, record storage.FilterViolation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, record)
	return nil
}

func (m *memoryStore) AddSuspiciousAccount(_ context.Context, record storage.SuspiciousAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspicious = append(m.suspicious, record)
	return nil
}

func (m *memoryStore) suspiciousCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.suspicious)
}

func (m *memoryStore) AddWarn(_ context.Context, warn storage.Warn) (storage.Warn, int, error) {
	return warn, 1, nil
}

func (m *memoryStore) ListWarns(context.Context, string, string) ([]storage.Warn, error) {
	return nil, nil
}

func (m *memoryStore) CountWarns(context.Context, string, string) (int, error) { return 0, nil }

func (m *memoryStore) DeleteWarn(context.Context, string, string) error { return storage.ErrNotFound }

func (m *memoryStore) ClearWarns(context.Context, string, string) (int64, error) { return 0, nil }

func (m *memoryStore) CreateBackup(_ context.Context, backup storage.Backup) (storage.Backup, error) {
	return backup, nil
}

func (m *memoryStore) ListBackups(context.Context, string) ([]storage.BackupSummary, error) {
	return nil, nil
}

func (m *memoryStore) GetBackup(context.Context, string, string) (storage.Backup, error) {
	return storage.Backup{}, storage.ErrNotFound
}

func (m *memoryStore) DeleteBackup(context.Context, string, string) error { return storage.ErrNotFound }

func (m *memoryStore) RotateBackups(context.Context, string, int) (int64, error) { return 0, nil }

type fakePlatform struct {
	*protectiontest.Actuator
	*protectiontest.Directory
	*protectiontest.AuditSource
}

func (fakePlatform) Snapshot(context.Context, string) (storage.BackupData, error) {
	return storage.BackupData{}, nil
}

func (fakePlatform) CreateRole(context.Context, string, storage.BackupRole) (string, error) {
	return "", errors.New("not supported")
}

func (fakePlatform) CreateChannel(context.Context, string, storage.BackupChannel) (string, error) {
	return "", errors.New("not supported")
}

func (fakePlatform) AssignRoles(context.Context, string, string, []string) error {
	return errors.New("not supported")
}

type botFixture struct {
	bot      *Bot
	store    *memoryStore
	configs  *protectiontest.ConfigStore
	actuator *protectiontest.Actuator
	sink     *protectiontest.LogSink
}

func newBotFixture(t *testing.T, cfg config.Config, guild protection.Config) *botFixture {
	t.Helper()
	store := newMemoryStore()
	configs := protectiontest.NewConfigStore(protection.DefaultConfig())
	configs.Put("g1", guild)
	sink := &protectiontest.LogSink{}
	actuator := protectiontest.NewActuator()
	directory := protectiontest.NewDirectory("owner", &protection.Member{
		UserID:          "bot",
		TopRolePosition: 10,
		Permissions:     discordgo.PermissionAdministrator,
	})
	directory.Add(&protection.Member{UserID: joinerID})
	directory.Add(&protection.Member{UserID: "author"})

	platform := fakePlatform{Actuator: actuator, Directory: directory, AuditSource: protectiontest.NewAuditSource()}
	b := assemble(cfg, zap.NewNop(), store, configs, audit.NewLogger(sink, nil), platform)
	return &botFixture{bot: b, store: store, configs: configs, actuator: actuator, sink: sink}
}

// strictGuild flags every account and has raid mode switched on.
func strictGuild() protection.Config {
	cfg := protection.DefaultConfig()
	cfg.AntiAlts = protection.AntiAlts{Enabled: true, MinAccountAgeDays: 36500, Mode: protection.PunishFlag}
	enabledAt := time.Now().Add(-time.Minute)
	cfg.RaidMode = protection.RaidMode{Enabled: true, Auto: true, EnabledAt: &enabledAt}
	return cfg
}

func TestGlobalBanSkipsRaidAndAltChecks(t *testing.T) {
	f := newBotFixture(t, config.DefaultConfig(), strictGuild())
	ctx := context.Background()
	require.NoError(t, f.store.AddGlobalBan(ctx, storage.GlobalBan{UserID: joinerID, Reason: "scam ring"}))

	stage := f.bot.handleJoin(ctx, "g1", joinerID)

	assert.Equal(t, joinGlobalBan, stage)
	require.Equal(t, 1, f.actuator.Count("ban"))
	call, _ := f.actuator.Find("ban")
	assert.Equal(t, "Global ban: scam ring", call.Reason)
	assert.Zero(t, f.actuator.Count("kick"))
	assert.Zero(t, f.store.suspiciousCount())
	assert.Len(t, f.sink.Events("global_ban_enforced"), 1)
}

func TestRaidModeKickSkipsAltCheck(t *testing.T) {
	f := newBotFixture(t, config.DefaultConfig(), strictGuild())

	stage := f.bot.handleJoin(context.Background(), "g1", joinerID)

	assert.Equal(t, joinRaidMode, stage)
	assert.Equal(t, 1, f.actuator.Count("kick"))
	assert.Zero(t, f.actuator.Count("ban"))
	assert.Zero(t, f.store.suspiciousCount())
}

func TestFailedRaidKickFallsThroughToAltCheck(t *testing.T) {
	f := newBotFixture(t, config.DefaultConfig(), strictGuild())
	f.actuator.Fail["kick"] = protectiontest.ErrForbidden

	stage := f.bot.handleJoin(context.Background(), "g1", joinerID)

	assert.Equal(t, joinAntiAlts, stage)
	assert.Equal(t, 1, f.actuator.Count("kick"))
	assert.Equal(t, 1, f.store.suspiciousCount())
}

func TestQuietJoinReachesAltCheck(t *testing.T) {
	guild := strictGuild()
	guild.RaidMode = protection.RaidMode{}
	f := newBotFixture(t, config.DefaultConfig(), guild)

	stage := f.bot.handleJoin(context.Background(), "g1", joinerID)

	assert.Equal(t, joinAntiAlts, stage)
	assert.Zero(t, f.actuator.Total())
	assert.Equal(t, 1, f.store.suspiciousCount())
}

func TestMessageHittingTwoFiltersIsEnforcedOnce(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Protection.SpamMessages = 1
	guild := protection.DefaultConfig()
	guild.AntiLinks.Enabled = true
	f := newBotFixture(t, cfg, guild)

	report := f.bot.handleMessage(context.Background(), protection.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		AuthorID:  "author",
		Content:   "free stuff at https://evil.example/claim",
	})

	require.NotNil(t, report)
	assert.True(t, report.Violation.OK())
	assert.Equal(t, 1, f.actuator.Count("delete_message"))
	assert.Zero(t, f.actuator.Count("timeout"))
	require.Len(t, f.store.violations, 1)
	assert.Equal(t, antilink.Name, f.store.violations[0].Filter)
}

func TestMessageInDisabledGuildIsIgnored(t *testing.T) {
	guild := protection.DefaultConfig()
	guild.Enabled = false
	guild.AntiLinks.Enabled = true
	f := newBotFixture(t, config.DefaultConfig(), guild)

	report := f.bot.handleMessage(context.Background(), protection.Message{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1", AuthorID: "author",
		Content: "https://evil.example",
	})

	assert.Nil(t, report)
	assert.Zero(t, f.actuator.Total())
}
