package warnings

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/protection"
	"guardbot/internal/protection/protectiontest"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	warns []storage.Warn
	next  int
}

func (m *memoryStore) AddWarn(_ context.Context, warn storage.Warn) (storage.Warn, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	warn.ID = fmt.Sprintf("w%d", m.next)
	m.warns = append(m.warns, warn)
	return warn, m.countLocked(warn.GuildID, warn.UserID), nil
}

func (m *memoryStore) ListWarns(_ context.Context, guildID, userID string) ([]storage.Warn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Warn
	for _, w := range m.warns {
		if w.GuildID == guildID && w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memoryStore) CountWarns(_ context.Context, guildID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(guildID, userID), nil
}

func (m *memoryStore) DeleteWarn(_ context.Context, guildID, warnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.warns {
		if w.GuildID == guildID && w.ID == warnID {
			m.warns = append(m.warns[:i], m.warns[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memoryStore) ClearWarns(_ context.Context, guildID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.warns[:0]
	var removed int64
	for _, w := range m.warns {
		if w.GuildID == guildID && w.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, w)
	}
	m.warns = kept
	return removed, nil
}

func (m *memoryStore) countLocked(guildID, userID string) int {
	n := 0
	for _, w := range m.warns {
		if w.GuildID == guildID && w.UserID == userID {
			n++
		}
	}
	return n
}

func newService(t *testing.T, autoPunish bool) (*Service, *protectiontest.Actuator, *protectiontest.LogSink) {
	t.Helper()
	cfg := protection.DefaultConfig()
	cfg.AutoPunish.Enabled = autoPunish
	configs := protectiontest.NewConfigStore(cfg)
	actuator := protectiontest.NewActuator()
	directory := protectiontest.NewDirectory("owner", &protection.Member{UserID: "bot", TopRolePosition: 5, Permissions: discordgo.PermissionAdministrator})
	directory.Add(&protection.Member{UserID: "u1", TopRolePosition: 1})
	sink := &protectiontest.LogSink{}
	svc := New(&memoryStore{}, configs, remediation.NewPunisher(actuator, directory, nil), audit.NewLogger(sink, nil), nil)
	return svc, actuator, sink
}

func TestLadderAppliesOnExactCount(t *testing.T) {
	svc, actuator, sink := newService(t, true)
	ctx := context.Background()

	var results []Result
	for i := 0; i < 4; i++ {
		res, err := svc.Warn(ctx, "g1", "u1", "mod", "rude")
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.Nil(t, results[0].Escalation)
	assert.Nil(t, results[1].Escalation)
	require.NotNil(t, results[2].Escalation)
	assert.True(t, results[2].Escalation.OK())
	assert.Equal(t, protection.PunishTimeout, results[2].Rung.Action)
	assert.Nil(t, results[3].Escalation)

	require.Equal(t, 1, actuator.Count("timeout"))
	call, _ := actuator.Find("timeout")
	assert.Equal(t, time.Hour, call.Duration)
	assert.Len(t, sink.Events("warn_added"), 4)
	assert.Len(t, sink.Events("auto_punish"), 1)
}

func TestLadderDisabled(t *testing.T) {
	svc, actuator, _ := newService(t, false)
	for i := 0; i < 7; i++ {
		_, err := svc.Warn(context.Background(), "g1", "u1", "mod", "rude")
		require.NoError(t, err)
	}
	assert.Zero(t, actuator.Total())
}

func TestRemoveAndClear(t *testing.T) {
	svc, _, _ := newService(t, false)
	ctx := context.Background()

	first, err := svc.Warn(ctx, "g1", "u1", "mod", "a")
	require.NoError(t, err)
	_, err = svc.Warn(ctx, "g1", "u1", "mod", "b")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "g1", first.Warn.ID, "mod"))
	require.ErrorIs(t, svc.Remove(ctx, "g1", first.Warn.ID, "mod"), storage.ErrNotFound)

	count, err := svc.Count(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err := svc.Clear(ctx, "g1", "u1", "mod")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	list, err := svc.List(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
