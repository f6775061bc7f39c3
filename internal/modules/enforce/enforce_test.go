package enforce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guardbot/internal/modules/audit"
	"guardbot/internal/modules/remediation"
	"guardbot/internal/modules/warnings"
	"guardbot/internal/protection"
	"guardbot/internal/protection/protectiontest"
	"guardbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	records []storage.FilterViolation
	err     error
}

func (r *recorder) AddFilterViolation(_ context.Context, record storage.FilterViolation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

type fakeWarner struct {
	mu      sync.Mutex
	reasons []string
}

func (w *fakeWarner) Warn(_ context.Context, _, _, modID, reason string) (warnings.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reasons = append(w.reasons, modID+":"+reason)
	return warnings.Result{Count: len(w.reasons)}, nil
}

type fixture struct {
	enforcer *Enforcer
	actuator *protectiontest.Actuator
	recorder *recorder
	warner   *fakeWarner
}

func newFixture() *fixture {
	actuator := protectiontest.NewActuator()
	directory := protectiontest.NewDirectory("owner", &protection.Member{UserID: "bot", TopRolePosition: 5, Permissions: discordgo.PermissionAdministrator})
	directory.Add(&protection.Member{UserID: "author", TopRolePosition: 1})
	f := &fixture{actuator: actuator, recorder: &recorder{}, warner: &fakeWarner{}}
	f.enforcer = New(actuator, remediation.NewPunisher(actuator, directory, nil), f.recorder, f.warner, audit.NewLogger(&protectiontest.LogSink{}, nil), nil)
	return f
}

var msg = protection.Message{GuildID: "g1", ChannelID: "c1", MessageID: "m1", AuthorID: "author"}

func TestNoActionWhenVerdictClean(t *testing.T) {
	f := newFixture()
	assert.Nil(t, f.enforcer.Apply(context.Background(), protection.DefaultConfig(), msg, protection.Verdict{}))
	assert.Zero(t, f.actuator.Total())
	assert.Empty(t, f.recorder.records)
}

func TestDeleteAction(t *testing.T) {
	f := newFixture()
	report := f.enforcer.Apply(context.Background(), protection.DefaultConfig(), msg, protection.Verdict{
		Filter: "anti_link", ShouldAct: true, Action: protection.PunishDelete, Reason: "blocked", URLs: []string{"https://evil.example"},
	})
	require.NotNil(t, report)
	assert.True(t, report.Violation.OK())
	require.Len(t, report.Steps, 1)
	assert.True(t, report.Steps[0].OK())
	require.Len(t, f.recorder.records, 1)
	assert.Contains(t, f.recorder.records[0].Detail, "https://evil.example")
}

func TestTimeoutActionUsesVerdictMinutes(t *testing.T) {
	f := newFixture()
	report := f.enforcer.Apply(context.Background(), protection.DefaultConfig(), msg, protection.Verdict{
		Filter: "anti_mention", ShouldAct: true, Action: protection.PunishTimeout, TimeoutMinutes: 15, Reason: "too many mentions",
	})
	require.Len(t, report.Steps, 2)
	call, ok := f.actuator.Find("timeout")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, call.Duration)
	assert.Equal(t, 1, f.actuator.Count("delete_message"))
}

func TestWarnActionGoesThroughWarner(t *testing.T) {
	f := newFixture()
	f.enforcer.Apply(context.Background(), protection.DefaultConfig(), msg, protection.Verdict{
		Filter: "anti_link", ShouldAct: true, Action: protection.PunishWarn, Reason: "blocked link",
	})
	assert.Equal(t, []string{AutoModeratorID + ":blocked link"}, f.warner.reasons)
}

func TestStepsAreIndependent(t *testing.T) {
	f := newFixture()
	f.recorder.err = errors.New("db down")
	f.actuator.Fail["delete_message"] = protectiontest.ErrForbidden

	report := f.enforcer.Apply(context.Background(), protection.DefaultConfig(), msg, protection.Verdict{
		Filter: "anti_mention", ShouldAct: true, Action: protection.PunishTimeout, Reason: "x",
	})
	require.Error(t, report.Violation.Err)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, 1, f.actuator.Count("timeout"))
	call, _ := f.actuator.Find("timeout")
	assert.Equal(t, 10*time.Minute, call.Duration)
}
