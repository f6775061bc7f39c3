package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"guardbot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	logs []storage.AuditLog
	err  error
}

func (f fakeSource) ListAuditLogs(context.Context, string, time.Time) ([]storage.AuditLog, error) {
	return f.logs, f.err
}

func TestReportAggregates(t *testing.T) {
	svc := New(fakeSource{logs: []storage.AuditLog{
		{Level: "WARN", Event: "anti_nuke_breach", UserID: "a"},
		{Level: "WARN", Event: "anti_nuke_breach", UserID: "a"},
		{Level: "INFO", Event: "filter_violation", UserID: "b"},
		{Level: "INFO", Event: "raid_mode_enabled"},
	}})

	report, err := svc.Report(context.Background(), "g1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.ByLevel["WARN"])
	assert.Equal(t, 2, report.ByEvent["anti_nuke_breach"])
	require.Len(t, report.TopActors, 2)
	assert.Equal(t, ActorCount{UserID: "a", Count: 2}, report.TopActors[0])
	assert.Contains(t, report.Summary(), "Total events: 4")
}

func TestReportPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(fakeSource{err: boom}).Report(context.Background(), "g1", time.Now())
	require.ErrorIs(t, err, boom)
}
