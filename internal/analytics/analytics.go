package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"guardbot/internal/storage"
)

type Source interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	source Source
}

func New(source Source) *Service {
	return &Service{source: source}
}

type Report struct {
	Total     int
	ByLevel   map[string]int
	ByEvent   map[string]int
	TopActors []ActorCount
}

type ActorCount struct {
	UserID string
	Count  int
}

const topActors = 5

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.source.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	actors := make(map[string]int)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.UserID != "" {
			actors[log.UserID]++
		}
	}

	for id, count := range actors {
		report.TopActors = append(report.TopActors, ActorCount{UserID: id, Count: count})
	}
	sort.Slice(report.TopActors, func(i, j int) bool {
		if report.TopActors[i].Count != report.TopActors[j].Count {
			return report.TopActors[i].Count > report.TopActors[j].Count
		}
		return report.TopActors[i].UserID < report.TopActors[j].UserID
	})
	if len(report.TopActors) > topActors {
		report.TopActors = report.TopActors[:topActors]
	}
	return report, nil
}

// Summary renders the report as plain text lines.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total events: %d\n", r.Total)
	for _, level := range sortedKeys(r.ByLevel) {
		fmt.Fprintf(&b, "%s: %d\n", level, r.ByLevel[level])
	}
	for _, event := range sortedKeys(r.ByEvent) {
		fmt.Fprintf(&b, "- %s: %d\n", event, r.ByEvent[event])
	}
	for _, actor := range r.TopActors {
		fmt.Fprintf(&b, "<@%s>: %d\n", actor.UserID, actor.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
