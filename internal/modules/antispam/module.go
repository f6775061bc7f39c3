// Package antispam detects message bursts on the shared protection counter.
package antispam

import (
	"fmt"

	"guardbot/internal/protection"
	"guardbot/internal/tracker"
)

const (
	Name        = "anti_spam"
	messageKind = "message"
)

type Module struct {
	registry *tracker.Registry
	limit    int
}

func New(registry *tracker.Registry, limit int) *Module {
	return &Module{registry: registry, limit: limit}
}

// Check counts msg against its author's window. The message that reaches the limit asks
// for a timeout; later messages inside the same window are only deleted.
func (m *Module) Check(msg protection.Message) protection.Verdict {
	verdict := protection.Verdict{Filter: Name}
	if m.limit <= 0 || protection.IsModerator(msg.AuthorPermissions) {
		return verdict
	}

	count := m.registry.Record(msg.GuildID, msg.AuthorID, messageKind)
	evaluation := protection.Evaluate(count, m.limit)
	if !evaluation.Exceeded {
		return verdict
	}

	verdict.ShouldAct = true
	verdict.Reason = fmt.Sprintf("message burst: %d messages in %s (limit %d)", count, m.registry.Window(), m.limit)
	verdict.Action = protection.PunishDelete
	if evaluation.Count == evaluation.Limit {
		verdict.Action = protection.PunishTimeout
	}
	return verdict
}
