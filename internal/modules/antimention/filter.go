// Package antimention flags mass mentions and broadcast pings.
package antimention

import (
	"fmt"
	"strings"

	"guardbot/internal/protection"
)

const Name = "anti_mention"

// Check inspects msg against cfg. Moderators are never flagged.
func Check(cfg protection.AntiMentions, msg protection.Message) protection.Verdict {
	verdict := protection.Verdict{Filter: Name}
	if !cfg.Enabled || protection.IsModerator(msg.AuthorPermissions) {
		return verdict
	}

	switch count := mentionCount(msg); {
	case cfg.BlockEveryone && hasBroadcast(msg):
		verdict.Reason = "broadcast mention (@everyone/@here) is not allowed"
	case cfg.MaxMentionsUser > 0 && count > cfg.MaxMentionsUser:
		verdict.Reason = fmt.Sprintf("too many mentions: %d (max %d)", count, cfg.MaxMentionsUser)
	default:
		return verdict
	}

	verdict.ShouldAct = true
	verdict.Action = cfg.Action
	if verdict.Action == "" {
		verdict.Action = protection.PunishDelete
	}
	verdict.TimeoutMinutes = cfg.TimeoutMinutes
	return verdict
}

func hasBroadcast(msg protection.Message) bool {
	return msg.MentionEveryone || strings.Contains(msg.Content, "@everyone") || strings.Contains(msg.Content, "@here")
}

func mentionCount(msg protection.Message) int {
	seen := make(map[string]struct{}, len(msg.MentionUserIDs)+len(msg.MentionRoleIDs))
	for _, id := range msg.MentionUserIDs {
		seen["u"+id] = struct{}{}
	}
	for _, id := range msg.MentionRoleIDs {
		seen["r"+id] = struct{}{}
	}
	return len(seen)
}
