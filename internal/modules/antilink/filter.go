// Package antilink blocks links to hosts outside a guild's allow-list.
package antilink

import (
	"fmt"
	"strings"

	"guardbot/internal/protection"
	"guardbot/internal/utils"
)

const Name = "anti_link"

// Check inspects msg against cfg. Moderators are never flagged. A nil allow-list falls back
// to protection.DefaultAllowList; an empty one allows nothing.
func Check(cfg protection.AntiLinks, msg protection.Message) protection.Verdict {
	verdict := protection.Verdict{Filter: Name}
	if !cfg.Enabled || protection.IsModerator(msg.AuthorPermissions) {
		return verdict
	}

	allowList := cfg.AllowList
	if allowList == nil {
		allowList = protection.DefaultAllowList
	}

	for _, raw := range utils.ExtractURLs(msg.Content) {
		_, host, err := utils.NormalizeURL(raw)
		if err != nil || host == "" {
			verdict.URLs = append(verdict.URLs, raw)
			continue
		}
		if !utils.HostAllowed(host, allowList) {
			verdict.URLs = append(verdict.URLs, raw)
		}
	}
	if len(verdict.URLs) == 0 {
		return verdict
	}

	verdict.ShouldAct = true
	verdict.Action = cfg.Action
	if verdict.Action == "" {
		verdict.Action = protection.PunishDelete
	}
	verdict.TimeoutMinutes = cfg.TimeoutMinutes
	verdict.Reason = fmt.Sprintf("blocked link(s): %s", strings.Join(verdict.URLs, ", "))
	return verdict
}
