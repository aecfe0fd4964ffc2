package admission

import (
	"strings"

	"support-agent/internal/domain"
)

// BotRule is one predicate of the bot-loop table. A matching rule marks the
// event as automated.
type BotRule struct {
	Name  string
	Match func(e domain.InboundEvent) bool
}

var botNameMarkers = []string{"bot", "[bot]", "ai assistant", "virtual assistant", "automated"}

// DefaultBotRules returns the rule table used to stop reply loops. selfID is
// the author ID the platform assigns to our own messages; marker is the value
// stamped into outbound metadata (and optionally text) by this service.
func DefaultBotRules(selfID, marker string) []BotRule {
	selfID = strings.TrimSpace(selfID)
	marker = strings.TrimSpace(marker)
	return []BotRule{
		{Name: "author_type", Match: func(e domain.InboundEvent) bool {
			t := strings.TrimSpace(e.AuthorType)
			return t != "" && !strings.EqualFold(t, domain.AuthorTypeUser)
		}},
		{Name: "display_name", Match: func(e domain.InboundEvent) bool {
			return looksLikeBotName(e.DisplayName)
		}},
		{Name: "self_author", Match: func(e domain.InboundEvent) bool {
			return selfID != "" && e.AuthorID == selfID
		}},
		{Name: "automation_marker", Match: func(e domain.InboundEvent) bool {
			if marker == "" {
				return false
			}
			return e.Metadata[domain.MetadataOrigin] == marker || strings.Contains(e.Text, marker)
		}},
	}
}

func looksLikeBotName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, m := range botNameMarkers {
		if name == m {
			return true
		}
	}
	// "Support Bot", "helpdesk-bot", "[bot] Relay"
	if strings.HasPrefix(name, "[bot]") {
		return true
	}
	for _, sep := range []string{" ", "-", "_"} {
		if strings.HasSuffix(name, sep+"bot") {
			return true
		}
	}
	return false
}
