package usecase

import "strings"

// escalationRule matches normalized (lower-cased, trimmed) message text.
type escalationRule struct {
	name  string
	match func(text string) bool
}

func exactPhrase(p string) escalationRule {
	return escalationRule{name: "exact:" + p, match: func(text string) bool { return text == p }}
}

func containsPhrase(p string) escalationRule {
	return escalationRule{name: "contains:" + p, match: func(text string) bool { return strings.Contains(text, p) }}
}

// EscalationDetector recognizes requests to talk to a human operator.
type EscalationDetector struct {
	rules []escalationRule
}

func NewEscalationDetector() *EscalationDetector {
	rules := make([]escalationRule, 0, 12)
	for _, p := range []string{"agent", "live agent", "human", "person"} {
		rules = append(rules, exactPhrase(p))
	}
	for _, p := range []string{
		"speak with agent", "talk to agent", "live support", "human help",
		"speak to a human", "talk to a human", "real person", "i need a human",
	} {
		rules = append(rules, containsPhrase(p))
	}
	return &EscalationDetector{rules: rules}
}

// Match returns the name of the first matching rule.
func (d *EscalationDetector) Match(text string) (string, bool) {
	text = normalizeText(text)
	if text == "" {
		return "", false
	}
	for _, r := range d.rules {
		if r.match(text) {
			return r.name, true
		}
	}
	return "", false
}

// IsEscalation reports whether text asks for a human.
func (d *EscalationDetector) IsEscalation(text string) bool {
	_, ok := d.Match(text)
	return ok
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
