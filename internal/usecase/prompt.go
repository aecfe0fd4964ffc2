package usecase

import (
	"errors"
	"fmt"
	"strings"

	"support-agent/internal/domain"
)

const maxReplyRunes = 4000

func buildPromptMessages(faqs []domain.FAQ, customerText string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildSystemPrompt(faqs)},
		{Role: "user", Content: fmt.Sprintf("Customer message: %q", normalizePromptInput(customerText))},
	}
}

func buildSystemPrompt(faqs []domain.FAQ) string {
	return strings.Join([]string{
		"Role:",
		"You are a support agent for Hair for Hire, an app that helps customers book hairstylists for home or salon visits.",
		"",
		"Support Knowledge Base:",
		formatFAQs(faqs),
		"",
		"Behavior Rules:",
		behaviorRules(),
	}, "\n")
}

func formatFAQs(faqs []domain.FAQ) string {
	parts := make([]string, 0, len(faqs))
	for _, f := range faqs {
		q := normalizePromptInput(f.Question)
		a := normalizePromptInput(f.Answer)
		if q == "" || a == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s", q, a))
	}
	return strings.Join(parts, "\n\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer the customer's message as clearly and kindly as possible.",
		"2) Prefer the knowledge base above over general knowledge.",
		"3) If you do not have enough information, respond with your best helpful answer.",
		"4) If the customer wants a person, tell them they can type \"agent\" to reach one.",
		"5) Reply in plain text without markdown.",
	}, "\n")
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// parseReply validates generated text before it is delivered. An empty
// completion is a failure, not an empty reply.
func parseReply(raw string) (string, error) {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", errors.New("usecase: completion returned empty content")
	}
	if r := []rune(reply); len(r) > maxReplyRunes {
		reply = string(r[:maxReplyRunes])
	}
	return reply, nil
}
