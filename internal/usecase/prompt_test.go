package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

func TestBuildSystemPrompt_IncludesKnowledgeBase(t *testing.T) {
	content := buildSystemPrompt(DefaultFAQs)
	require.Contains(t, content, "Role:")
	require.Contains(t, content, "Support Knowledge Base:")
	require.Contains(t, content, "Q: How do I book a stylist?\nA: Open the Hair for Hire app")
	require.Contains(t, content, "Behavior Rules:")
	require.Equal(t, len(DefaultFAQs), strings.Count(content, "Q: "))
}

func TestFormatFAQs_SkipsIncompleteEntries(t *testing.T) {
	out := formatFAQs([]domain.FAQ{
		{Question: "  Where   are you? ", Answer: "Everywhere."},
		{Question: "No answer", Answer: " "},
	})
	require.Equal(t, "Q: Where are you?\nA: Everywhere.", out)
}

func TestBuildPromptMessages_QuotesCustomerText(t *testing.T) {
	msgs := buildPromptMessages(DefaultFAQs, "  My stylist is \"late\"\n again ")
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].Role)
	require.Equal(t, "user", msgs[1].Role)
	require.Equal(t, `Customer message: "My stylist is \"late\" again"`, msgs[1].Content)
}

func TestParseReply(t *testing.T) {
	out, err := parseReply("  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	_, err = parseReply(" \n ")
	require.Error(t, err)

	long, err := parseReply(strings.Repeat("é", maxReplyRunes+10))
	require.NoError(t, err)
	require.Len(t, []rune(long), maxReplyRunes)
}
