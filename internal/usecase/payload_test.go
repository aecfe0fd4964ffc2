package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

func TestParseWebhook_Batch(t *testing.T) {
	body := []byte(`{
		"app": {"id": "app-1"},
		"webhook": {"id": "wh-1", "version": "v2"},
		"events": [{
			"id": "evt-1",
			"createdAt": "2026-03-01T12:00:00.000Z",
			"type": "conversation:message",
			"payload": {
				"conversation": {"id": "conv-1", "type": "personal"},
				"message": {
					"id": "msg-1",
					"received": "2026-03-01T11:59:59.500Z",
					"author": {"userId": "user-1", "displayName": "Jane", "type": "user"},
					"content": {"type": "text", "text": "Can I reschedule?"},
					"metadata": {"origin": "web", "attempt": 2}
				}
			}
		}]
	}`)

	shape, events := parseWebhook(body)
	require.Equal(t, shapeBatch, shape)
	require.Len(t, events, 1)
	require.NoError(t, events[0].err)

	e := events[0].event
	require.Equal(t, "evt-1", e.EventID)
	require.True(t, e.IsMessage())
	require.Equal(t, "conv-1", e.ConversationID)
	require.Equal(t, "user-1", e.AuthorID)
	require.Equal(t, domain.AuthorTypeUser, e.AuthorType)
	require.Equal(t, "Jane", e.DisplayName)
	require.Equal(t, "msg-1", e.MessageID)
	require.Equal(t, "Can I reschedule?", e.Text)
	require.Equal(t, map[string]string{"origin": "web", "attempt": "2"}, e.Metadata)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), e.CreatedAt.UTC())
}

func TestParseWebhook_EmptyBatch(t *testing.T) {
	shape, events := parseWebhook([]byte(`{"events":[]}`))
	require.Equal(t, shapeBatch, shape)
	require.Empty(t, events)
}

func TestParseWebhook_UnknownShapes(t *testing.T) {
	for _, body := range []string{
		``, `null`, `"text"`, `{"ticket":{"id":1}}`, `{"events":{}}`,
		`{"type":"conversation:message","payload":"oops"}`,
	} {
		shape, events := parseWebhook([]byte(body))
		require.Equal(t, shapeUnknown, shape, body)
		require.Nil(t, events, body)
	}
}

func TestParseWebhook_BatchElementsDecodedIndependently(t *testing.T) {
	body := []byte(`{"events":[` +
		`{"id":"evt-1","type":"conversation:message","payload":{"conversation":{"id":"conv-1"},"message":{"id":"m1"}}},` +
		`{"id":"evt-2","type":"conversation:message","payload":{"message":{"id":42}}},` +
		`"garbage"` +
		`]}`)

	shape, events := parseWebhook(body)
	require.Equal(t, shapeBatch, shape)
	require.Len(t, events, 3)
	require.NoError(t, events[0].err)
	require.Equal(t, "m1", events[0].event.MessageID)
	require.Error(t, events[1].err)
	require.Equal(t, "evt-2", events[1].event.EventID)
	require.Error(t, events[2].err)
	require.Empty(t, events[2].event.EventID)
}

func TestParseTime_FallsBackToReceived(t *testing.T) {
	got := parseTime("", "2026-03-01T11:59:59Z")
	require.Equal(t, 59, got.Second())
	require.True(t, parseTime("bad").IsZero())
}
