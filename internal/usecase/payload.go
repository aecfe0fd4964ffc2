package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"support-agent/internal/domain"
)

type wireAuthor struct {
	UserID      string `json:"userId"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
}

type wireMessage struct {
	ID       string     `json:"id"`
	Received string     `json:"received"`
	Author   wireAuthor `json:"author"`
	Content  struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type wireEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	Payload   struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
		Message wireMessage `json:"message"`
	} `json:"payload"`
}

// batchShape describes how a verified body was understood.
type batchShape int

const (
	shapeUnknown batchShape = iota
	shapeBatch
	shapeSingle
)

// decodedEvent is one element of a webhook body. err is set when the element
// could not be decoded; event then carries whatever identifiers were readable.
type decodedEvent struct {
	event domain.InboundEvent
	err   error
}

// parseWebhook decodes either {"events":[...]} or a single event object.
// Batch elements are decoded one by one so a malformed element does not hide
// its neighbours. Bodies that match neither shape, including a single event
// that does not decode, are reported as shapeUnknown.
func parseWebhook(body []byte) (batchShape, []decodedEvent) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return shapeUnknown, nil
	}

	if raw, ok := top["events"]; ok {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return shapeUnknown, nil
		}
		events := make([]decodedEvent, 0, len(elems))
		for _, elem := range elems {
			events = append(events, decodeEvent(elem))
		}
		return shapeBatch, events
	}

	_, hasType := top["type"]
	_, hasPayload := top["payload"]
	if !hasType && !hasPayload {
		return shapeUnknown, nil
	}
	d := decodeEvent(body)
	if d.err != nil {
		return shapeUnknown, nil
	}
	return shapeSingle, []decodedEvent{d}
}

func decodeEvent(raw []byte) decodedEvent {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		var head struct {
			ID any `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)
		e := domain.InboundEvent{}
		if head.ID != nil {
			e.EventID = fmt.Sprint(head.ID)
		}
		return decodedEvent{event: e, err: fmt.Errorf("usecase: decode event: %w", err)}
	}
	return decodedEvent{event: w.toDomain()}
}

func (w wireEvent) toDomain() domain.InboundEvent {
	msg := w.Payload.Message
	e := domain.InboundEvent{
		EventID:        strings.TrimSpace(w.ID),
		Type:           strings.TrimSpace(w.Type),
		ConversationID: strings.TrimSpace(w.Payload.Conversation.ID),
		AuthorID:       strings.TrimSpace(msg.Author.UserID),
		AuthorType:     strings.TrimSpace(msg.Author.Type),
		DisplayName:    strings.TrimSpace(msg.Author.DisplayName),
		MessageID:      strings.TrimSpace(msg.ID),
		Text:           msg.Content.Text,
		CreatedAt:      parseTime(w.CreatedAt, msg.Received),
	}
	if len(msg.Metadata) > 0 {
		e.Metadata = make(map[string]string, len(msg.Metadata))
		for k, v := range msg.Metadata {
			e.Metadata[k] = fmt.Sprint(v)
		}
	}
	return e
}

func parseTime(candidates ...string) time.Time {
	for _, c := range candidates {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(c)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// validateEvent checks the fields a reply needs.
func validateEvent(e domain.InboundEvent) error {
	switch {
	case e.ConversationID == "":
		return newError(ErrorValidation, "missing_conversation_id", nil)
	case strings.TrimSpace(e.Text) == "":
		return newError(ErrorValidation, "missing_message_text", nil)
	}
	return nil
}
