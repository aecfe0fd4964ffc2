package domain

import "time"

// EventTypeMessage is the only event type that can lead to a reply.
const EventTypeMessage = "conversation:message"

// Author types reported by the messaging platform.
const (
	AuthorTypeUser     = "user"
	AuthorTypeBusiness = "business"
	AuthorTypeAppMaker = "appMaker"
)

// InboundEvent is one conversation message notification taken from a webhook
// delivery. It is immutable once parsed.
type InboundEvent struct {
	EventID        string
	Type           string
	ConversationID string
	AuthorID       string
	AuthorType     string
	DisplayName    string
	MessageID      string
	Text           string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// IsMessage reports whether the event is a conversation message.
func (e InboundEvent) IsMessage() bool {
	return e.Type == EventTypeMessage
}

// MetadataOrigin is the message metadata key stamped on our own replies.
const MetadataOrigin = "origin"

// Outbound is a message posted back into a conversation.
type Outbound struct {
	ConversationID string
	AuthorRole     string
	Text           string
	Metadata       map[string]string
}
