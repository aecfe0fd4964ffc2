package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"support-agent/internal/domain"
)

const (
	defaultModel             = "gpt-4"
	defaultCompletionTimeout = 15 * time.Second
	defaultDeliveryTimeout   = 10 * time.Second
	defaultEscalationTag     = "live_agent_requested"
	defaultMarker            = "support-agent-autoreply"

	// AuthorRoleBusiness posts a message as the business side of the conversation.
	AuthorRoleBusiness = "business"

	// EscalationAck is sent once when a customer asks for a person.
	EscalationAck = "Thanks for reaching out. A member of our support team will join this conversation shortly."
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

type Deliverer interface {
	SendMessage(ctx context.Context, msg domain.Outbound) error
}

type TicketTagger interface {
	Tags(ctx context.Context, conversationID string) ([]string, error)
	AddTag(ctx context.Context, conversationID, tag string) error
}

// Gate is the circuit breaker surface used by the pipeline.
type Gate interface {
	Allow() bool
	Disabled() bool
	RecordFailure()
	RecordSuccess()
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ReplyConfig struct {
	Model             string
	CompletionTimeout time.Duration
	DeliveryTimeout   time.Duration
	EscalationTag     string
	Marker            string
	FAQs              []domain.FAQ
}

// ReplyService turns an admitted message into a delivered reply, or into an
// escalation acknowledgment.
type ReplyService struct {
	llm      LLMClient
	delivery Deliverer
	tickets  TicketTagger
	gate     Gate
	cfg      ReplyConfig
	log      *slog.Logger
}

// NewReplyService creates a ReplyService. tickets may be nil when no
// ticketing system is configured.
func NewReplyService(llm LLMClient, delivery Deliverer, tickets TicketTagger, gate Gate, cfg ReplyConfig) (*ReplyService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if delivery == nil {
		return nil, errors.New("usecase: deliverer must not be nil")
	}
	if gate == nil {
		return nil, errors.New("usecase: gate must not be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = defaultCompletionTimeout
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if strings.TrimSpace(cfg.EscalationTag) == "" {
		cfg.EscalationTag = defaultEscalationTag
	}
	if strings.TrimSpace(cfg.Marker) == "" {
		cfg.Marker = defaultMarker
	}
	if len(cfg.FAQs) == 0 {
		cfg.FAQs = DefaultFAQs
	}
	return &ReplyService{
		llm:      llm,
		delivery: delivery,
		tickets:  tickets,
		gate:     gate,
		cfg:      cfg,
		log:      slog.Default().With("component", "reply"),
	}, nil
}

// Reply generates and delivers an automated answer for e. A conversation
// whose ticket already carries the escalation tag is skipped with an
// ErrorRejected error. Completion and delivery failures count against the
// gate; a delivered reply closes it.
func (s *ReplyService) Reply(ctx context.Context, e domain.InboundEvent) error {
	if s.alreadyEscalated(ctx, e.ConversationID) {
		return newError(ErrorRejected, "already_escalated", nil)
	}

	raw, err := s.complete(ctx, e.Text)
	if err != nil {
		s.gate.RecordFailure()
		return err
	}
	reply, err := parseReply(raw)
	if err != nil {
		s.gate.RecordFailure()
		return newError(ErrorDependency, "completion_malformed_response", err)
	}

	if err := s.deliver(ctx, e.ConversationID, reply); err != nil {
		s.gate.RecordFailure()
		return err
	}

	s.gate.RecordSuccess()
	return nil
}

// Escalate acknowledges a request for a person and tags the ticket. Tagging
// is best-effort: its failure is logged and never fails the escalation.
func (s *ReplyService) Escalate(ctx context.Context, e domain.InboundEvent) error {
	if err := s.deliver(ctx, e.ConversationID, EscalationAck); err != nil {
		s.gate.RecordFailure()
		return err
	}

	if s.tickets == nil {
		s.log.Warn("no ticketing client configured, escalation tag not set", "conversation_id", e.ConversationID)
		return nil
	}
	if err := s.tickets.AddTag(ctx, e.ConversationID, s.cfg.EscalationTag); err != nil {
		s.log.Warn("escalation tag update failed",
			"code", ErrorDegraded, "conversation_id", e.ConversationID, "tag", s.cfg.EscalationTag, "err", err)
	}
	return nil
}

// alreadyEscalated fails open: a lookup error is treated as "not tagged".
func (s *ReplyService) alreadyEscalated(ctx context.Context, conversationID string) bool {
	if s.tickets == nil {
		return false
	}
	tags, err := s.tickets.Tags(ctx, conversationID)
	if err != nil {
		s.log.Warn("ticket tag lookup failed, assuming not escalated",
			"code", ErrorDegraded, "conversation_id", conversationID, "err", err)
		return false
	}
	return slices.Contains(tags, s.cfg.EscalationTag)
}

func (s *ReplyService) complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()

	started := time.Now()
	raw, err := s.llm.Chat(ctx, s.cfg.Model, buildPromptMessages(s.cfg.FAQs, text))
	if err != nil {
		s.log.Error("completion request failed", "duration_ms", time.Since(started).Milliseconds(), "err", err)
		return "", newError(ErrorDependency, dependencyReason(ctx, "completion", err), err)
	}
	return raw, nil
}

func (s *ReplyService) deliver(ctx context.Context, conversationID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	err := s.delivery.SendMessage(ctx, domain.Outbound{
		ConversationID: conversationID,
		AuthorRole:     AuthorRoleBusiness,
		Text:           text,
		Metadata:       map[string]string{domain.MetadataOrigin: s.cfg.Marker},
	})
	if err != nil {
		s.log.Error("delivery failed", "conversation_id", conversationID, "err", err)
		return newError(ErrorDependency, dependencyReason(ctx, "delivery", err), err)
	}
	return nil
}

func dependencyReason(ctx context.Context, dep string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return dep + "_timeout"
	default:
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return dep + "_rate_limited"
		}
		return dep + "_error"
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
