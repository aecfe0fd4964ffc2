package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"support-agent/internal/domain"
)

type Verifier interface {
	Verify(body []byte, header string) error
}

// Admission is the per-event filter consulted before any outbound work.
type Admission interface {
	MatchBot(e domain.InboundEvent) (string, bool)
	IsRateLimited(userID, retryKey string) bool
	IsDuplicate(conversationID, text, messageID string) bool
}

type Replier interface {
	Reply(ctx context.Context, e domain.InboundEvent) error
	Escalate(ctx context.Context, e domain.InboundEvent) error
}

// Outcome is the terminal state of one event.
type Outcome string

const (
	OutcomeReplied   Outcome = "replied"
	OutcomeEscalated Outcome = "escalated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Status is the request-level result of a dispatch.
type Status string

const (
	StatusAcknowledged Status = "acknowledged"
	StatusDisabled     Status = "disabled"
	StatusIgnored      Status = "ignored"
)

type EventResult struct {
	EventID   string
	MessageID string
	Outcome   Outcome
	Reason    string
}

type DispatchInput struct {
	Body          []byte
	Signature     string
	CorrelationID string
}

type DispatchOutput struct {
	Status  Status
	Results []EventResult
}

// Dispatcher is the webhook entry point: it authenticates the body, then
// routes each event through admission, escalation and reply.
type Dispatcher struct {
	verifier  Verifier
	admission Admission
	gate      Gate
	detector  *EscalationDetector
	replies   Replier
}

func NewDispatcher(v Verifier, a Admission, g Gate, d *EscalationDetector, r Replier) (*Dispatcher, error) {
	if v == nil {
		return nil, errors.New("usecase: verifier must not be nil")
	}
	if a == nil {
		return nil, errors.New("usecase: admission must not be nil")
	}
	if g == nil {
		return nil, errors.New("usecase: gate must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: replier must not be nil")
	}
	if d == nil {
		d = NewEscalationDetector()
	}
	return &Dispatcher{verifier: v, admission: a, gate: g, detector: d, replies: r}, nil
}

// Dispatch processes one webhook delivery. Only request-level problems are
// returned as errors; per-event failures are reported in the results.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (DispatchOutput, error) {
	log := slog.Default().With("component", "dispatcher", "correlation_id", in.CorrelationID)

	if err := d.verifier.Verify(in.Body, in.Signature); err != nil {
		log.Warn("webhook signature rejected", "err", err)
		return DispatchOutput{}, newError(ErrorAuthentication, "invalid_signature", err)
	}

	if d.gate.Disabled() {
		log.Info("auto-reply disabled, acknowledging without processing")
		return DispatchOutput{Status: StatusDisabled}, nil
	}
	if !d.gate.Allow() {
		log.Warn("circuit open, refusing webhook")
		return DispatchOutput{}, newError(ErrorUnavailable, "circuit_open", nil)
	}

	shape, events := parseWebhook(in.Body)
	switch shape {
	case shapeUnknown:
		log.Info("unrecognized webhook shape, ignoring")
		return DispatchOutput{Status: StatusIgnored}, nil
	case shapeSingle:
		e := events[0].event
		if err := validateEvent(e); err != nil && e.IsMessage() {
			return DispatchOutput{}, err
		}
	}

	out := DispatchOutput{Status: StatusAcknowledged, Results: make([]EventResult, 0, len(events))}
	for _, item := range events {
		var res EventResult
		if item.err != nil {
			res = EventResult{EventID: item.event.EventID, Outcome: OutcomeSkipped, Reason: "malformed_event"}
			log.Warn("webhook event could not be decoded", "event_id", res.EventID, "err", item.err)
		} else {
			res = d.handleEvent(ctx, item.event)
		}
		out.Results = append(out.Results, res)
		log.Info("webhook event processed",
			"event_id", res.EventID, "message_id", res.MessageID, "conversation_id", item.event.ConversationID,
			"outcome", res.Outcome, "reason", res.Reason)
	}
	return out, nil
}

func (d *Dispatcher) handleEvent(ctx context.Context, e domain.InboundEvent) EventResult {
	res := EventResult{EventID: e.EventID, MessageID: e.MessageID}
	skip := func(reason string) EventResult {
		res.Outcome, res.Reason = OutcomeSkipped, reason
		return res
	}

	if !e.IsMessage() {
		return skip("not_message")
	}
	if err := validateEvent(e); err != nil {
		var uerr *Error
		if errors.As(err, &uerr) {
			return skip(uerr.Reason)
		}
		return skip("invalid_event")
	}
	if rule, ok := d.admission.MatchBot(e); ok {
		return skip("bot_loop:" + rule)
	}

	if d.detector.IsEscalation(e.Text) {
		if d.admission.IsDuplicate(e.ConversationID, e.Text, e.MessageID) {
			return skip("duplicate")
		}
		if !d.gate.Allow() {
			return skip("circuit_open")
		}
		if err := d.replies.Escalate(ctx, e); err != nil {
			res.Outcome, res.Reason = OutcomeFailed, reasonOf(err)
			return res
		}
		res.Outcome = OutcomeEscalated
		return res
	}

	if d.admission.IsRateLimited(rateKey(e), retryKey(e)) {
		return skip("rate_limited")
	}
	if d.admission.IsDuplicate(e.ConversationID, e.Text, e.MessageID) {
		return skip("duplicate")
	}
	if !d.gate.Allow() {
		return skip("circuit_open")
	}

	if err := d.replies.Reply(ctx, e); err != nil {
		var uerr *Error
		if errors.As(err, &uerr) && uerr.Code == ErrorRejected {
			return skip(uerr.Reason)
		}
		res.Outcome, res.Reason = OutcomeFailed, reasonOf(err)
		return res
	}
	res.Outcome = OutcomeReplied
	return res
}

// rateKey buckets by author, falling back to the conversation for providers
// that omit user IDs.
func rateKey(e domain.InboundEvent) string {
	if id := strings.TrimSpace(e.AuthorID); id != "" {
		return id
	}
	return "conversation:" + e.ConversationID
}

// retryKey identifies re-deliveries of one event so they take a single rate
// slot: the message ID, then the event ID, then the conversation and text.
func retryKey(e domain.InboundEvent) string {
	if e.MessageID != "" {
		return e.MessageID
	}
	if e.EventID != "" {
		return "event:" + e.EventID
	}
	return "content:" + e.ConversationID + "|" + e.Text
}

func reasonOf(err error) string {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Reason
	}
	return "internal_error"
}
