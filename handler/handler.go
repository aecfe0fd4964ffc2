package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"support-agent/internal/signature"
	"support-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	healthMessage     = "support-agent is running"
)

type dispatcher interface {
	Dispatch(ctx context.Context, in usecase.DispatchInput) (usecase.DispatchOutput, error)
}

type Handler struct {
	dispatcher dispatcher
}

type webhookResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(d dispatcher) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	return &Handler{dispatcher: d}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if req.HTTPMethod == http.MethodGet {
		return textResponse(http.StatusOK, healthMessage, correlationID), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, errorResponse{
				Error:  string(usecase.ErrorValidation),
				Reason: "invalid_body_encoding",
			}, correlationID), nil
		}
		body = decoded
	}

	out, err := h.dispatcher.Dispatch(ctx, usecase.DispatchInput{
		Body:          body,
		Signature:     header(req.Headers, signature.HeaderName),
		CorrelationID: correlationID,
	})
	if err != nil {
		status, payload := mapError(err)
		slog.Warn("webhook rejected",
			"correlation_id", correlationID, "status", status, "error", payload.Error, "reason", payload.Reason)
		return jsonResponse(status, payload, correlationID), nil
	}

	return jsonResponse(http.StatusOK, webhookResponse{
		Status:    string(out.Status),
		Processed: len(out.Results),
	}, correlationID), nil
}

func mapError(err error) (int, errorResponse) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	resp := errorResponse{Error: string(uerr.Code), Reason: uerr.Reason}
	switch uerr.Code {
	case usecase.ErrorAuthentication:
		return http.StatusUnauthorized, resp
	case usecase.ErrorValidation:
		return http.StatusBadRequest, resp
	case usecase.ErrorUnavailable:
		return http.StatusServiceUnavailable, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

// header looks up a header case-insensitively; API Gateway preserves the
// client's casing.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, payload any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

func textResponse(status int, body, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "text/plain; charset=utf-8",
			correlationHeader: correlationID,
		},
		Body: body,
	}
}
