package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const maxBodyBytes = 1 << 20

// ServeHTTP adapts a plain net/http request to the API Gateway shape so the
// same Handle path runs outside Lambda.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	if err != nil {
		slog.Error("handler failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
