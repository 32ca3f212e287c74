package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bp-management/slack-event-gateway/internal/gateway"
	"github.com/bp-management/slack-event-gateway/internal/httputil"
	"github.com/bp-management/slack-event-gateway/internal/ratelimit"
)

// Header names of the Slack Events API. Matching is case-insensitive
// via http.Header.
const (
	TimestampHeader = "X-Slack-Request-Timestamp"
	SignatureHeader = "X-Slack-Signature"
)

// Readiness reports whether a backing client is reachable.
type Readiness interface {
	Ready(ctx context.Context) error
}

// ReadyFunc adapts a function to the Readiness interface.
type ReadyFunc func(ctx context.Context) error

func (f ReadyFunc) Ready(ctx context.Context) error {
	return f(ctx)
}

// EventsHandler terminates the ingress HTTP surface and delegates the
// pipeline to the gateway.
type EventsHandler struct {
	gw          *gateway.Gateway
	rateLimiter ratelimit.RateLimiter
	readiness   []Readiness
}

func NewEventsHandler(gw *gateway.Gateway, rateLimiter ratelimit.RateLimiter, readiness ...Readiness) *EventsHandler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	return &EventsHandler{
		gw:          gw,
		rateLimiter: rateLimiter,
		readiness:   readiness,
	}
}

// HandleEvents is the single ingress endpoint for handshake and event
// frames.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sourceIP := getClientIP(r)
	allowed, err := h.rateLimiter.Allow(r.Context(), "ip:"+sourceIP)
	if err != nil {
		// A limiter error is not a reason to drop traffic: fail open.
		slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
			slog.String("ip", sourceIP),
			slog.String("error", err.Error()))
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// The exact bytes received are what the signature covers; nothing
	// may re-serialize the body before verification.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	result := h.gw.Process(r.Context(), gateway.Ingress{
		Body:      body,
		Timestamp: r.Header.Get(TimestampHeader),
		Signature: r.Header.Get(SignatureHeader),
	})

	httputil.WriteJSON(w, result.Status, result.Body)
}

func (h *EventsHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready pings the backing clients. Degraded dependencies are reported
// but the gateway still accepts traffic (dedup fails open, dispatch
// failures surface per-request).
func (h *EventsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	problems := make([]string, 0)
	for _, dep := range h.readiness {
		if err := dep.Ready(r.Context()); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":   "degraded",
			"problems": problems,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
