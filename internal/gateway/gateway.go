// Package gateway implements the ingress pipeline: envelope parsing,
// handshake short-circuit, signature verification, duplicate
// suppression and dispatch with rollback.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bp-management/slack-event-gateway/internal/dispatch"
	"github.com/bp-management/slack-event-gateway/internal/logging"
	"github.com/bp-management/slack-event-gateway/internal/metrics"
	"github.com/bp-management/slack-event-gateway/internal/middleware"
	"github.com/bp-management/slack-event-gateway/internal/models"
	"github.com/bp-management/slack-event-gateway/internal/secrets"
	"github.com/bp-management/slack-event-gateway/internal/signature"
)

// Terminal ingress outcomes, used in logs and metrics labels.
const (
	OutcomeHandshake  = "handshake"
	OutcomeDispatched = "dispatched"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
	OutcomeRolledBack = "rolled_back"
	OutcomeError      = "error"
)

// DedupStore is the slice of the dedup package the gateway needs.
type DedupStore interface {
	TryReserve(ctx context.Context, eventID string, ttl time.Duration) bool
	Release(ctx context.Context, eventID string) error
}

// Dispatcher hands a validated event to the execution backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.DomainEvent) (dispatch.Handle, error)
}

// Ingress is the raw material of one ingress call: the exact body bytes
// received and the two authentication headers.
type Ingress struct {
	Body      []byte
	Timestamp string
	Signature string
}

// Result is the terminal ingress response.
type Result struct {
	Status int
	Body   any
}

// Gateway orchestrates one ingress call. Stateless per call; the
// injected clients are reused across calls and safe for concurrent use.
type Gateway struct {
	secrets  secrets.Source
	verifier *signature.Verifier
	store    DedupStore
	disp     Dispatcher
	dedupTTL time.Duration
	log      *logging.Logger
}

// New wires the gateway. dedupTTL controls how long a dedup record
// suppresses redeliveries; expiry after that is accepted reprocessing,
// not a bug.
func New(src secrets.Source, verifier *signature.Verifier, store DedupStore, disp Dispatcher, dedupTTL time.Duration, log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.Default()
	}
	return &Gateway{
		secrets:  src,
		verifier: verifier,
		store:    store,
		disp:     disp,
		dedupTTL: dedupTTL,
		log:      log,
	}
}

// Process runs the ingress state machine over one request and returns
// the response to send. It never panics the caller with an error: every
// failure category maps to its status code here.
func (g *Gateway) Process(ctx context.Context, in Ingress) Result {
	metrics.RequestBytesTotal.Add(float64(len(in.Body)))

	env, err := models.ParseEnvelope(in.Body)
	if err != nil || env.Kind() == models.FrameUnknown {
		// Not the protocol we speak. Handshake and event frames are
		// the only shapes accepted from the front door.
		g.log.WarnContext(ctx, "unrecognized request shape", logging.Outcome(OutcomeRejected))
		metrics.RequestsTotal.WithLabelValues(OutcomeRejected).Inc()
		return Result{Status: http.StatusForbidden, Body: map[string]string{"error": ErrUnrecognized.Error()}}
	}

	// The handshake establishes this endpoint's identity to the sender
	// and carries no trust-sensitive payload, so it is answered before
	// any signature check.
	if env.Kind() == models.FrameHandshake {
		g.log.InfoContext(ctx, "answering url verification challenge", logging.Outcome(OutcomeHandshake))
		metrics.RequestsTotal.WithLabelValues(OutcomeHandshake).Inc()
		return Result{Status: http.StatusOK, Body: models.ChallengeResponse{Challenge: env.Challenge}}
	}

	if err := g.authenticate(ctx, in); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			g.log.WarnContext(ctx, "request rejected",
				slog.String("reason", authErr.Reason),
				logging.Outcome(OutcomeRejected))
			metrics.SignatureFailures.WithLabelValues(authErr.Reason).Inc()
			metrics.RequestsTotal.WithLabelValues(OutcomeRejected).Inc()
			return Result{Status: http.StatusUnauthorized, Body: map[string]string{"error": authMessage(authErr)}}
		}
		// Secret retrieval failed: fatal configuration error, not an
		// authentication outcome.
		g.log.ErrorContext(ctx, "signing secret unavailable", logging.Error(err), logging.Outcome(OutcomeError))
		metrics.RequestsTotal.WithLabelValues(OutcomeError).Inc()
		return Result{Status: http.StatusInternalServerError, Body: map[string]string{"error": "internal error"}}
	}

	event := env.ToDomainEvent(time.Now().UTC(), middleware.GetRequestID(ctx))

	// Missing event_id means non-deduplicable; TryReserve handles that
	// by always granting the reservation.
	if !g.store.TryReserve(ctx, event.EventID, g.dedupTTL) {
		g.log.InfoContext(ctx, "duplicate event suppressed",
			logging.EventID(event.EventID),
			logging.Outcome(OutcomeSuppressed))
		metrics.RequestsTotal.WithLabelValues(OutcomeSuppressed).Inc()
		return Result{Status: http.StatusOK, Body: models.AckResponse{OK: true, Message: "duplicate event"}}
	}

	handle, err := g.disp.Dispatch(ctx, event)
	if err != nil {
		// Compensate the reservation so the sender's retry is not
		// silently and permanently suppressed. Best-effort: a release
		// failure changes nothing outwardly.
		if relErr := g.store.Release(ctx, event.EventID); relErr != nil {
			g.log.ErrorContext(ctx, "failed to release dedup reservation",
				logging.EventID(event.EventID),
				logging.Error(relErr))
		}
		g.log.ErrorContext(ctx, "dispatch failed, reservation rolled back",
			logging.EventID(event.EventID),
			logging.Error(err),
			logging.Outcome(OutcomeRolledBack))
		metrics.RequestsTotal.WithLabelValues(OutcomeRolledBack).Inc()
		return Result{Status: http.StatusInternalServerError, Body: map[string]string{"error": "failed to dispatch event"}}
	}

	g.log.InfoContext(ctx, "event dispatched",
		logging.EventID(event.EventID),
		logging.EventType(event.Type),
		logging.TeamID(event.TeamID),
		slog.String(logging.FieldHandle, handle.String()),
		logging.Outcome(OutcomeDispatched))
	metrics.RequestsTotal.WithLabelValues(OutcomeDispatched).Inc()
	return Result{Status: http.StatusOK, Body: models.AckResponse{OK: true}}
}

// authenticate runs the replay-window and MAC checks. Returns an
// *AuthError for 401 conditions and a bare error when the secret
// source fails.
func (g *Gateway) authenticate(ctx context.Context, in Ingress) error {
	if in.Timestamp == "" || in.Signature == "" {
		return &AuthError{Reason: ReasonMissingHeaders}
	}

	secret, err := g.secrets.SigningSecret(ctx)
	if err != nil {
		return err
	}

	if err := g.verifier.Verify(secret, in.Timestamp, in.Signature, in.Body); err != nil {
		switch {
		case errors.Is(err, signature.ErrStaleTimestamp):
			return &AuthError{Reason: ReasonStaleTimestamp, Err: err}
		case errors.Is(err, signature.ErrBadTimestamp):
			return &AuthError{Reason: ReasonBadTimestamp, Err: err}
		default:
			return &AuthError{Reason: ReasonBadSignature, Err: err}
		}
	}
	return nil
}

func authMessage(err *AuthError) string {
	switch err.Reason {
	case ReasonMissingHeaders:
		return "missing signature headers"
	case ReasonStaleTimestamp:
		return "stale request timestamp"
	case ReasonBadTimestamp:
		return "invalid request timestamp"
	default:
		return "invalid signature"
	}
}
