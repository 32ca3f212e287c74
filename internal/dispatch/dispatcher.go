// Package dispatch hands validated events to the execution backend.
// The handoff is synchronous up to the backend's acceptance
// acknowledgment only; the work itself runs independently of the
// ingress request's lifetime.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bp-management/slack-event-gateway/internal/messaging/nats"
	"github.com/bp-management/slack-event-gateway/internal/metrics"
	"github.com/bp-management/slack-event-gateway/internal/models"
)

// Handle is the opaque reference returned by the backend on successful
// handoff. Used for logging and correlation only; the gateway does not
// retain it.
type Handle struct {
	Stream   string
	Sequence uint64
}

func (h Handle) String() string {
	return fmt.Sprintf("%s/%d", h.Stream, h.Sequence)
}

// Error wraps a failed handoff. The cause is preserved for logging;
// no retries happen here — retry policy belongs to the sender.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch failed: %v", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// subjectToken maps an event type to a single NATS subject token.
// The type string comes from the signed payload, so anything that is
// not token-safe (dots, wildcards, spaces) is routed under "unknown"
// rather than spliced into the subject hierarchy.
func subjectToken(eventType string) string {
	if eventType == "" {
		return "unknown"
	}
	for _, r := range eventType {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return "unknown"
		}
	}
	return eventType
}

// JetStreamDispatcher publishes one document per event to a JetStream
// work queue and waits for the broker's acceptance ack.
type JetStreamDispatcher struct {
	js          *nats.JetStreamClient
	subjectBase string
}

// NewJetStreamDispatcher ensures the events stream exists and returns a
// dispatcher publishing under subjectBase (e.g. "slack.events").
func NewJetStreamDispatcher(ctx context.Context, js *nats.JetStreamClient, streamName, subjectBase string) (*JetStreamDispatcher, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	if _, err := js.CreateOrUpdateStream(ctx, nats.EventsStream(streamName, subjectBase)); err != nil {
		return nil, fmt.Errorf("create events stream: %w", err)
	}

	return &JetStreamDispatcher{
		js:          js,
		subjectBase: subjectBase,
	}, nil
}

// Dispatch schedules exactly one unit of downstream work per successful
// call. Subject format: <base>.<event_type>, so workers can filter by
// event type.
func (d *JetStreamDispatcher) Dispatch(ctx context.Context, ev *models.DomainEvent) (Handle, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Handle{}, &Error{Cause: fmt.Errorf("marshal event: %w", err)}
	}

	subject := fmt.Sprintf("%s.%s", d.subjectBase, subjectToken(ev.Type))

	start := time.Now()
	ack, err := d.js.PublishSync(ctx, subject, data)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchErrors.Inc()
		return Handle{}, &Error{Cause: err}
	}

	return Handle{Stream: ack.Stream, Sequence: ack.Sequence}, nil
}
