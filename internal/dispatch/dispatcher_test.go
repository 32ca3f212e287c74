package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/bp-management/slack-event-gateway/internal/messaging"
	"github.com/bp-management/slack-event-gateway/internal/messaging/nats"
	"github.com/bp-management/slack-event-gateway/internal/models"
)

// runJetStreamServer starts an embedded NATS server with JetStream
// enabled on an ephemeral port.
func runJetStreamServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("failed to create NATS server: %v", err)
	}
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server did not become ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func newTestDispatcher(t *testing.T, srv *natsserver.Server) (*JetStreamDispatcher, *nats.JetStreamClient) {
	t.Helper()

	js, err := nats.NewJetStreamClient(nats.DefaultConfig(srv.ClientURL()))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { js.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := NewJetStreamDispatcher(ctx, js, "TEST_EVENTS", "slack.events")
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	return d, js
}

func testEvent(eventID, eventType string) *models.DomainEvent {
	payload, _ := json.Marshal(map[string]string{
		"type": eventType,
		"user": "U1234",
		"text": gofakeit.Sentence(8),
	})
	return &models.DomainEvent{
		EventID:    eventID,
		Type:       eventType,
		TeamID:     "T123ABC",
		Event:      payload,
		EventTime:  time.Now().Unix(),
		ReceivedAt: time.Now().UTC(),
	}
}

func TestDispatch(t *testing.T) {
	srv := runJetStreamServer(t)
	d, _ := newTestDispatcher(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handle, err := d.Dispatch(ctx, testEvent("Ev0001", "app_mention"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if handle.Stream != "TEST_EVENTS" {
		t.Errorf("handle stream = %q, want TEST_EVENTS", handle.Stream)
	}
	if handle.Sequence == 0 {
		t.Error("expected non-zero stream sequence")
	}
}

func TestDispatch_SubjectRouting(t *testing.T) {
	srv := runJetStreamServer(t)
	d, js := newTestDispatcher(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	received := make(chan *messaging.Message, 2)
	stop, err := js.ConsumeMessages(ctx, "TEST_EVENTS",
		nats.DefaultConsumerConfig("test-worker", "slack.events.>"),
		func(ctx context.Context, msg *messaging.Message) error {
			received <- msg
			return nil
		})
	if err != nil {
		t.Fatalf("ConsumeMessages() error = %v", err)
	}
	defer stop()

	if _, err := d.Dispatch(ctx, testEvent("Ev0001", "reaction_added")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	// Empty event type routes under the "unknown" leaf.
	if _, err := d.Dispatch(ctx, testEvent("Ev0002", "")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	subjects := make(map[string]*models.DomainEvent)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			var ev models.DomainEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("failed to decode dispatched event: %v", err)
			}
			subjects[msg.Subject] = &ev
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}

	if ev := subjects["slack.events.reaction_added"]; ev == nil || ev.EventID != "Ev0001" {
		t.Errorf("expected Ev0001 on slack.events.reaction_added, got %v", subjects)
	}
	if ev := subjects["slack.events.unknown"]; ev == nil || ev.EventID != "Ev0002" {
		t.Errorf("expected Ev0002 on slack.events.unknown, got %v", subjects)
	}
}

func TestDispatch_ServerGone(t *testing.T) {
	srv := runJetStreamServer(t)
	d, _ := newTestDispatcher(t, srv)

	srv.Shutdown()
	srv.WaitForShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := d.Dispatch(ctx, testEvent("Ev0001", "app_mention"))
	if err == nil {
		t.Fatal("expected error when broker is gone")
	}
	var dispErr *Error
	if !errors.As(err, &dispErr) {
		t.Errorf("expected *Error, got %T", err)
	}
}

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"app_mention", "app_mention"},
		{"reaction_added", "reaction_added"},
		{"a-b_C9", "a-b_C9"},
		{"", "unknown"},
		{"a.b", "unknown"},
		{"a>b", "unknown"},
		{"a*b", "unknown"},
		{"a b", "unknown"},
		{"événement", "unknown"},
	}

	for _, tt := range tests {
		if got := subjectToken(tt.eventType); got != tt.want {
			t.Errorf("subjectToken(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestDispatch_HostileEventTypeRoutesToUnknown(t *testing.T) {
	srv := runJetStreamServer(t)
	d, _ := newTestDispatcher(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A signed payload controls the inner type string; it must not be
	// able to break out of the subject hierarchy.
	handle, err := d.Dispatch(ctx, testEvent("Ev0003", "message.>.hijack"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if handle.Sequence == 0 {
		t.Error("expected event accepted under the unknown subject")
	}
}

func TestNewJetStreamDispatcher_NilClient(t *testing.T) {
	if _, err := NewJetStreamDispatcher(context.Background(), nil, "S", "s"); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestHandleString(t *testing.T) {
	h := Handle{Stream: "SLACK_EVENTS", Sequence: 42}
	if got := h.String(); got != "SLACK_EVENTS/42" {
		t.Errorf("String() = %q, want SLACK_EVENTS/42", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("broker unavailable")
	err := &Error{Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected Error to unwrap to its cause")
	}
}
