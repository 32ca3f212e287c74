package models

import (
	"encoding/json"
	"time"
)

// FrameKind classifies an inbound envelope into the frames the gateway
// understands. Anything else is rejected before authentication.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameHandshake
	FrameEvent
)

// Envelope is the decoded body of one ingress request. It is a tagged
// union over the two recognized frame kinds: the URL-verification
// handshake and the event callback.
type Envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Token     string          `json:"token,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	APIAppID  string          `json:"api_app_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	EventTime int64           `json:"event_time,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// ParseEnvelope decodes a raw request body. A decode failure or a body
// that is not a JSON object yields a nil envelope; classification of the
// decoded shape is the caller's job via Kind.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Kind classifies the envelope. A handshake is any frame carrying a
// challenge token; an event frame must carry an event sub-object.
func (e *Envelope) Kind() FrameKind {
	switch {
	case e.Challenge != "":
		return FrameHandshake
	case len(e.Event) > 0:
		return FrameEvent
	default:
		return FrameUnknown
	}
}

// InnerEventType extracts the type tag of the event sub-payload without
// committing to its full schema.
func (e *Envelope) InnerEventType() string {
	if len(e.Event) == 0 {
		return ""
	}
	var inner struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(e.Event, &inner); err != nil {
		return ""
	}
	return inner.Type
}

// DomainEvent is the document handed to the execution backend. One is
// dispatched per accepted envelope; the backend owns everything after
// that.
type DomainEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	TeamID     string          `json:"team_id,omitempty"`
	APIAppID   string          `json:"api_app_id,omitempty"`
	Event      json.RawMessage `json:"event"`
	EventTime  int64           `json:"event_time,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	RequestID  string          `json:"request_id,omitempty"`
}

// ToDomainEvent builds the dispatch document from an event-callback
// envelope. receivedAt is the gateway's receipt wall-clock time.
func (e *Envelope) ToDomainEvent(receivedAt time.Time, requestID string) *DomainEvent {
	return &DomainEvent{
		EventID:    e.EventID,
		Type:       e.InnerEventType(),
		TeamID:     e.TeamID,
		APIAppID:   e.APIAppID,
		Event:      e.Event,
		EventTime:  e.EventTime,
		ReceivedAt: receivedAt,
		RequestID:  requestID,
	}
}

// AckResponse is the success body returned for dispatched and
// duplicate-suppressed events.
type AckResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ChallengeResponse echoes the handshake token back to the sender.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}
