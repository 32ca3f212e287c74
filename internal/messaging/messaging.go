// Package messaging defines broker-neutral types for handing events to
// the execution backend and consuming them from it.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// MessageHandler processes a received message. Return an error to
// indicate processing failure; the broker implementation decides
// whether that triggers redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error
