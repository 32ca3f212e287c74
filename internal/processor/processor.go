// Package processor is the worker-side counterpart of the gateway: it
// consumes dispatched events and runs the downstream business logic.
// The gateway has no visibility into its outcome.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bp-management/slack-event-gateway/internal/messaging"
	"github.com/bp-management/slack-event-gateway/internal/models"
)

// Processor handles one dispatched event. Implementations carry the
// actual business logic (agent invocation, chat posting, persistence);
// a returned error triggers broker-side redelivery.
type Processor interface {
	Process(ctx context.Context, ev *models.DomainEvent) error
}

// Handler adapts a Processor to the messaging layer, decoding each
// message into a DomainEvent first.
func Handler(p Processor, log *slog.Logger) messaging.MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, msg *messaging.Message) error {
		var ev models.DomainEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			// Undecodable messages never become decodable; ack them
			// away instead of redelivering forever.
			log.ErrorContext(ctx, "dropping undecodable event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()))
			return nil
		}

		if err := p.Process(ctx, &ev); err != nil {
			return fmt.Errorf("process event %s: %w", ev.EventID, err)
		}
		return nil
	}
}

// LogProcessor acknowledges events after logging them. Stands in for
// the real business logic in environments without a backend wired up.
type LogProcessor struct {
	Log *slog.Logger
}

func (p *LogProcessor) Process(ctx context.Context, ev *models.DomainEvent) error {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "processing event",
		slog.String("event_id", ev.EventID),
		slog.String("event_type", ev.Type),
		slog.String("team_id", ev.TeamID),
	)
	return nil
}
