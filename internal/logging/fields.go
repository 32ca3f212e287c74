package logging

import "log/slog"

// Common field names for consistent logging across the gateway.
const (
	FieldService   = "service"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldTeamID    = "team_id"
	FieldOutcome   = "outcome"
	FieldHandle    = "dispatch_handle"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// EventID returns a slog attribute for the sender-assigned event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for the inner event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// TeamID returns a slog attribute for the workspace the event came from.
func TeamID(id string) slog.Attr {
	return slog.String(FieldTeamID, id)
}

// Outcome returns a slog attribute for the terminal ingress outcome.
func Outcome(o string) slog.Attr {
	return slog.String(FieldOutcome, o)
}

// Error returns a slog attribute for an error value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
