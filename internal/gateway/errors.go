package gateway

import (
	"errors"
	"fmt"
)

// ErrUnrecognized marks a request whose body is not one of the
// envelope shapes this gateway speaks. Surfaced as 403.
var ErrUnrecognized = errors.New("unsupported request")

// Authentication failure reasons. Absence of the signature headers is a
// client-configuration error and gets a different log signal than a
// failed cryptographic check, but both map to 401.
const (
	ReasonMissingHeaders = "missing_headers"
	ReasonBadTimestamp   = "bad_timestamp"
	ReasonStaleTimestamp = "stale_timestamp"
	ReasonBadSignature   = "bad_signature"
)

// AuthError is any failure to authenticate the request. Terminal for
// the request, never retried by the gateway.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
