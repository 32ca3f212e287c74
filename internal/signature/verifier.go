// Package signature verifies the HMAC request signatures attached to
// inbound webhook deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Version is the signature scheme prefix. It is both the wire prefix of
// the signature header and the first component of the signing base string.
const Version = "v0"

// DefaultReplayTolerance bounds how far a request timestamp may drift
// from server time, in either direction, before the request is rejected
// as a possible replay.
const DefaultReplayTolerance = 5 * time.Minute

var (
	// ErrStaleTimestamp is returned when the request timestamp falls
	// outside the replay window. Checked before any MAC computation.
	ErrStaleTimestamp = errors.New("request timestamp outside replay window")

	// ErrBadTimestamp is returned when the timestamp header is not a
	// parseable epoch-seconds value.
	ErrBadTimestamp = errors.New("request timestamp is not a unix timestamp")

	// ErrMismatch is returned when the supplied signature does not match
	// the one computed over the request body.
	ErrMismatch = errors.New("signature mismatch")
)

// Verifier validates that a request body was produced by the holder of
// the shared signing secret, within a bounded time window. The zero
// tolerance means DefaultReplayTolerance.
type Verifier struct {
	tolerance time.Duration
	now       func() time.Time
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithTolerance overrides the replay window half-width.
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) { v.tolerance = d }
}

// WithClock overrides the wall-clock source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		tolerance: DefaultReplayTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the supplied signature against the exact bytes received.
// The replay-window check runs before the MAC: an expired window is
// rejected with ErrStaleTimestamp regardless of signature correctness.
// body must be the unmodified request bytes, not a re-serialization.
func (v *Verifier) Verify(secret, timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadTimestamp, timestamp)
	}

	// Compared in whole seconds. Converting the skew to a Duration
	// would overflow int64 nanoseconds for extreme timestamps and wrap
	// past the window.
	now := v.now().Unix()
	tol := int64(v.tolerance / time.Second)
	if ts < now-tol || ts > now+tol {
		return fmt.Errorf("%w: timestamp %d outside ±%s of server time", ErrStaleTimestamp, ts, v.tolerance)
	}

	if !hmac.Equal([]byte(Compute(secret, timestamp, body)), []byte(signature)) {
		return ErrMismatch
	}
	return nil
}

// Compute returns the expected signature for the given secret, timestamp
// and raw body: "v0=" + hex(HMAC-SHA256(secret, "v0:" + ts + ":" + body)).
func Compute(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Version + ":" + timestamp + ":"))
	mac.Write(body)
	return Version + "=" + hex.EncodeToString(mac.Sum(nil))
}
