// Package secrets supplies the signing secret to the gateway. The
// secret is fetched once and cached for the process lifetime.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoSecret is returned when no signing secret is configured or the
// configured source yields an empty value.
var ErrNoSecret = errors.New("no signing secret configured")

// Source supplies the signing secret as an opaque string. Retrieval
// failure is a fatal configuration error for the request it occurs on,
// never a retryable authentication outcome.
type Source interface {
	SigningSecret(ctx context.Context) (string, error)
}

// Static holds a secret loaded from configuration.
type Static struct {
	secret string
}

// NewStatic wraps an already-resolved secret value.
func NewStatic(secret string) *Static {
	return &Static{secret: secret}
}

func (s *Static) SigningSecret(ctx context.Context) (string, error) {
	if s.secret == "" {
		return "", ErrNoSecret
	}
	return s.secret, nil
}

// File reads the secret from a mounted file on first use and caches it
// for the process lifetime.
type File struct {
	path   string
	once   sync.Once
	secret string
	err    error
}

// NewFile creates a file-backed source. The file is not read until the
// first SigningSecret call.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) SigningSecret(ctx context.Context) (string, error) {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			f.err = fmt.Errorf("read signing secret file: %w", err)
			return
		}
		f.secret = strings.TrimSpace(string(data))
		if f.secret == "" {
			f.err = fmt.Errorf("%w: %s is empty", ErrNoSecret, f.path)
		}
	})
	return f.secret, f.err
}

// FromConfig picks the source implied by the configuration: an inline
// secret wins, then a secret file. Returns an error when neither is set
// so misconfiguration surfaces at startup, not on the first delivery.
func FromConfig(inline, file string) (Source, error) {
	switch {
	case inline != "":
		return NewStatic(inline), nil
	case file != "":
		return NewFile(file), nil
	default:
		return nil, ErrNoSecret
	}
}
