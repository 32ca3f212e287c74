// Package dedup suppresses duplicate webhook deliveries. Reservations
// are made with a single atomic conditional write so that concurrent
// deliveries of the same event race safely: exactly one wins.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bp-management/slack-event-gateway/internal/metrics"
)

// Store reserves and releases event IDs.
type Store interface {
	// TryReserve records the event ID if it has not been seen before.
	// Returns true when this call created the record (first delivery,
	// caller must process) and false when a record already existed
	// (duplicate, caller must suppress). A missing event ID or an
	// unreachable store yields true: availability of the ingress path
	// is prioritized over perfect dedup.
	TryReserve(ctx context.Context, eventID string, ttl time.Duration) bool

	// Release deletes a previously reserved record so the sender's
	// retry can be reprocessed. Used only to compensate a reservation
	// whose dispatch failed.
	Release(ctx context.Context, eventID string) error

	Close() error
}

// RedisStore implements Store on Redis. The reservation is SET NX with
// an expiry, which is atomic on the server side.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL, keyPrefix string, log *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStoreFromClient(client, keyPrefix, log), nil
}

// NewRedisStoreFromClient wraps an existing Redis connection.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
		log:    log,
	}
}

// Client exposes the underlying connection so it can be shared with
// other Redis-backed components (rate limiting, readiness probes).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(eventID string) string {
	return s.prefix + eventID
}

// TryReserve implements Store. The stored value is the receipt time,
// kept for operator inspection only; the key's existence is what
// suppresses duplicates.
func (s *RedisStore) TryReserve(ctx context.Context, eventID string, ttl time.Duration) bool {
	if eventID == "" {
		// Non-deduplicable event, always forwarded.
		return true
	}

	created, err := s.client.SetNX(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		// Fail open: the sender's retry semantics already tolerate
		// at-least-once delivery downstream.
		s.log.WarnContext(ctx, "dedup store unavailable, allowing event through",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
		metrics.DedupFailOpen.Inc()
		return true
	}

	if !created {
		metrics.DuplicatesSuppressed.Inc()
	}
	return created
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(eventID)).Err(); err != nil {
		return fmt.Errorf("release dedup record %s: %w", eventID, err)
	}
	metrics.DedupReleases.Inc()
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NoopStore treats every event as first-seen. Used when Redis is
// disabled; duplicate suppression is then entirely best-effort at the
// sender.
type NoopStore struct{}

func (NoopStore) TryReserve(ctx context.Context, eventID string, ttl time.Duration) bool {
	return true
}

func (NoopStore) Release(ctx context.Context, eventID string) error {
	return nil
}

func (NoopStore) Close() error {
	return nil
}
