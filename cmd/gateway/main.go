package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bp-management/slack-event-gateway/internal/config"
	"github.com/bp-management/slack-event-gateway/internal/dedup"
	"github.com/bp-management/slack-event-gateway/internal/dispatch"
	"github.com/bp-management/slack-event-gateway/internal/gateway"
	"github.com/bp-management/slack-event-gateway/internal/handlers"
	"github.com/bp-management/slack-event-gateway/internal/logging"
	"github.com/bp-management/slack-event-gateway/internal/ratelimit"
	"github.com/bp-management/slack-event-gateway/internal/secrets"
	"github.com/bp-management/slack-event-gateway/internal/server"
	"github.com/bp-management/slack-event-gateway/internal/signature"

	natsclient "github.com/bp-management/slack-event-gateway/internal/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting event gateway",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Signing secret source (inline config value or mounted file)
	secretSource, err := secrets.FromConfig(cfg.Slack.SigningSecret, cfg.Slack.SigningSecretFile)
	if err != nil {
		log.Fatalf("Signing secret not configured: %v", err)
	}

	// Shared Redis connection for dedup and rate limiting
	var redisClient *redis.Client
	var dedupStore dedup.Store
	if cfg.Redis.Enabled {
		store, err := dedup.NewRedisStore(cfg.Redis.URL, cfg.Dedup.KeyPrefix, logger.Logger)
		if err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v", err)
			log.Println("Continuing without duplicate suppression")
			dedupStore = dedup.NoopStore{}
		} else {
			dedupStore = store
			redisClient = store.Client()
			log.Printf("Duplicate suppression enabled (ttl: %s)", cfg.Dedup.TTL)
		}
	} else {
		dedupStore = dedup.NoopStore{}
		log.Println("Redis disabled - duplicate suppression not available")
	}
	defer dedupStore.Close()

	var rateLimiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled && redisClient != nil {
		rateLimiter = ratelimit.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		log.Printf("Rate limiting enabled: %d requests per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	// Execution backend handoff via JetStream
	jsClient, err := natsclient.NewJetStreamClient(natsclient.DefaultConfig(cfg.NATS.URL))
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dispatcher, err := dispatch.NewJetStreamDispatcher(ctx, jsClient, cfg.NATS.Stream, cfg.NATS.Subject)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize dispatcher: %v", err)
	}
	log.Printf("Dispatcher ready (stream: %s, subject: %s.>)", cfg.NATS.Stream, cfg.NATS.Subject)

	verifier := signature.NewVerifier(signature.WithTolerance(cfg.Slack.ReplayTolerance))
	gw := gateway.New(secretSource, verifier, dedupStore, dispatcher, cfg.Dedup.TTL, logger)

	handler := handlers.NewEventsHandler(gw, rateLimiter,
		handlers.ReadyFunc(func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		}),
		handlers.ReadyFunc(func(ctx context.Context) error {
			if !jsClient.IsConnected() {
				return fmt.Errorf("nats: not connected")
			}
			return nil
		}),
	)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
