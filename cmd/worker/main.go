package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bp-management/slack-event-gateway/internal/config"
	"github.com/bp-management/slack-event-gateway/internal/logging"
	"github.com/bp-management/slack-event-gateway/internal/processor"

	natsclient "github.com/bp-management/slack-event-gateway/internal/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	consumerName := flag.String("consumer", "event-worker", "durable consumer name")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("worker"))
	logging.SetDefault(logger)

	slog.Info("Starting event worker",
		slog.String("stream", cfg.NATS.Stream),
		slog.String("consumer", *consumerName),
	)

	jsClient, err := natsclient.NewJetStreamClient(natsclient.DefaultConfig(cfg.NATS.URL))
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerCfg := natsclient.DefaultConsumerConfig(*consumerName, cfg.NATS.Subject+".>")
	handler := processor.Handler(&processor.LogProcessor{Log: logger.Logger}, logger.Logger)

	stop, err := jsClient.ConsumeMessages(ctx, cfg.NATS.Stream, consumerCfg, handler)
	if err != nil {
		log.Fatalf("Failed to start consuming: %v", err)
	}
	defer stop()

	log.Printf("Worker consuming %s.> from stream %s", cfg.NATS.Subject, cfg.NATS.Stream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	log.Println("Worker stopped")
}
