package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/app"
	"github.com/Wuchinator/learning-analytics/internal/config"
	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/Wuchinator/learning-analytics/pkg/kafka"
	"github.com/Wuchinator/learning-analytics/pkg/logger"
	"go.uber.org/zap"
)

// ingest-consumer tracks the events other LMS services write to the ingest
// topic, so they take the same path as events sent over gRPC.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "ingest-consumer")
	log.Info("Starting Ingest Consumer",
		zap.String("environment", cfg.Environment),
		zap.String("topic", cfg.Kafka.IngestTopic),
		zap.String("consumer_group", cfg.Kafka.ConsumerGroup),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore(context.Background())

	eventService, err := app.NewEventService(cfg, s, metrics.New(), log)
	if err != nil {
		log.Fatal("Failed to create event service", zap.Error(err))
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topics:            []string{cfg.Kafka.IngestTopic},
		GroupID:           cfg.Kafka.ConsumerGroup,
		AutoCommit:        true,
		CommitInterval:    1 * time.Second,
		SessionTimeout:    10 * time.Second,
		RebalanceStrategy: "sticky",
	}, eventService.HandleMessage, log)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-consumer.WaitReady():
			log.Info("Kafka consumer is ready and consuming messages")
		case <-ctx.Done():
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")
	cancel()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("Consumer did not stop in time")
	}

	log.Info("Ingest Consumer stopped")
}
