package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/config"
	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/pkg/kafka"
	"github.com/Wuchinator/learning-analytics/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// event-emitter sends sample learner journeys to the event service over gRPC
// or to the ingest topic over Kafka.
func main() {
	mode := flag.String("mode", "grpc", "transport: grpc | kafka")
	addr := flag.String("addr", "localhost:50051", "event service address")
	users := flag.Int("users", 5, "number of sample learners")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()
	log = logger.WithService(log, "event-emitter")

	if *users < 1 {
		log.Fatal("Nothing to emit", zap.Int("users", *users))
	}

	rng := rand.New(rand.NewSource(*seed))
	var batch []event.TrackRequest
	for _, l := range newLearners(*users) {
		batch = append(batch, journey(rng, l)...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch *mode {
	case "grpc":
		err = emitGRPC(ctx, *addr, batch, log)
	case "kafka":
		err = emitKafka(ctx, cfg, batch, log)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatal("Emit failed", zap.Error(err))
	}
}

func emitGRPC(ctx context.Context, addr string, batch []event.TrackRequest, log *zap.Logger) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	client := event.NewIngestionClient(conn)

	health, err := client.HealthCheck(ctx, &event.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("Event service health",
		zap.String("status", health.Status),
		zap.Any("dependencies", health.Dependencies),
	)

	first, rest := batch[0], batch[1:]
	single, err := client.TrackEvent(ctx, &event.TrackEventRequest{
		EventType: first.EventType,
		EventData: first.EventData,
	})
	if err != nil {
		return fmt.Errorf("failed to track event: %w", err)
	}
	log.Info("Event tracked", zap.String("event_id", single.EventID), zap.String("date", single.Date))

	if len(rest) == 0 {
		return nil
	}
	resp, err := client.TrackEventBatch(ctx, &event.TrackEventBatchRequest{Events: rest})
	if err != nil {
		return fmt.Errorf("failed to track batch: %w", err)
	}
	log.Info("Batch processed",
		zap.Int("processed", resp.ProcessedCount),
		zap.Int("total", len(rest)),
		zap.Int("failed", len(resp.Failed)),
	)
	return nil
}

func emitKafka(ctx context.Context, cfg *config.Config, batch []event.TrackRequest, log *zap.Logger) error {
	producer, err := kafka.NewProducer(cfg.Kafka.Producer(cfg.Kafka.IngestTopic), log)
	if err != nil {
		return err
	}
	defer producer.Close()

	for _, req := range batch {
		key, _ := req.EventData[event.FieldUserEmail].(string)
		msg := kafka.Message{
			Key:     key,
			Value:   req,
			Headers: map[string]string{event.HeaderEventType: req.EventType},
		}
		if err := producer.Publish(ctx, msg); err != nil {
			return err
		}
	}
	log.Info("Events written to ingest topic",
		zap.String("topic", cfg.Kafka.IngestTopic),
		zap.Int("count", len(batch)),
	)
	return nil
}
