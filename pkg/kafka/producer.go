package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Headers set on every record.
const (
	HeaderContentType = "content-type"
	HeaderProducedAt  = "produced-at"
)

type ProducerConfig struct {
	Brokers []string
	Topic   string
	Retries int
	Timeout time.Duration

	RequiredAcks     int
	Compression      string
	IdempotentWrites bool
	MaxMessageBytes  int
}

// Message is one record to publish. Value is JSON-encoded; Key picks the
// partition.
type Message struct {
	Key     string
	Value   any
	Headers map[string]string
}

type Producer struct {
	sync   sarama.SyncProducer
	topic  string
	now    func() time.Time
	logger *zap.Logger
}

var compressionCodecs = map[string]sarama.CompressionCodec{
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

// Compression maps a configured codec name to sarama's codec. Unknown names
// disable compression.
func Compression(name string) sarama.CompressionCodec {
	if codec, ok := compressionCodecs[strings.ToLower(strings.TrimSpace(name))]; ok {
		return codec
	}
	return sarama.CompressionNone
}

// NewSaramaConfig translates cfg into a sarama producer configuration.
func NewSaramaConfig(cfg ProducerConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_3_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Compression = Compression(cfg.Compression)
	// Keys are user identifiers, so one user's events stay ordered.
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	sc.Producer.Retry.Max = cfg.Retries
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	if cfg.MaxMessageBytes > 0 {
		sc.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	// Idempotent writes require acks from all replicas and a single
	// in-flight request per connection.
	if cfg.IdempotentWrites {
		sc.Producer.Idempotent = true
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Producer.Retry.Max = max(cfg.Retries, 5)
		sc.Net.MaxOpenRequests = 1
	}
	return sc
}

func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("idempotent", cfg.IdempotentWrites),
		zap.String("compression", Compression(cfg.Compression).String()),
	)
	return NewProducerFrom(sync, cfg.Topic, logger), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(sync sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	return &Producer{
		sync:   sync,
		topic:  topic,
		now:    time.Now,
		logger: logger,
	}
}

// Publish writes msg to the producer's topic and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := p.record(msg)
	if err != nil {
		return err
	}

	partition, offset, err := p.sync.SendMessage(record)
	if err != nil {
		p.logger.Error("Failed to publish to Kafka",
			zap.String("topic", p.topic),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published to Kafka",
		zap.String("topic", p.topic),
		zap.String("key", msg.Key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) record(msg Message) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderContentType), Value: []byte("application/json")},
		{Key: []byte(HeaderProducedAt), Value: []byte(p.now().UTC().Format(time.RFC3339Nano))},
	}
	names := make([]string, 0, len(msg.Headers))
	for name := range msg.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		headers = append(headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(msg.Headers[name])})
	}

	record := &sarama.ProducerMessage{
		Topic:   p.topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}
	if msg.Key != "" {
		record.Key = sarama.StringEncoder(msg.Key)
	}
	return record, nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed", zap.String("topic", p.topic))
	return nil
}
