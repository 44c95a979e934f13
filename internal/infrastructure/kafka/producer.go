package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"ethcrawler/internal/infrastructure/telemetry"
	"ethcrawler/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes lookup events to a single topic.
type Producer struct {
	writer messageWriter
	topic  string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "ethcrawler-lookups"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 200 * time.Millisecond,
		Async:        false,
	}
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishLookup writes msg keyed by address so one address stays on one
// partition.
func (p *Producer) PublishLookup(ctx context.Context, msg streaming.Message) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "kafka", "lookup.publish", trace.SpanKindProducer,
		attribute.String("address", msg.Address),
		attribute.String("lookup.outcome", string(msg.Outcome)),
		attribute.String("messaging.destination", p.topic),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if msg.TraceID == "" {
		msg.TraceID = telemetry.TraceIDFromContext(ctx)
	}
	payload, err := streaming.Encode(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(strings.ToLower(msg.Address)),
		Value:   payload,
		Headers: telemetry.InjectKafkaHeaders(ctx, nil),
	})
}
