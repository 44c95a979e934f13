package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ethcrawler/internal/infrastructure/telemetry"
	"ethcrawler/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const fetchRetryDelay = 100 * time.Millisecond

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerObserver interface {
	IncKafkaFetchErr()
	IncKafkaDecodeErr()
	IncKafkaCommitErr()
}

// Record is one decoded lookup event with its position on the topic.
type Record struct {
	Message   streaming.Message
	Partition int
	Offset    int64
	Time      time.Time
}

type Handler func(ctx context.Context, record Record) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads lookup events for one consumer group.
type Consumer struct {
	reader     messageReader
	observer   ConsumerObserver
	retryDelay time.Duration
}

func NewConsumer(cfg ConsumerConfig, observer ConsumerObserver) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic is required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, observer), nil
}

func newConsumer(reader messageReader, observer ConsumerObserver) *Consumer {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Consumer{reader: reader, observer: observer, retryDelay: fetchRetryDelay}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run feeds every event to handle until ctx is done. An offset is committed
// once handle succeeds or the payload turns out to be undecodable.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.observer.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("message decode error", "offset", message.Offset, "err", err)
			c.observer.IncKafkaDecodeErr()
			c.commit(ctx, message)
			continue
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		if !trace.SpanContextFromContext(messageCtx).IsValid() && decoded.TraceID != "" {
			if withTrace, ok := telemetry.ContextWithRemoteTraceID(messageCtx, decoded.TraceID); ok {
				messageCtx = withTrace
			}
		}
		messageCtx, span := telemetry.StartSpan(messageCtx, "kafka", "lookup.consume", trace.SpanKindConsumer,
			attribute.String("message.type", string(decoded.Type)),
			attribute.String("address", decoded.Address),
			attribute.Int64("messaging.offset", message.Offset),
		)
		err = handle(messageCtx, Record{
			Message:   decoded,
			Partition: message.Partition,
			Offset:    message.Offset,
			Time:      message.Time,
		})
		telemetry.EndSpan(span, err)
		if err != nil {
			slog.Error("lookup event handler error", "offset", message.Offset, "err", err)
			continue
		}
		c.commit(ctx, message)
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
		c.observer.IncKafkaCommitErr()
		slog.Error("kafka commit error", "offset", message.Offset, "err", err)
	}
}

type noopObserver struct{}

func (noopObserver) IncKafkaFetchErr()  {}
func (noopObserver) IncKafkaDecodeErr() {}
func (noopObserver) IncKafkaCommitErr() {}
