package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// KafkaConfig configures the event consumer.
type KafkaConfig struct {
	Brokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic          string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"reservation-events"`
	GroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"notifykit"`
	MinBytes       int           `env:"KAFKA_MIN_BYTES" envDefault:"1"`
	MaxBytes       int           `env:"KAFKA_MAX_BYTES" envDefault:"10000000"`
	CommitInterval time.Duration `env:"KAFKA_COMMIT_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether brokers are configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 && c.Topic != "" }

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Routable is implemented by *Router.
type Routable interface {
	RouteNotification(ctx context.Context, ec EventContext)
}

// KafkaConsumer reads JSON encoded EventContext messages and routes them.
// Messages are committed after routing, so a crash replays at most the
// uncommitted tail. Malformed messages are logged and committed.
type KafkaConsumer struct {
	reader MessageReader
	router Routable
	logger *slog.Logger
}

// NewKafkaReader builds a consumer group reader from cfg.
func NewKafkaReader(cfg KafkaConfig) (*kafka.Reader, error) {
	if !cfg.Enabled() {
		return nil, ErrKafkaNotConfigured
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    kafka.LastOffset,
	}), nil
}

// NewKafkaConsumer creates a consumer. l may be nil.
func NewKafkaConsumer(reader MessageReader, router Routable, l *slog.Logger) *KafkaConsumer {
	if l == nil {
		l = slog.Default()
	}
	return &KafkaConsumer{reader: reader, router: router, logger: l.With(logger.Component("kafka-consumer"))}
}

// Run consumes until ctx is done or the reader is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.logger.LogAttrs(ctx, slog.LevelInfo, "kafka consumer started")
	defer c.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "kafka consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.LogAttrs(ctx, slog.LevelError, "fetch event message", logger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.LogAttrs(ctx, slog.LevelError, "commit event message",
				slog.Int64("offset", msg.Offset),
				logger.Error(err),
			)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	ec, err := DecodeEvent(msg.Value)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "discarding malformed event message",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return
	}
	c.router.RouteNotification(ctx, ec)
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// DecodeEvent parses a JSON event message.
func DecodeEvent(data []byte) (EventContext, error) {
	var ec EventContext
	if err := json.Unmarshal(data, &ec); err != nil {
		return EventContext{}, errors.Join(ErrInvalidEvent, err)
	}
	ev, err := ParseEvent(string(ec.Event))
	if err != nil {
		return EventContext{}, err
	}
	ec.Event = ev
	if err := validateReservation(ec.Reservation); err != nil {
		return EventContext{}, err
	}
	return ec, nil
}

// EncodeEvent is the inverse of DecodeEvent, for producers and tests.
func EncodeEvent(ec EventContext) ([]byte, error) {
	b, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}
