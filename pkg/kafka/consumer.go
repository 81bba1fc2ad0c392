package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ThinhVo0/BT4-CNPMM/pkg/kafka"

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterer receives messages that could not be handled.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg kafka.Message, cause error, group string) error
}

// ConsumerConfig configures a consumer group reader.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// ConsumerOption customises a Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetter forwards messages that exhaust their retries, or fail to
// decode, to dl before they are committed.
func WithDeadLetter(dl DeadLetterer) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = dl }
}

// WithMetrics records consumer metrics on m.
func WithMetrics(m *Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithReader replaces the kafka-go reader.
func WithReader(r Reader) ConsumerOption {
	return func(c *Consumer) { c.reader = r }
}

// Consumer fetches messages, runs the handler with retries and commits each
// message once it has been handled or given up on.
type Consumer struct {
	cfg        ConsumerConfig
	reader     Reader
	handler    Handler
	logger     *slog.Logger
	deadLetter DeadLetterer
	metrics    *Metrics
	closeOnce  sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	c := &Consumer{cfg: cfg, handler: handler, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.reader == nil {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return c
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.cfg.Topic),
		slog.String("group", c.cfg.GroupID),
	)
	defer func() {
		if err := c.Close(); err != nil {
			c.logger.Warn("consumer close failed", slog.String("error", err.Error()))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.cfg.Topic))
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			if !sleep(ctx, c.cfg.RetryBackoff) {
				return nil
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	c.metrics.count(received, msg.Topic, c.cfg.GroupID)

	ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg.Headers))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.kafka.consumer.group", c.cfg.GroupID),
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
	defer span.End()

	log := c.logger.With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		log.ErrorContext(ctx, "undecodable message", slog.String("error", err.Error()))
		c.fail(ctx, span, msg, err)
		c.commit(ctx, msg)
		return
	}
	span.SetAttributes(attribute.String("event.type", event.EventType))
	log = log.With(slog.String("event_type", event.EventType), slog.String("aggregate_id", event.AggregateID))

	err = c.handle(ctx, log, event)
	c.metrics.observe(time.Since(start).Seconds(), msg.Topic, c.cfg.GroupID)
	if ctx.Err() != nil {
		// Left uncommitted so the group redelivers it.
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "handler failed after all retries",
			slog.Int("retries", c.cfg.MaxRetries),
			slog.String("error", err.Error()),
		)
		c.fail(ctx, span, msg, err)
	} else {
		c.metrics.count(processed, msg.Topic, c.cfg.GroupID)
	}
	c.commit(ctx, msg)
}

func (c *Consumer) handle(ctx context.Context, log *slog.Logger, event *Event) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = c.handler(ctx, event); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		log.WarnContext(ctx, "handler failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < c.cfg.MaxRetries && !sleep(ctx, time.Duration(attempt)*c.cfg.RetryBackoff) {
			return ctx.Err()
		}
	}
	return err
}

func (c *Consumer) fail(ctx context.Context, span trace.Span, msg kafka.Message, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	c.metrics.count(failed, msg.Topic, c.cfg.GroupID)
	if c.deadLetter == nil {
		return
	}
	if err := c.deadLetter.DeadLetter(ctx, msg, cause, c.cfg.GroupID); err != nil {
		c.logger.ErrorContext(ctx, "dead letter failed", slog.String("error", err.Error()))
		return
	}
	c.metrics.count(deadLetter, msg.Topic, c.cfg.GroupID)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
