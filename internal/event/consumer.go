package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
	pkgkafka "github.com/ThinhVo0/BT4-CNPMM/pkg/kafka"
)

// Product change events. The event type doubles as the topic name.
const (
	TopicProductCreated = "ecommerce.product.created"
	TopicProductUpdated = "ecommerce.product.updated"
	TopicProductDeleted = "ecommerce.product.deleted"
)

// Topics lists every topic the indexer subscribes to.
func Topics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// ProductEventData is the payload of product events. Only the id matters:
// the indexer always reloads the authoritative record.
type ProductEventData struct {
	ID string `json:"id"`
}

// Indexer is the part of the search service driven by product events.
type Indexer interface {
	SyncOne(ctx context.Context, productID string) (service.SyncAction, error)
	Remove(ctx context.Context, productID string) error
}

// Consumer keeps the index in step with product writes.
type Consumer struct {
	indexer Indexer
	logger  *slog.Logger
}

// NewConsumer returns a consumer driving indexer.
func NewConsumer(indexer Indexer, logger *slog.Logger) *Consumer {
	return &Consumer{indexer: indexer, logger: logger}
}

// Handle dispatches event by type. Unknown types are ignored.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.sync(ctx, event)
	case TopicProductDeleted:
		return c.remove(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func productID(event *pkgkafka.Event) (string, error) {
	var data ProductEventData
	if err := event.DecodeData(&data); err != nil {
		return "", err
	}
	if data.ID != "" {
		return data.ID, nil
	}
	if event.AggregateID != "" {
		return event.AggregateID, nil
	}
	return "", fmt.Errorf("%s event %s carries no product id", event.EventType, event.EventID)
}

func (c *Consumer) sync(ctx context.Context, event *pkgkafka.Event) error {
	id, err := productID(event)
	if err != nil {
		return err
	}

	action, err := c.indexer.SyncOne(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Deleted before the event arrived; SyncOne already dropped the doc.
		c.logger.InfoContext(ctx, "product gone before sync", slog.String("product_id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync product from %s: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "product synced from event",
		slog.String("product_id", id),
		slog.String("event_type", event.EventType),
		slog.String("action", string(action)),
	)
	return nil
}

func (c *Consumer) remove(ctx context.Context, event *pkgkafka.Event) error {
	id, err := productID(event)
	if err != nil {
		return err
	}
	if err := c.indexer.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove product from %s: %w", event.EventType, err)
	}
	c.logger.InfoContext(ctx, "product removed from index", slog.String("product_id", id))
	return nil
}
