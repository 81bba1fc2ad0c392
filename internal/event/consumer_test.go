package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	pkgkafka "github.com/ThinhVo0/BT4-CNPMM/pkg/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	engine   *memory.Engine
	store    *catalogmemory.Store
	consumer *Consumer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng := memory.New()
	store := catalogmemory.NewStore()
	store.PutCategory(domain.Category{ID: "phones", Name: "Phones", IsActive: true})
	svc := service.NewSearchService(eng, store, discardLogger())
	return &fixture{engine: eng, store: store, consumer: NewConsumer(svc, discardLogger())}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.engine.Count(context.Background())
	require.NoError(t, err)
	return n
}

func newEvent(t *testing.T, eventType, aggregateID string, data any) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(eventType, aggregateID, "product", "catalog", data)
	require.NoError(t, err)
	return ev
}

func product(id string, active bool) domain.Product {
	return domain.Product{
		ID: id, Name: "Phone " + id, Price: 100, CategoryID: "phones",
		IsActive: active, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

func TestConsumer_CreatedAndUpdatedSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.PutProduct(product("p1", true))
	require.NoError(t, f.consumer.Handle(ctx, newEvent(t, TopicProductCreated, "p1", ProductEventData{ID: "p1"})))
	assert.Equal(t, 1, f.count(t))

	f.store.PutProduct(product("p1", false))
	require.NoError(t, f.consumer.Handle(ctx, newEvent(t, TopicProductUpdated, "p1", ProductEventData{ID: "p1"})))
	assert.Equal(t, 0, f.count(t))
}

func TestConsumer_FallsBackToAggregateID(t *testing.T) {
	f := newFixture(t)
	f.store.PutProduct(product("p2", true))

	require.NoError(t, f.consumer.Handle(context.Background(), newEvent(t, TopicProductUpdated, "p2", nil)))
	assert.Equal(t, 1, f.count(t))
}

func TestConsumer_MissingProductIsNotAnError(t *testing.T) {
	f := newFixture(t)
	err := f.consumer.Handle(context.Background(), newEvent(t, TopicProductUpdated, "ghost", ProductEventData{ID: "ghost"}))
	assert.NoError(t, err)
}

func TestConsumer_Deleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutProduct(product("p3", true))
	require.NoError(t, f.consumer.Handle(ctx, newEvent(t, TopicProductCreated, "p3", nil)))
	require.Equal(t, 1, f.count(t))

	require.NoError(t, f.consumer.Handle(ctx, newEvent(t, TopicProductDeleted, "p3", ProductEventData{ID: "p3"})))
	assert.Equal(t, 0, f.count(t))

	// Deleting twice is harmless.
	assert.NoError(t, f.consumer.Handle(ctx, newEvent(t, TopicProductDeleted, "p3", nil)))
}

func TestConsumer_NoProductID(t *testing.T) {
	f := newFixture(t)
	err := f.consumer.Handle(context.Background(), &pkgkafka.Event{EventID: "e1", EventType: TopicProductCreated})
	assert.ErrorContains(t, err, "no product id")
}

func TestConsumer_BadPayload(t *testing.T) {
	f := newFixture(t)
	ev := &pkgkafka.Event{EventID: "e1", EventType: TopicProductDeleted, Data: []byte(`[1,2]`)}
	assert.Error(t, f.consumer.Handle(context.Background(), ev))
}

func TestConsumer_UnknownTypeIgnored(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.consumer.Handle(context.Background(), &pkgkafka.Event{EventType: "order.created"}))
}

type failingIndexer struct{}

func (failingIndexer) SyncOne(context.Context, string) (service.SyncAction, error) {
	return "", errors.New("engine down")
}
func (failingIndexer) Remove(context.Context, string) error { return errors.New("engine down") }

func TestConsumer_IndexerFailuresPropagate(t *testing.T) {
	c := NewConsumer(failingIndexer{}, discardLogger())
	ctx := context.Background()

	err := c.Handle(ctx, newEvent(t, TopicProductUpdated, "p1", nil))
	assert.ErrorContains(t, err, "engine down")

	err = c.Handle(ctx, newEvent(t, TopicProductDeleted, "p1", nil))
	assert.ErrorContains(t, err, "engine down")
}

func TestTopics(t *testing.T) {
	assert.ElementsMatch(t, []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}, Topics())
}
