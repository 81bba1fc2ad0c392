package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(ctx, "e1"))
	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.Contains(ctx, "e1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryIdempotencyStore_AddSweepsExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	_ = s.Add(ctx, "old")
	now = now.Add(time.Hour)
	_ = s.Add(ctx, "new")
	assert.Equal(t, 1, s.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := NewRedisIdempotencyStore(client, "search:events:", time.Hour)

	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "e1"))
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("search:events:e1"))
	assert.Equal(t, time.Hour, mr.TTL("search:events:e1"))

	mr.FastForward(2 * time.Hour)
	ok, _ = s.Contains(ctx, "e1")
	assert.False(t, ok)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisIdempotencyStore(client, "p:", time.Hour).Contains(context.Background(), "e1")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Add(context.Context, string) error             { return errors.New("down") }

func TestIdempotentHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("skips duplicates", func(t *testing.T) {
		calls := 0
		h := IdempotentHandler(NewMemoryIdempotencyStore(time.Hour), func(context.Context, *Event) error {
			calls++
			return nil
		}, discardLogger())

		ev := &Event{EventID: "e1", EventType: "product.updated"}
		require.NoError(t, h(ctx, ev))
		require.NoError(t, h(ctx, ev))
		assert.Equal(t, 1, calls)
	})

	t.Run("failure is not recorded", func(t *testing.T) {
		store := NewMemoryIdempotencyStore(time.Hour)
		fail := true
		calls := 0
		h := IdempotentHandler(store, func(context.Context, *Event) error {
			calls++
			if fail {
				return errors.New("boom")
			}
			return nil
		}, discardLogger())

		ev := &Event{EventID: "e1"}
		assert.Error(t, h(ctx, ev))
		fail = false
		assert.NoError(t, h(ctx, ev))
		assert.Equal(t, 2, calls)
	})

	t.Run("no event id passes through", func(t *testing.T) {
		store := NewMemoryIdempotencyStore(time.Hour)
		calls := 0
		h := IdempotentHandler(store, func(context.Context, *Event) error { calls++; return nil }, discardLogger())
		_ = h(ctx, &Event{})
		_ = h(ctx, &Event{})
		assert.Equal(t, 2, calls)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("store errors process anyway", func(t *testing.T) {
		calls := 0
		h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error { calls++; return nil }, discardLogger())
		assert.NoError(t, h(ctx, &Event{EventID: "e1"}))
		assert.Equal(t, 1, calls)
	})
}
