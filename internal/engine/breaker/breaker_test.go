package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// flakyEngine fails every search with err and counts the calls it receives.
type flakyEngine struct {
	*memory.Engine
	err   error
	calls int
}

func (f *flakyEngine) Search(ctx context.Context, q query.Query) (*engine.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.Engine.Search(ctx, q)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	next := &flakyEngine{Engine: memory.New()}
	b := New(next, testConfig("pass"), testLogger())
	ctx := context.Background()

	p := domain.IndexedProduct{ID: "p1", Name: "Lamp", IsActive: true}
	require.NoError(t, b.Index(ctx, &p))

	res, err := b.Search(ctx, query.Build(domain.SearchRequest{Query: "lamp"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, b.Ping(ctx))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_TripsOnUnavailable(t *testing.T) {
	next := &flakyEngine{Engine: memory.New(), err: fmt.Errorf("search: %w", engine.ErrUnavailable)}
	b := New(next, testConfig("trip"), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Search(ctx, query.Build(domain.SearchRequest{}))
		require.ErrorIs(t, err, engine.ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Search(ctx, query.Build(domain.SearchRequest{}))
	assert.ErrorIs(t, err, engine.ErrUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreaker_QueryErrorsDoNotTrip(t *testing.T) {
	next := &flakyEngine{Engine: memory.New(), err: errors.New("bad query")}
	b := New(next, testConfig("query-errors"), testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Search(context.Background(), query.Build(domain.SearchRequest{}))
		require.Error(t, err)
		assert.NotErrorIs(t, err, engine.ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, next.calls)
}
