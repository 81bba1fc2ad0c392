package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

var anchor = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGenerate_Deterministic(t *testing.T) {
	opts := Options{Products: 200, Seed: 42, Now: anchor}

	_, a := Generate(opts)
	_, b := Generate(opts)
	assert.Equal(t, a, b)

	_, c := Generate(Options{Products: 200, Seed: 7, Now: anchor})
	assert.NotEqual(t, a, c)
}

func TestGenerate_Shape(t *testing.T) {
	cats, products := Generate(Options{Products: 1000, Seed: 1, Now: anchor})
	require.Len(t, products, 1000)

	catIDs := map[string]bool{}
	for _, c := range cats {
		assert.Regexp(t, validID, c.ID)
		catIDs[c.ID] = true
	}
	assert.True(t, catIDs["home-kitchen"])

	seen := map[string]bool{}
	var discounted, outOfStock int
	for _, p := range products {
		assert.Regexp(t, validID, p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.True(t, catIDs[p.CategoryID])
		assert.GreaterOrEqual(t, p.Rating, 0.0)
		assert.LessOrEqual(t, p.Rating, 5.0)
		assert.False(t, p.CreatedAt.After(anchor))
		if p.OriginalPrice != nil {
			assert.Greater(t, *p.OriginalPrice, p.Price)
			discounted++
		}
		if p.Stock == 0 {
			outOfStock++
		}
	}
	assert.Greater(t, discounted, 0)
	assert.Greater(t, outOfStock, 0)
}

func TestLoad_Batches(t *testing.T) {
	store := catalogmemory.NewStore()
	rec := &recordingWriter{Writer: store}

	sum, err := Load(context.Background(), rec, Options{Products: 120, Seed: 3, BatchSize: 50, Now: anchor}, discard())
	require.NoError(t, err)
	assert.Equal(t, Summary{Categories: len(groups), Products: 120}, sum)
	assert.Equal(t, []int{50, 50, 20}, rec.batches)

	cats, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(groups))
}

func TestLoad_StopsOnWriteError(t *testing.T) {
	rec := &recordingWriter{Writer: catalogmemory.NewStore(), failAfter: 1}

	sum, err := Load(context.Background(), rec, Options{Products: 30, Seed: 3, BatchSize: 10, Now: anchor}, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed products 10-20")
	assert.Equal(t, 10, sum.Products)
}

type recordingWriter struct {
	Writer
	batches   []int
	failAfter int
}

func (w *recordingWriter) UpsertProducts(ctx context.Context, products []domain.Product) error {
	if w.failAfter > 0 && len(w.batches) == w.failAfter {
		return errors.New("disk full")
	}
	w.batches = append(w.batches, len(products))
	return w.Writer.UpsertProducts(ctx, products)
}
