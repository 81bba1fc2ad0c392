// Package embedded implements engine.SearchEngine on a bleve index kept on
// local disk or in memory. It runs the storefront without an Elasticsearch
// cluster.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// Engine implements engine.SearchEngine backed by bleve.
type Engine struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *slog.Logger
	closed bool
}

// New opens the index at path, creating it when missing. An empty path
// keeps the index in memory.
func New(path string, logger *slog.Logger) (*Engine, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	logger.Info("bleve index ready", slog.String("path", path))
	return &Engine{index: idx, logger: logger}, nil
}

// Index adds or replaces a single product document.
func (e *Engine) Index(_ context.Context, product *domain.IndexedProduct) error {
	doc, err := toDocument(product)
	if err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("index %s: %w", product.ID, engine.ErrUnavailable)
	}
	if err := e.index.Index(product.ID, doc); err != nil {
		return fmt.Errorf("index %s: %w", product.ID, err)
	}
	return nil
}

// Delete removes a product document. Deleting a missing document is a no-op.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("delete %s: %w", id, engine.ErrUnavailable)
	}
	if err := e.index.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// BulkIndex writes products in a single batch.
func (e *Engine) BulkIndex(_ context.Context, products []domain.IndexedProduct) error {
	if len(products) == 0 {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("bulk index: %w", engine.ErrUnavailable)
	}

	batch := e.index.NewBatch()
	for i := range products {
		doc, err := toDocument(&products[i])
		if err != nil {
			return err
		}
		if err := batch.Index(products[i].ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", products[i].ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	return nil
}

// Search executes a compiled query. Queries carrying score contributions
// are scored in Go over every match, then sorted and paginated here.
func (e *Engine) Search(ctx context.Context, q query.Query) (*engine.Result, error) {
	bleveQuery, err := translate(q)
	if err != nil {
		return nil, fmt.Errorf("translate query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("search: %w", engine.ErrUnavailable)
	}

	rescore := q.Scoring != nil && len(q.Scoring.Contributions) > 0
	from, size := q.From, q.Size
	if rescore {
		count, err := e.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("doc count: %w", err)
		}
		from, size = 0, max(int(count), 1)
	}

	req := bleve.NewSearchRequestOptions(bleveQuery, size, from, false)
	req.Fields = []string{fieldSource}
	if len(q.Sort) > 0 && !rescore {
		req.SortByCustom(sortOrder(q.Sort))
	}
	if q.Highlight != nil {
		req.Highlight = bleve.NewHighlightWithStyle(html.Name)
		for _, f := range q.Highlight.Fields {
			req.Highlight.AddField(indexField(f))
		}
	}
	for _, f := range q.Facets {
		req.AddFacet(f.Name, bleve.NewFacetRequest(indexField(f.Field), f.Size))
	}

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search: %w: %w", engine.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &engine.Result{
		Total:  int(res.Total),
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]engine.Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit, err := toHit(h)
		if err != nil {
			return nil, err
		}
		if rescore {
			hit.Score = q.Scoring.Combine(hit.Score, query.ProductDoc{P: &hit.Source})
		}
		out.Hits = append(out.Hits, hit)
	}
	if rescore {
		out.Hits = sortAndPage(out.Hits, q)
	}
	if len(q.Facets) > 0 {
		out.Facets = make(map[string][]domain.FacetBucket, len(q.Facets))
		for name, fr := range res.Facets {
			out.Facets[name] = facetBuckets(fr)
		}
	}
	return out, nil
}

// Complete returns no suggestions: the index keeps no completion
// structure, so callers fall through to prefix matching.
func (e *Engine) Complete(_ context.Context, _ string, _ int) ([]domain.Suggestion, error) {
	return nil, nil
}

// Count returns the number of indexed documents.
func (e *Engine) Count(_ context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, fmt.Errorf("count: %w", engine.ErrUnavailable)
	}
	n, err := e.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}

// Ping reports whether the index is open.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.Count(ctx)
	return err
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}

func toHit(h *search.DocumentMatch) (engine.Hit, error) {
	hit := engine.Hit{ID: h.ID, Score: h.Score}
	if raw, ok := h.Fields[fieldSource].(string); ok {
		if err := json.Unmarshal([]byte(raw), &hit.Source); err != nil {
			return engine.Hit{}, fmt.Errorf("decode source %s: %w", h.ID, err)
		}
	}
	if hit.Source.ID == "" {
		hit.Source.ID = h.ID
	}
	if len(h.Fragments) > 0 {
		hit.Highlight = make(map[string][]string, len(h.Fragments))
		for field, frags := range h.Fragments {
			hit.Highlight[field] = frags
		}
	}
	return hit, nil
}

func sortAndPage(hits []engine.Hit, q query.Query) []engine.Hit {
	order := q.Sort
	if len(order) == 0 {
		order = []query.SortField{{Field: query.FieldScore, Desc: true}}
	}
	slices.SortStableFunc(hits, func(a, b engine.Hit) int {
		if c := query.Compare(query.ProductDoc{P: &a.Source}, query.ProductDoc{P: &b.Source}, a.Score, b.Score, order); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	start := min(q.From, len(hits))
	end := min(start+q.Size, len(hits))
	return hits[start:end]
}

func facetBuckets(fr *search.FacetResult) []domain.FacetBucket {
	if fr == nil || fr.Terms == nil {
		return []domain.FacetBucket{}
	}
	terms := fr.Terms.Terms()
	out := make([]domain.FacetBucket, 0, len(terms))
	for _, t := range terms {
		out = append(out, domain.FacetBucket{Key: t.Term, Count: t.Count})
	}
	return out
}
