package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

type entry struct {
	doc document
	src domain.IndexedProduct
}

// Engine is an in-memory implementation of the SearchEngine interface. It
// evaluates compiled queries directly against JSON-shaped documents.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu         sync.RWMutex
	entries    map[string]entry
	completion bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutCompletion models an index whose completion structure has not
// been built: Complete always returns nothing.
func WithoutCompletion() Option {
	return func(e *Engine) { e.completion = false }
}

// New creates a new in-memory search engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		entries:    make(map[string]entry),
		completion: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index adds or replaces a single product document.
func (e *Engine) Index(_ context.Context, product *domain.IndexedProduct) error {
	ent, err := newEntry(product)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries[product.ID] = ent
	return nil
}

// PutDocument stores raw fields under id, bypassing the product projection.
// It lets callers seed documents written by older indexers, for example
// ones that carry no discount field.
func (e *Engine) PutDocument(id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("memory engine: marshal document %s: %w", id, err)
	}
	var src domain.IndexedProduct
	if err := json.Unmarshal(raw, &src); err != nil {
		return fmt.Errorf("memory engine: decode document %s: %w", id, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("memory engine: decode document %s: %w", id, err)
	}
	src.ID = id

	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries[id] = entry{doc: doc, src: src}
	return nil
}

// Delete removes a product document by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.entries, id)
	return nil
}

// BulkIndex adds or replaces multiple product documents.
func (e *Engine) BulkIndex(_ context.Context, products []domain.IndexedProduct) error {
	built := make([]entry, 0, len(products))
	for i := range products {
		ent, err := newEntry(&products[i])
		if err != nil {
			return err
		}
		built = append(built, ent)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range built {
		e.entries[ent.src.ID] = ent
	}
	return nil
}

// Search evaluates a compiled query against the stored documents.
func (e *Engine) Search(_ context.Context, q query.Query) (*engine.Result, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	hits := make([]scoredHit, 0)
	for id, ent := range e.entries {
		score, ok := evaluate(ent.doc, q)
		if !ok {
			continue
		}
		hits = append(hits, scoredHit{id: id, score: score, ent: ent})
	}

	sortHits(hits, q.Sort)
	facets := computeFacets(hits, q.Facets)

	total := len(hits)
	from := q.From
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	end := total
	if q.Size > 0 && from+q.Size < total {
		end = from + q.Size
	}

	terms := highlightTerms(q)
	out := make([]engine.Hit, 0, end-from)
	for _, h := range hits[from:end] {
		hit := engine.Hit{ID: h.id, Score: h.score, Source: h.ent.src}
		if q.Highlight != nil {
			hit.Highlight = highlight(h.ent.doc, q.Highlight, terms)
		}
		out = append(out, hit)
	}

	return &engine.Result{
		Hits:   out,
		Total:  total,
		TookMs: time.Since(start).Milliseconds(),
		Facets: facets,
	}, nil
}

// Complete returns names starting with prefix, deduplicated.
func (e *Engine) Complete(_ context.Context, prefix string, size int) ([]domain.Suggestion, error) {
	if !e.completion {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	lower := strings.ToLower(prefix)
	seen := make(map[string]struct{})
	out := make([]domain.Suggestion, 0)
	for _, ent := range e.entries {
		name := ent.src.Name
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, domain.Suggestion{Text: name, Score: 1})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	if size > 0 && len(out) > size {
		out = out[:size]
	}
	return out, nil
}

// Count returns the number of stored documents.
func (e *Engine) Count(_ context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries), nil
}

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

func newEntry(product *domain.IndexedProduct) (entry, error) {
	raw, err := json.Marshal(product)
	if err != nil {
		return entry{}, fmt.Errorf("memory engine: marshal product %s: %w", product.ID, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entry{}, fmt.Errorf("memory engine: decode product %s: %w", product.ID, err)
	}
	return entry{doc: doc, src: *product}, nil
}

type scoredHit struct {
	id    string
	score float64
	ent   entry
}

// evaluate reports whether doc satisfies q and its final score.
func evaluate(doc document, q query.Query) (float64, bool) {
	for _, c := range q.Filter {
		if !matches(doc, c) {
			return 0, false
		}
	}

	base := 0.0
	for _, c := range q.Must {
		s, ok := score(doc, c)
		if !ok {
			return 0, false
		}
		base += s
	}

	if len(q.Should) > 0 {
		matched := 0
		for _, c := range q.Should {
			if s, ok := score(doc, c); ok {
				matched++
				base += s
			}
		}
		if matched < q.MinimumShouldMatch {
			return 0, false
		}
	}

	return q.Scoring.Combine(base, doc), true
}

func computeFacets(hits []scoredHit, facets []query.Facet) map[string][]domain.FacetBucket {
	if len(facets) == 0 {
		return nil
	}
	out := make(map[string][]domain.FacetBucket, len(facets))
	for _, f := range facets {
		counts := make(map[string]int)
		for _, h := range hits {
			for _, v := range h.ent.doc.values(f.Field) {
				counts[v]++
			}
		}
		buckets := make([]domain.FacetBucket, 0, len(counts))
		for k, n := range counts {
			buckets = append(buckets, domain.FacetBucket{Key: k, Count: n})
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Key < buckets[j].Key
		})
		if f.Size > 0 && len(buckets) > f.Size {
			buckets = buckets[:f.Size]
		}
		out[f.Name] = buckets
	}
	return out
}
