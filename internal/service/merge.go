package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/pagination"
)

// MergeAcrossCategories runs one search per category in parallel and merges
// them into a single page. Any failing sub-search fails the merge.
//
// Each sub-search is paged mergeWindow hits at a time until its own total is
// collected, so totals and page flags come from the full merged,
// deduplicated length.
func (s *SearchService) MergeAcrossCategories(ctx context.Context, categoryIDs []string, req domain.SearchRequest, mode Mode) (*domain.SearchResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search.merge")
	defer span.End()
	span.SetAttributes(attribute.Int("search.categories", len(categoryIDs)))

	req = req.Normalize()
	results := make([]*engine.Result, len(categoryIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, categoryID := range categoryIDs {
		g.Go(func() error {
			res, err := s.searchCategory(gctx, mode.compile(req.ForCategory(categoryID)))
			if err != nil {
				return fmt.Errorf("category %s: %w", categoryID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.unavailable(ctx, mode, err)
	}

	merged := dedupHits(results)
	sortMerged(merged, mode.compile(req).Sort)

	params := req.Pagination()
	start, end := pagination.Window(len(merged), params)
	items, err := s.Reconcile(ctx, merged[start:end])
	if err != nil {
		return nil, err
	}

	var took int64
	for _, r := range results {
		took = max(took, r.TookMs)
	}

	return &domain.SearchResult{
		Products:   items,
		Pagination: pagination.NewMeta(len(merged), params),
		Facets:     mergeFacets(results),
		TookMs:     took,
	}, nil
}

// maxMergeDepth is the deepest offset a sub-search pages to. It matches the
// default index.max_result_window of Elasticsearch.
const maxMergeDepth = 10000

// searchCategory pages q until every match is collected. Facets come from the
// first page since aggregations cover the whole match set.
func (s *SearchService) searchCategory(ctx context.Context, q query.Query) (*engine.Result, error) {
	q.From, q.Size = 0, s.mergeWindow
	out, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	for page := out; len(page.Hits) == q.Size && len(out.Hits) < out.Total; {
		q.From += q.Size
		if q.From >= maxMergeDepth {
			s.logger.WarnContext(ctx, "merge sub-search truncated",
				slog.Int("total", out.Total),
				slog.Int("collected", len(out.Hits)),
			)
			break
		}
		q.Size = min(s.mergeWindow, maxMergeDepth-q.From)
		if page, err = s.engine.Search(ctx, q); err != nil {
			return nil, err
		}
		out.Hits = append(out.Hits, page.Hits...)
		out.TookMs += page.TookMs
	}
	return out, nil
}

// dedupHits concatenates results in category order keeping the first
// occurrence of each document.
func dedupHits(results []*engine.Result) []engine.Hit {
	seen := make(map[string]struct{})
	var merged []engine.Hit
	for _, r := range results {
		for _, h := range r.Hits {
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			merged = append(merged, h)
		}
	}
	return merged
}

// sortMerged re-sorts merged hits by the requested order. Numeric fields a
// document lacks compare as zero. Ties keep concatenation order.
func sortMerged(hits []engine.Hit, order []query.SortField) {
	slices.SortStableFunc(hits, func(a, b engine.Hit) int {
		return query.Compare(query.ProductDoc{P: &a.Source}, query.ProductDoc{P: &b.Source}, a.Score, b.Score, order)
	})
}

// mergeFacets sums bucket counts across sub-results, largest first.
func mergeFacets(results []*engine.Result) map[string][]domain.FacetBucket {
	counts := make(map[string]map[string]int)
	for _, r := range results {
		for name, buckets := range r.Facets {
			if counts[name] == nil {
				counts[name] = make(map[string]int)
			}
			for _, b := range buckets {
				counts[name][b.Key] += b.Count
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	out := make(map[string][]domain.FacetBucket, len(counts))
	for name, byKey := range counts {
		buckets := make([]domain.FacetBucket, 0, len(byKey))
		for k, c := range byKey {
			buckets = append(buckets, domain.FacetBucket{Key: k, Count: c})
		}
		slices.SortFunc(buckets, func(a, b domain.FacetBucket) int {
			if a.Count != b.Count {
				return b.Count - a.Count
			}
			return strings.Compare(a.Key, b.Key)
		})
		if len(buckets) > query.CategoryFacetSize {
			buckets = buckets[:query.CategoryFacetSize]
		}
		out[name] = buckets
	}
	return out
}
