package service

import (
	"context"
	"fmt"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
)

// Reconcile joins hits with their authoritative records in a single batched
// lookup. Only the category object is refreshed; prices, discount, rating
// and score stay as indexed. A hit whose product is gone keeps its indexed
// fields with a nil category.
func (s *SearchService) Reconcile(ctx context.Context, hits []engine.Hit) ([]domain.ResultItem, error) {
	items := make([]domain.ResultItem, 0, len(hits))
	if len(hits) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}

	products, err := s.store.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reconcile hits: %w", err)
	}
	categories := make(map[string]*domain.Category, len(products))
	for i := range products {
		categories[products[i].ID] = products[i].Category
	}

	for _, h := range hits {
		src := h.Source
		if src.ID == "" {
			src.ID = h.ID
		}
		category, found := categories[h.ID]
		if !found {
			staleHits.Inc()
		}
		items = append(items, domain.ResultItem{
			IndexedProduct: src,
			CategoryID:     src.Category,
			Category:       category,
			Score:          h.Score,
			Highlight:      h.Highlight,
		})
	}
	return items, nil
}
