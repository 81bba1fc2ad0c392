// Package memory provides an in-process catalog.Store for tests and for
// running the server without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
)

// Store keeps products and categories in maps. Category joins are resolved
// at read time, so deleting a category leaves its products uncategorized.
type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category

	// Calls counts FindProductsByIDs invocations.
	Calls int
}

var _ catalog.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
	}
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
}

// PutProduct inserts or replaces a product. Its Category field is ignored.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Category = nil
	s.products[p.ID] = p
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// FindProductsByIDs implements catalog.Store.
func (s *Store) FindProductsByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++

	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, s.joined(p))
		}
	}
	return out, nil
}

// FindProductByID implements catalog.Store.
func (s *Store) FindProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	p = s.joined(p)
	return &p, nil
}

// FindProductsByCategory implements catalog.Store.
func (s *Store) FindProductsByCategory(_ context.Context, categoryID string, offset, limit int) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Product
	for _, p := range s.products {
		if p.CategoryID == categoryID && p.IsActive {
			matched = append(matched, s.joined(p))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	return append([]domain.Product{}, matched[start:end]...), total, nil
}

// FindCategoryByID implements catalog.Store.
func (s *Store) FindCategoryByID(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

// ListCategories implements catalog.Store.
func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Category{}
	for _, c := range s.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActiveProducts implements catalog.Store.
func (s *Store) ListActiveProducts(_ context.Context, afterID string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, p := range s.products {
		if p.IsActive && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.joined(s.products[id]))
	}
	return out, nil
}

// Ping implements catalog.Store.
func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) joined(p domain.Product) domain.Product {
	if c, ok := s.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return p
}

// UpsertCategories stores every category.
func (s *Store) UpsertCategories(_ context.Context, categories []domain.Category) error {
	for _, c := range categories {
		s.PutCategory(c)
	}
	return nil
}

// UpsertProducts stores every product.
func (s *Store) UpsertProducts(_ context.Context, products []domain.Product) error {
	for _, p := range products {
		s.PutProduct(p)
	}
	return nil
}
