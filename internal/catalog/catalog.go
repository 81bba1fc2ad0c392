// Package catalog defines read access to the primary product store, the
// source of truth the search index is built from.
package catalog

import (
	"context"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

// Store reads products and categories from the primary store.
type Store interface {
	// FindProductsByIDs loads products by id with their categories joined.
	// Missing ids are omitted; order is unspecified.
	FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)

	// FindProductByID loads a single product. It returns apperrors.ErrNotFound
	// when no product has that id.
	FindProductByID(ctx context.Context, id string) (*domain.Product, error)

	// FindProductsByCategory pages active products of a category, newest first.
	FindProductsByCategory(ctx context.Context, categoryID string, offset, limit int) ([]domain.Product, int, error)

	// FindCategoryByID loads a single category or returns apperrors.ErrNotFound.
	FindCategoryByID(ctx context.Context, id string) (*domain.Category, error)

	// ListCategories returns every active category ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// ListActiveProducts returns up to limit active products with id greater
	// than afterID, ordered by id.
	ListActiveProducts(ctx context.Context, afterID string, limit int) ([]domain.Product, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
