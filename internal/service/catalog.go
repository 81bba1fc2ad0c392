package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/pagination"
)

// CatalogService serves category and product reads straight from the
// primary store.
type CatalogService struct {
	store  catalog.Store
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store catalog.Store, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// CategoryPage is one page of a category listing.
type CategoryPage struct {
	Category   domain.Category   `json:"category"`
	Products   []domain.Product  `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
}

// ListCategories returns all active categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CategoryProducts pages the active products of a category.
func (s *CatalogService) CategoryProducts(ctx context.Context, categoryID string, params pagination.Params) (*CategoryPage, error) {
	category, err := s.store.FindCategoryByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("category", categoryID)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	products, total, err := s.store.FindProductsByCategory(ctx, categoryID, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list category products: %w", err)
	}

	return &CategoryPage{
		Category:   *category,
		Products:   products,
		Pagination: pagination.NewMeta(total, params),
	}, nil
}

// GetProduct loads a single product with its category.
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.store.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
