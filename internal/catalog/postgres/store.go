// Package postgres implements catalog.Store on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/database"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(fmt.Sprintf("catalog migrations: %v", err))
	}
	return sub
}

// productColumns selects a product with its category joined. Category
// columns are NULL when the product has no category or it was deleted.
const productColumns = `p.id, p.name, p.description, p.price, p.original_price, p.images,
	COALESCE(p.category_id, ''), p.stock, p.is_active, p.is_featured, p.tags,
	p.rating, p.review_count, p.view_count, p.created_at, p.updated_at,
	c.id, c.name, c.description, c.image, c.is_active, c.created_at, c.updated_at`

const productFrom = `FROM products p LEFT JOIN categories c ON c.id = p.category_id`

const categoryColumns = `id, name, description, image, is_active, created_at, updated_at`

// Store implements catalog.Store using PostgreSQL.
type Store struct {
	pool database.DBTX
}

var _ catalog.Store = (*Store)(nil)

// NewStore creates a new PostgreSQL-backed catalog store.
func NewStore(pool database.DBTX) *Store {
	return &Store{pool: pool}
}

// FindProductsByIDs loads products by id in one round trip.
func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) (products []domain.Product, err error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = ANY($1)`, productColumns, productFrom)
	ctx, end := database.TraceQuery(ctx, "FindProductsByIDs", query)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("find products by ids: %w", err)
	}
	return collectProducts(rows)
}

// FindProductByID loads one product with its category.
func (s *Store) FindProductByID(ctx context.Context, id string) (p *domain.Product, err error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = $1`, productColumns, productFrom)
	ctx, end := database.TraceQuery(ctx, "FindProductByID", query)
	defer func() { end(err) }()

	var out domain.Product
	if err := scanProduct(s.pool.QueryRow(ctx, query, id), &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &out, nil
}

// FindProductsByCategory pages the active products of a category.
func (s *Store) FindProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (products []domain.Product, total int, err error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		%s
		WHERE p.category_id = $1 AND p.is_active = true
		ORDER BY p.created_at DESC, p.id
		LIMIT $2 OFFSET $3`, productColumns, productFrom)
	ctx, end := database.TraceQuery(ctx, "FindProductsByCategory", query)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, query, categoryID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("find products by category: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p, &total); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

// FindCategoryByID loads a single category.
func (s *Store) FindCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE id = $1`, categoryColumns)

	var c domain.Category
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// ListCategories returns all active categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE is_active = true ORDER BY name`, categoryColumns)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// ListActiveProducts returns the next keyset page of active products.
func (s *Store) ListActiveProducts(ctx context.Context, afterID string, limit int) (products []domain.Product, err error) {
	query := fmt.Sprintf(`
		SELECT %s %s
		WHERE p.is_active = true AND p.id > $1
		ORDER BY p.id
		LIMIT $2`, productColumns, productFrom)
	ctx, end := database.TraceQuery(ctx, "ListActiveProducts", query)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return collectProducts(rows)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping catalog store: %w", err)
	}
	return nil
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// scanProduct scans productColumns followed by any extra destinations.
func scanProduct(row pgx.Row, p *domain.Product, extra ...any) error {
	var (
		catID, catName, catDesc, catImage *string
		catActive                         *bool
		catCreated, catUpdated            *time.Time
	)
	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.Images,
		&p.CategoryID, &p.Stock, &p.IsActive, &p.IsFeatured, &p.Tags,
		&p.Rating, &p.ReviewCount, &p.ViewCount, &p.CreatedAt, &p.UpdatedAt,
		&catID, &catName, &catDesc, &catImage, &catActive, &catCreated, &catUpdated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if catID != nil {
		p.Category = &domain.Category{
			ID:          *catID,
			Name:        deref(catName),
			Description: deref(catDesc),
			Image:       deref(catImage),
			IsActive:    catActive != nil && *catActive,
		}
		if catCreated != nil {
			p.Category.CreatedAt = *catCreated
		}
		if catUpdated != nil {
			p.Category.UpdatedAt = *catUpdated
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
