package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/database"
)

const upsertCategory = `
	INSERT INTO categories (id, name, description, image, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description, image = EXCLUDED.image,
		is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`

const upsertProduct = `
	INSERT INTO products (id, name, description, price, original_price, images, category_id,
		stock, is_active, is_featured, tags, rating, review_count, view_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		original_price = EXCLUDED.original_price, images = EXCLUDED.images,
		category_id = EXCLUDED.category_id, stock = EXCLUDED.stock, is_active = EXCLUDED.is_active,
		is_featured = EXCLUDED.is_featured, tags = EXCLUDED.tags, rating = EXCLUDED.rating,
		review_count = EXCLUDED.review_count, view_count = EXCLUDED.view_count,
		updated_at = EXCLUDED.updated_at`

// UpsertCategories writes categories in one transaction.
func (s *Store) UpsertCategories(ctx context.Context, categories []domain.Category) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertCategories", upsertCategory)
	defer func() { end(err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, c := range categories {
			if _, err := tx.Exec(ctx, upsertCategory,
				c.ID, c.Name, c.Description, c.Image, c.IsActive, c.CreatedAt, c.UpdatedAt,
			); err != nil {
				return fmt.Errorf("upsert category %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// UpsertProducts writes products in one transaction. Their categories must
// already exist.
func (s *Store) UpsertProducts(ctx context.Context, products []domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertProducts", upsertProduct)
	defer func() { end(err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range products {
			images, tags := p.Images, p.Tags
			if images == nil {
				images = []string{}
			}
			if tags == nil {
				tags = []string{}
			}
			if _, err := tx.Exec(ctx, upsertProduct,
				p.ID, p.Name, p.Description, p.Price, p.OriginalPrice, images, p.CategoryID,
				p.Stock, p.IsActive, p.IsFeatured, tags, p.Rating, p.ReviewCount, p.ViewCount,
				p.CreatedAt, p.UpdatedAt,
			); err != nil {
				return fmt.Errorf("upsert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
