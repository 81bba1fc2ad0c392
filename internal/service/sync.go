package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
)

// SyncBatchSize is the page size used when reindexing the whole catalog.
const SyncBatchSize = 500

// SyncAction reports what SyncOne did to the index.
type SyncAction string

const (
	SyncIndexed SyncAction = "indexed"
	SyncRemoved SyncAction = "removed"
)

// SyncOne projects the authoritative product into the index. Inactive
// products are removed; a missing product is removed best-effort and
// reported as not found. Upserts are idempotent by id.
func (s *SearchService) SyncOne(ctx context.Context, productID string) (SyncAction, error) {
	p, err := s.store.FindProductByID(ctx, productID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return "", fmt.Errorf("sync product %s: %w", productID, err)
		}
		if delErr := s.engine.Delete(ctx, productID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove missing product from index",
				slog.String("product_id", productID),
				slog.String("error", delErr.Error()),
			)
		}
		return "", apperrors.NotFound("product", productID)
	}

	if !p.IsActive {
		if err := s.engine.Delete(ctx, productID); err != nil {
			return "", fmt.Errorf("remove inactive product %s: %w", productID, err)
		}
		syncedDocuments.WithLabelValues("delete").Inc()
		s.logger.InfoContext(ctx, "inactive product removed from index", slog.String("product_id", productID))
		return SyncRemoved, nil
	}

	doc := domain.NewIndexedProduct(p)
	if err := s.engine.Index(ctx, &doc); err != nil {
		return "", fmt.Errorf("index product %s: %w", productID, err)
	}
	syncedDocuments.WithLabelValues("index").Inc()

	s.logger.InfoContext(ctx, "product indexed",
		slog.String("product_id", productID),
		slog.String("name", p.Name),
	)
	return SyncIndexed, nil
}

// SyncAll reindexes every active product in keyset batches. It stops at the
// first failing batch and reports how far it got.
func (s *SearchService) SyncAll(ctx context.Context) (*domain.SyncReport, error) {
	report := &domain.SyncReport{}
	afterID := ""

	for {
		batch, err := s.store.ListActiveProducts(ctx, afterID, SyncBatchSize)
		if err != nil {
			return report, fmt.Errorf("list products after %q: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}
		report.Total += len(batch)

		docs := make([]domain.IndexedProduct, 0, len(batch))
		for i := range batch {
			docs = append(docs, domain.NewIndexedProduct(&batch[i]))
		}
		if err := s.engine.BulkIndex(ctx, docs); err != nil {
			return report, fmt.Errorf("bulk index batch after %q: %w", afterID, err)
		}
		report.Synced += len(docs)
		syncedDocuments.WithLabelValues("index").Add(float64(len(docs)))

		afterID = batch[len(batch)-1].ID
		if len(batch) < SyncBatchSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "full reindex completed",
		slog.Int("synced", report.Synced),
		slog.Int("total", report.Total),
	)
	return report, nil
}

// Remove deletes a product from the index. A missing document is not an error.
func (s *SearchService) Remove(ctx context.Context, productID string) error {
	if err := s.engine.Delete(ctx, productID); err != nil {
		return fmt.Errorf("remove product %s: %w", productID, err)
	}
	syncedDocuments.WithLabelValues("delete").Inc()

	s.logger.InfoContext(ctx, "product removed from index", slog.String("product_id", productID))
	return nil
}
