package engine

import (
	"context"
	"errors"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// ErrUnavailable is wrapped by engines when the backend cannot be reached
// or rejects the request at the transport level.
var ErrUnavailable = errors.New("search backend unavailable")

// Hit is one matching document with its score and highlight fragments.
type Hit struct {
	ID        string
	Score     float64
	Source    domain.IndexedProduct
	Highlight map[string][]string
}

// Result is the outcome of executing a compiled query.
type Result struct {
	Hits   []Hit
	Total  int
	TookMs int64
	Facets map[string][]domain.FacetBucket
}

// SearchEngine defines the interface for indexing and searching products.
// Implementations may use Elasticsearch, bleve, in-memory storage, or other
// backends.
type SearchEngine interface {
	// Index adds or replaces a single product document.
	Index(ctx context.Context, product *domain.IndexedProduct) error

	// Delete removes a product document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// BulkIndex adds or replaces multiple product documents.
	BulkIndex(ctx context.Context, products []domain.IndexedProduct) error

	// Search executes a compiled query.
	Search(ctx context.Context, q query.Query) (*Result, error)

	// Complete looks prefix up in the completion structure of the index.
	Complete(ctx context.Context, prefix string, size int) ([]domain.Suggestion, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
