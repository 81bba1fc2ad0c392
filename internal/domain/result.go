package domain

import "github.com/ThinhVo0/BT4-CNPMM/pkg/pagination"

// Pagination is the derived pagination block of a search response.
type Pagination = pagination.Meta

// ResultItem is one entry of a search response: the indexed fields, the
// engine score and, once reconciled, the full category object. Category is
// nil when the authoritative record no longer exists.
type ResultItem struct {
	IndexedProduct
	CategoryID string              `json:"categoryId"`
	Category   *Category           `json:"category"`
	Score      float64             `json:"_score"`
	Highlight  map[string][]string `json:"highlight,omitempty"`
}

// FacetBucket is one value of a terms facet with its document count.
type FacetBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SearchResult is the response of both search modes.
type SearchResult struct {
	Products   []ResultItem             `json:"products"`
	Pagination Pagination               `json:"pagination"`
	Facets     map[string][]FacetBucket `json:"facets,omitempty"`
	TookMs     int64                    `json:"tookMs"`
}

// Suggestion is an autocomplete candidate. Suggestions have no identity and
// are recomputed on every request.
type Suggestion struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IndexStats describes the current state of the search index.
type IndexStats struct {
	Engine    string `json:"engine"`
	Documents int    `json:"documents"`
}

// SyncReport is the outcome of a full reindex.
type SyncReport struct {
	Synced int `json:"synced"`
	Total  int `json:"total"`
}
