package domain

import (
	"fmt"
	"strings"

	"github.com/ThinhVo0/BT4-CNPMM/pkg/pagination"
)

// TriState is a filter with three meanings: require true, require false,
// or no constraint at all.
type TriState int

const (
	Unconstrained TriState = iota
	RequireTrue
	RequireFalse
)

// ParseTriState parses "", "true" and "false". Anything else is rejected.
func ParseTriState(s string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unconstrained, nil
	case "true", "1":
		return RequireTrue, nil
	case "false", "0":
		return RequireFalse, nil
	default:
		return Unconstrained, fmt.Errorf("invalid tri-state value %q", s)
	}
}

// TriStateOf converts an optional boolean into a TriState.
func TriStateOf(b *bool) TriState {
	switch {
	case b == nil:
		return Unconstrained
	case *b:
		return RequireTrue
	default:
		return RequireFalse
	}
}

func (t TriState) String() string {
	switch t {
	case RequireTrue:
		return "true"
	case RequireFalse:
		return "false"
	default:
		return "unconstrained"
	}
}

// Range is an optional numeric interval. A nil bound is unbounded.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool {
	return r.Min == nil && r.Max == nil
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort fields accepted by the search endpoints.
const (
	SortCreatedAt   = "createdAt"
	SortPrice       = "price"
	SortName        = "name"
	SortRating      = "rating"
	SortReviewCount = "reviewCount"
	SortViewCount   = "viewCount"
	SortDiscount    = "discount"
	// SortRelevance orders by score; only the advanced mode honours it.
	SortRelevance = "relevance"
)

// ValidSortFields returns the whitelisted sort field names.
func ValidSortFields() []string {
	return []string{SortCreatedAt, SortPrice, SortName, SortRating, SortReviewCount, SortViewCount, SortDiscount}
}

// IsValidSortField checks whether name is a whitelisted sort field.
func IsValidSortField(name string) bool {
	for _, f := range ValidSortFields() {
		if f == name {
			return true
		}
	}
	return false
}

const (
	// DefaultSuggestLimit is used when a suggestion request has no limit.
	DefaultSuggestLimit = 10
	// MinSuggestPrefix is the shortest prefix that reaches the backend.
	MinSuggestPrefix = 2
)

// SearchRequest holds every parameter of a product search, already parsed
// into typed values at the transport boundary.
type SearchRequest struct {
	Query       string    `json:"query"`
	Categories  []string  `json:"categories,omitempty"`
	Price       Range     `json:"priceRange"`
	Rating      Range     `json:"ratingRange"`
	Discount    Range     `json:"discountRange"`
	HasDiscount TriState  `json:"hasDiscount"`
	InStock     TriState  `json:"inStock"`
	SortBy      string    `json:"sortBy"`
	SortOrder   SortOrder `json:"sortOrder"`
	Page        int       `json:"page"`
	Limit       int       `json:"limit"`
	Fuzzy       bool      `json:"fuzzy"`
}

// Normalize returns a copy with page, limit and sort order coerced into
// valid values and the query text trimmed.
func (r SearchRequest) Normalize() SearchRequest {
	p := pagination.New(r.Page, r.Limit)
	r.Page = p.Page
	r.Limit = p.Limit
	r.Query = strings.TrimSpace(r.Query)
	r.SortBy = strings.TrimSpace(r.SortBy)
	if r.SortOrder != SortAsc {
		r.SortOrder = SortDesc
	}

	cats := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	r.Categories = cats
	return r
}

// Pagination returns the pagination parameters of the request.
func (r SearchRequest) Pagination() pagination.Params {
	return pagination.New(r.Page, r.Limit)
}

// Offset is (page-1)*limit, never negative.
func (r SearchRequest) Offset() int {
	return r.Pagination().Offset
}

// ForCategory returns a copy scoped to a single category.
func (r SearchRequest) ForCategory(categoryID string) SearchRequest {
	r.Categories = []string{categoryID}
	return r
}
