package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
)

// queryParams reads typed values out of a query string, remembering the
// first malformed one.
type queryParams struct {
	values url.Values
	err    error
}

func (p *queryParams) fail(name, want string) {
	if p.err == nil {
		p.err = apperrors.InvalidInput(fmt.Sprintf("%s must be %s", name, want))
	}
}

func (p *queryParams) str(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

// float returns nil for a missing or empty parameter.
func (p *queryParams) float(name string) *float64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, "a number")
		return nil
	}
	return &v
}

func (p *queryParams) int(name string, def int) int {
	raw := p.str(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "an integer")
		return def
	}
	return v
}

func (p *queryParams) triState(name string) domain.TriState {
	t, err := domain.ParseTriState(p.values.Get(name))
	if err != nil {
		p.fail(name, "true or false")
	}
	return t
}

func (p *queryParams) bool(name string, def bool) bool {
	raw := p.str(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, "true or false")
		return def
	}
	return v
}

// parseSearchQuery maps the basic search query string onto a request.
// Unknown sort fields are passed through and resolve to createdAt.
func parseSearchQuery(values url.Values) (domain.SearchRequest, error) {
	p := &queryParams{values: values}

	req := domain.SearchRequest{
		Query:       p.str("q"),
		Price:       domain.Range{Min: p.float("minPrice"), Max: p.float("maxPrice")},
		Rating:      domain.Range{Min: p.float("minRating"), Max: p.float("maxRating")},
		Discount:    domain.Range{Min: p.float("minDiscount"), Max: p.float("maxDiscount")},
		HasDiscount: p.triState("hasDiscount"),
		InStock:     p.triState("inStock"),
		SortBy:      p.str("sortBy"),
		SortOrder:   domain.SortOrder(strings.ToLower(p.str("sortOrder"))),
		Page:        p.int("page", 1),
		Limit:       p.int("limit", 0),
		Fuzzy:       p.bool("fuzzy", true),
	}
	if c := p.str("category"); c != "" {
		req.Categories = []string{c}
	}
	if p.err != nil {
		return domain.SearchRequest{}, p.err
	}
	if err := checkRanges(req); err != nil {
		return domain.SearchRequest{}, err
	}
	return req, nil
}

func checkRanges(req domain.SearchRequest) error {
	for name, r := range map[string]domain.Range{"price": req.Price, "rating": req.Rating, "discount": req.Discount} {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return apperrors.InvalidInput(fmt.Sprintf("%s range minimum exceeds maximum", name))
		}
	}
	return nil
}

// rangeBody is a JSON range with optional bounds.
type rangeBody struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (r rangeBody) domain() domain.Range {
	return domain.Range{Min: r.Min, Max: r.Max}
}

// advancedSearchRequest is the body of POST /search/advanced.
type advancedSearchRequest struct {
	Query         string    `json:"query" validate:"max=200"`
	Categories    []string  `json:"categories" validate:"max=20,dive,required,max=64"`
	PriceRange    rangeBody `json:"priceRange"`
	RatingRange   rangeBody `json:"ratingRange"`
	DiscountRange rangeBody `json:"discountRange"`
	HasDiscount   *bool     `json:"hasDiscount"`
	InStock       *bool     `json:"inStock"`
	SortBy        string    `json:"sortBy" validate:"max=32"`
	SortOrder     string    `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page          int       `json:"page" validate:"gte=0"`
	Limit         int       `json:"limit" validate:"gte=0,lte=100"`
	Fuzzy         *bool     `json:"fuzzy"`
}

func (b advancedSearchRequest) toDomain() (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		Query:       b.Query,
		Categories:  b.Categories,
		Price:       b.PriceRange.domain(),
		Rating:      b.RatingRange.domain(),
		Discount:    b.DiscountRange.domain(),
		HasDiscount: domain.TriStateOf(b.HasDiscount),
		InStock:     domain.TriStateOf(b.InStock),
		SortBy:      b.SortBy,
		SortOrder:   domain.SortOrder(b.SortOrder),
		Page:        b.Page,
		Limit:       b.Limit,
		Fuzzy:       b.Fuzzy == nil || *b.Fuzzy,
	}
	if err := checkRanges(req); err != nil {
		return domain.SearchRequest{}, err
	}
	return req, nil
}
