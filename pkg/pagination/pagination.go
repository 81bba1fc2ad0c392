package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the page size used when the caller omits or mangles it.
	DefaultLimit = 12
	// MaxLimit caps the page size a client can request.
	MaxLimit = 100
)

// Params holds 1-based pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// DefaultParams returns the storefront pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:   1,
		Limit:  DefaultLimit,
		Offset: 0,
	}
}

// New coerces page and limit into a valid Params value. Non-positive pages
// become 1, non-positive limits become DefaultLimit and limits above
// MaxLimit are capped.
func New(page, limit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// FromRequest extracts pagination parameters from the page and limit query
// parameters of an HTTP request. Unparseable values fall back to defaults.
func FromRequest(r *http.Request) Params {
	page, limit := 1, DefaultLimit

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}

	return New(page, limit)
}

// Meta is the pagination block returned alongside a page of results. Every
// field is derived from Total and Limit.
type Meta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	Limit       int  `json:"limit"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// NewMeta computes pagination metadata for the given total.
func NewMeta(total int, params Params) Meta {
	params = New(params.Page, params.Limit)
	if total < 0 {
		total = 0
	}

	totalPages := total / params.Limit
	if total%params.Limit > 0 {
		totalPages++
	}

	return Meta{
		CurrentPage: params.Page,
		TotalPages:  totalPages,
		Total:       total,
		Limit:       params.Limit,
		HasNext:     params.Page < totalPages,
		HasPrev:     params.Page > 1,
	}
}

// Window returns the [start, end) bounds of the requested page within a
// sequence of length n. Pages past the end yield an empty window.
func Window(n int, params Params) (start, end int) {
	params = New(params.Page, params.Limit)
	start = params.Offset
	if start > n {
		start = n
	}
	end = start + params.Limit
	if end > n {
		end = n
	}
	return start, end
}
