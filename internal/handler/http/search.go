package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/httputil"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/validator"
)

// SearchHandler serves the public search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: svc, logger: logger}
}

// Search handles GET /api/v1/search/products.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// Advanced handles POST /api/v1/search/advanced.
func (h *SearchHandler) Advanced(w http.ResponseWriter, r *http.Request) {
	var body advancedSearchRequest
	if err := validator.DecodeAndValidate(r, &body); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	req, err := body.toDomain()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.SearchAdvanced(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// Suggest handles GET /api/v1/search/suggestions. It always answers 200;
// short prefixes and backend failures yield an empty list.
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := domain.DefaultSuggestLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}

	suggestions := h.service.Suggest(r.Context(), q.Get("q"), limit, strings.TrimSpace(q.Get("category")))
	httputil.WriteData(w, http.StatusOK, suggestions)
}
