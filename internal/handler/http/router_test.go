package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
	"github.com/ThinhVo0/BT4-CNPMM/internal/scheduler"
	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/health"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/middleware"
)

const testSecret = "test-secret"

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// flakyEngine fails searches on demand.
type flakyEngine struct {
	*memory.Engine
	fail bool
}

func (e *flakyEngine) Search(ctx context.Context, q query.Query) (*engine.Result, error) {
	if e.fail {
		return nil, errors.New("connection refused")
	}
	return e.Engine.Search(ctx, q)
}

type testServer struct {
	handler   http.Handler
	engine    *flakyEngine
	store     *catalogmemory.Store
	svc       *service.SearchService
	scheduler *scheduler.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := &flakyEngine{Engine: memory.New()}
	store := catalogmemory.NewStore()
	now := time.Now().UTC()
	store.PutCategory(domain.Category{ID: "phones", Name: "Phones", IsActive: true, CreatedAt: now})
	store.PutCategory(domain.Category{ID: "laptops", Name: "Laptops", IsActive: true, CreatedAt: now})

	orig := 1200.0
	products := []domain.Product{
		{ID: "p1", Name: "iPhone 15", Description: "Apple phone", Price: 999, OriginalPrice: &orig, CategoryID: "phones", Stock: 5, IsActive: true, Rating: 4.8, CreatedAt: now.Add(-time.Hour)},
		{ID: "p2", Name: "Pixel 8", Description: "Google phone", Price: 699, CategoryID: "phones", Stock: 0, IsActive: true, Rating: 4.5, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "p3", Name: "ThinkPad X1", Description: "Business laptop", Price: 1899, CategoryID: "laptops", Stock: 3, IsActive: true, Rating: 4.6, CreatedAt: now.Add(-3 * time.Hour)},
	}
	for _, p := range products {
		store.PutProduct(p)
	}

	svc := service.NewSearchService(eng, store, logger, service.WithEngineName("memory"))
	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	sched, err := scheduler.New("", svc, logger, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	hh := health.NewHandler()
	hh.Register("search_engine", eng.Ping)
	hh.Register("catalog", store.Ping)

	h := NewRouter(RouterConfig{
		ServiceName:     "search-test",
		Search:          svc,
		Catalog:         service.NewCatalogService(store, logger),
		Reindexer:       sched,
		Health:          hh,
		Logger:          logger,
		TokenValidator:  middleware.HMACValidator(testSecret),
		SuggestLimiter:  middleware.NewIPLimiter(0.001, 3, time.Minute),
		CORS:            middleware.DefaultCORSConfig(),
		CatalogCacheTTL: time.Minute,
	})
	return &testServer{handler: h, engine: eng, store: store, svc: svc, scheduler: sched}
}

func (s *testServer) do(t *testing.T, method, target string, body any, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var resp response
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := middleware.SignToken(testSecret, "u-1", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func decodeResult(t *testing.T, raw json.RawMessage) domain.SearchResult {
	t.Helper()
	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(raw, &res))
	return res
}

func resultIDs(res domain.SearchResult) []string {
	ids := make([]string, 0, len(res.Products))
	for _, p := range res.Products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSearch_Basic(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/search/products", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, resp.Data)
	assert.Equal(t, []string{"p1", "p2", "p3"}, resultIDs(res))
	assert.Equal(t, 3, res.Pagination.Total)
	assert.Equal(t, 12, res.Pagination.Limit)
	require.NotNil(t, res.Products[0].Category)
	assert.Equal(t, "Phones", res.Products[0].Category.Name)
	assert.NotEmpty(t, res.Facets["category"])
}

func TestSearch_Filters(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"category", "?category=phones", []string{"p1", "p2"}},
		{"price range", "?minPrice=700&maxPrice=2000", []string{"p1", "p3"}},
		{"has discount", "?hasDiscount=true", []string{"p1"}},
		{"no discount", "?hasDiscount=false&sortBy=price&sortOrder=asc", []string{"p2", "p3"}},
		{"in stock", "?inStock=false", []string{"p2"}},
		{"min rating", "?minRating=4.6&sortBy=rating&sortOrder=desc", []string{"p1", "p3"}},
		{"text", "?q=phone", []string{"p1", "p2"}},
		{"paging", "?limit=1&page=2", []string{"p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(t, http.MethodGet, "/api/v1/search/products"+tt.query, nil, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.ElementsMatch(t, tt.want, resultIDs(decodeResult(t, resp.Data)))
		})
	}
}

func TestSearch_BadParameters(t *testing.T) {
	s := newTestServer(t)

	for _, q := range []string{"?minPrice=cheap", "?page=two", "?hasDiscount=maybe", "?minPrice=10&maxPrice=5", "?fuzzy=sometimes"} {
		w, resp := s.do(t, http.MethodGet, "/api/v1/search/products"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		require.NotNil(t, resp.Error, q)
		assert.Equal(t, "INVALID_INPUT", resp.Error.Code, q)
	}
}

func TestSearch_EngineDown(t *testing.T) {
	s := newTestServer(t)
	s.engine.fail = true

	w, resp := s.do(t, http.MethodGet, "/api/v1/search/products?q=phone", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SEARCH_UNAVAILABLE", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/search/advanced", map[string]any{"query": "phone"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdvanced(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/search/advanced", map[string]any{
		"query":      "phone",
		"categories": []string{"phones"},
		"inStock":    true,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, resp.Data)
	assert.Equal(t, []string{"p1"}, resultIDs(res))
	assert.NotEmpty(t, res.Products[0].Highlight)
}

func TestAdvanced_MultiCategoryMerge(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/search/advanced", map[string]any{
		"categories": []string{"phones", "laptops"},
		"sortBy":     "price",
		"sortOrder":  "desc",
		"limit":      2,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, resp.Data)
	assert.Equal(t, []string{"p3", "p1"}, resultIDs(res))
	assert.Equal(t, 3, res.Pagination.Total)
	assert.True(t, res.Pagination.HasNext)
}

func TestAdvanced_Validation(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/search/advanced", map[string]any{"limit": 500, "sortOrder": "up"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "limit")
	assert.Contains(t, resp.Error.Fields, "sortOrder")

	w, resp = s.do(t, http.MethodPost, "/api/v1/search/advanced", `{"query":"x","colour":"red"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/search/advanced", map[string]any{
		"ratingRange": map[string]float64{"min": 5, "max": 1},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestions(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/search/suggestions?q=ip", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []domain.Suggestion
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "iPhone 15", got[0].Text)

	w, resp = s.do(t, http.MethodGet, "/api/v1/search/suggestions?q=i", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestSuggestions_RateLimited(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		w, _ := s.do(t, http.MethodGet, "/api/v1/search/suggestions?q=pi", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, resp := s.do(t, http.MethodGet, "/api/v1/search/suggestions?q=pi", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Search itself is not throttled.
	w, _ = s.do(t, http.MethodGet, "/api/v1/search/products", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_RequiresAdminToken(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/v1/search/sync/p1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/search/sync/p1", nil, adminToken(t, "customer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/search/sync/p1", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_SyncAndRemove(t *testing.T) {
	s := newTestServer(t)
	tok := adminToken(t, middleware.RoleAdmin)
	ctx := context.Background()

	s.store.PutProduct(domain.Product{ID: "p4", Name: "Galaxy S24", Price: 899, CategoryID: "phones", IsActive: true, CreatedAt: time.Now()})
	w, resp := s.do(t, http.MethodPost, "/api/v1/search/sync/p4", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"p4","status":"indexed"}`, string(resp.Data))
	n, _ := s.engine.Count(ctx)
	assert.Equal(t, 4, n)

	w, resp = s.do(t, http.MethodPost, "/api/v1/search/sync/ghost", nil, tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/search/remove/p4", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	n, _ = s.engine.Count(ctx)
	assert.Equal(t, 3, n)

	w, _ = s.do(t, http.MethodPost, "/api/v1/search/sync/bad%20id", nil, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_SyncAllAndStats(t *testing.T) {
	s := newTestServer(t)
	tok := adminToken(t, middleware.RoleAdmin)

	w, resp := s.do(t, http.MethodPost, "/api/v1/search/sync-all", nil, tok)
	require.Equal(t, http.StatusAccepted, w.Code)
	var status reindexStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Started)

	require.Eventually(t, func() bool {
		_, ok := s.scheduler.Last()
		return ok && !s.scheduler.Running()
	}, 2*time.Second, 5*time.Millisecond)

	w, resp = s.do(t, http.MethodGet, "/api/v1/search/stats", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Index   domain.IndexStats `json:"index"`
		Reindex reindexStatus     `json:"reindex"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, domain.IndexStats{Engine: "memory", Documents: 3}, stats.Index)
	require.NotNil(t, stats.Reindex.Last)
	assert.Equal(t, 3, stats.Reindex.Last.Report.Synced)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/categories", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	var cats []domain.Category
	require.NoError(t, json.Unmarshal(resp.Data, &cats))
	assert.Len(t, cats, 2)

	w, resp = s.do(t, http.MethodGet, "/api/v1/categories/phones/products?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var page service.CategoryPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Len(t, page.Products, 1)

	w, _ = s.do(t, http.MethodGet, "/api/v1/categories/unknown/products", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w, resp = s.do(t, http.MethodGet, "/api/v1/products/p3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p domain.Product
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, "ThinkPad X1", p.Name)

	w, _ = s.do(t, http.MethodGet, "/api/v1/products/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_sync_documents_total")
}

func TestPprof_DeniedByDefault(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/debug/pprof/", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
