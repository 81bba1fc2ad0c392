package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/health"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/middleware"
)

// RouterConfig carries the dependencies and knobs of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	Search      *service.SearchService
	Catalog     *service.CatalogService
	Reindexer   Reindexer
	Health      *health.Handler
	Logger      *slog.Logger

	// TokenValidator authenticates admin requests.
	TokenValidator middleware.TokenValidator
	// SuggestLimiter throttles the suggestion endpoint per client IP. Nil
	// disables throttling.
	SuggestLimiter *middleware.IPLimiter

	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	RequestTimeout  time.Duration
	CatalogCacheTTL time.Duration
}

// NewRouter creates a chi router with every route registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	logger := cfg.Logger

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	search := NewSearchHandler(cfg.Search, logger)
	admin := NewAdminHandler(cfg.Search, cfg.Reindexer, logger)
	catalog := NewCatalogHandler(cfg.Catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/products", search.Search)
			r.Post("/advanced", search.Advanced)
			r.Group(func(r chi.Router) {
				if cfg.SuggestLimiter != nil {
					r.Use(middleware.RateLimit(cfg.SuggestLimiter, logger))
				}
				r.Get("/suggestions", search.Suggest)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.TokenValidator))
				r.Use(middleware.RequireRole(middleware.RoleAdmin))
				r.Post("/sync-all", admin.SyncAll)
				r.Post("/sync/{productId}", admin.SyncOne)
				r.Delete("/remove/{productId}", admin.Remove)
				r.Get("/stats", admin.Stats)
			})
		})

		r.Group(func(r chi.Router) {
			if cfg.CatalogCacheTTL > 0 {
				r.Use(middleware.CacheControl(cfg.CatalogCacheTTL))
			}
			r.Get("/categories", catalog.ListCategories)
			r.Get("/categories/{categoryId}/products", catalog.CategoryProducts)
			r.Get("/products/{productId}", catalog.GetProduct)
		})
	})

	return r
}
