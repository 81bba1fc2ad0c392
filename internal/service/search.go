package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/pagination"
)

const tracerName = "github.com/ThinhVo0/BT4-CNPMM/internal/service"

// DefaultMergeWindow is how many hits each per-category query fetches
// during a multi-category merge.
const DefaultMergeWindow = 500

// Mode selects how a request is compiled.
type Mode int

const (
	// ModeBasic requires a text match and sorts by a field.
	ModeBasic Mode = iota
	// ModeAdvanced adds ranking contributions, highlighting and relevance sort.
	ModeAdvanced
)

func (m Mode) String() string {
	if m == ModeAdvanced {
		return "advanced"
	}
	return "basic"
}

func (m Mode) compile(req domain.SearchRequest) query.Query {
	if m == ModeAdvanced {
		return query.BuildAdvanced(req)
	}
	return query.Build(req)
}

// SearchService implements the business logic for search operations.
type SearchService struct {
	engine      engine.SearchEngine
	store       catalog.Store
	logger      *slog.Logger
	engineName  string
	mergeWindow int
}

// Option configures a SearchService.
type Option func(*SearchService)

// WithMergeWindow sets the per-category fetch size of a merge.
func WithMergeWindow(n int) Option {
	return func(s *SearchService) {
		if n > 0 {
			s.mergeWindow = n
		}
	}
}

// WithEngineName sets the backend name reported by Stats.
func WithEngineName(name string) Option {
	return func(s *SearchService) { s.engineName = name }
}

// NewSearchService creates a new search service.
func NewSearchService(eng engine.SearchEngine, store catalog.Store, logger *slog.Logger, opts ...Option) *SearchService {
	s := &SearchService{
		engine:      eng,
		store:       store,
		logger:      logger,
		engineName:  "unknown",
		mergeWindow: DefaultMergeWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs a basic search. More than one category fans out into a merge.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	return s.run(ctx, req, ModeBasic)
}

// SearchAdvanced runs a search with ranking contributions and highlighting.
func (s *SearchService) SearchAdvanced(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	return s.run(ctx, req, ModeAdvanced)
}

func (s *SearchService) run(ctx context.Context, req domain.SearchRequest, mode Mode) (result *domain.SearchResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search."+mode.String())
	defer span.End()

	start := time.Now()
	defer func() {
		searchDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
		searchRequests.WithLabelValues(mode.String(), outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	req = req.Normalize()
	span.SetAttributes(
		attribute.String("search.query", req.Query),
		attribute.Int("search.categories", len(req.Categories)),
		attribute.Int("search.page", req.Page),
	)

	if len(req.Categories) > 1 {
		return s.MergeAcrossCategories(ctx, req.Categories, req, mode)
	}

	res, err := s.engine.Search(ctx, mode.compile(req))
	if err != nil {
		return nil, s.unavailable(ctx, mode, err)
	}

	items, err := s.Reconcile(ctx, res.Hits)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("mode", mode.String()),
		slog.String("query", req.Query),
		slog.Int("total", res.Total),
		slog.Int64("took_ms", res.TookMs),
	)

	return &domain.SearchResult{
		Products:   items,
		Pagination: pagination.NewMeta(res.Total, req.Pagination()),
		Facets:     res.Facets,
		TookMs:     res.TookMs,
	}, nil
}

// Stats reports the backend name and document count.
func (s *SearchService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	n, err := s.engine.Count(ctx)
	if err != nil {
		return nil, apperrors.ServiceUnavailable("search backend unavailable", err)
	}
	return &domain.IndexStats{Engine: s.engineName, Documents: n}, nil
}

// unavailable converts an engine failure into the error surfaced to callers
// so a failed search is never mistaken for an empty one.
func (s *SearchService) unavailable(ctx context.Context, mode Mode, err error) error {
	s.logger.ErrorContext(ctx, "search backend call failed",
		slog.String("mode", mode.String()),
		slog.String("error", err.Error()),
	)
	return apperrors.ServiceUnavailable("search backend unavailable", err)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
