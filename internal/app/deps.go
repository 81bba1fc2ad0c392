package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog"
	catalogmemory "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/memory"
	catalogpg "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/postgres"
	"github.com/ThinhVo0/BT4-CNPMM/internal/catalog/seed"
	"github.com/ThinhVo0/BT4-CNPMM/internal/config"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/breaker"
	esengine "github.com/ThinhVo0/BT4-CNPMM/internal/engine/elasticsearch"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/embedded"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/database"
)

// closer releases a dependency during shutdown.
type closer struct {
	name  string
	close func(context.Context) error
}

// Core is the search stack without any transport: the engine, the catalog
// store and the search service built on them. The server and the admin CLI
// share it.
type Core struct {
	Engine  engine.SearchEngine
	Store   catalog.Store
	Search  *service.SearchService
	Catalog *service.CatalogService

	closers []closer
}

// NewCore opens the configured engine and catalog store.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	c := &Core{}

	eng, err := c.openEngine(cfg, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Engine = eng

	store, err := c.openCatalog(ctx, cfg, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Store = store

	c.Search = service.NewSearchService(eng, store, logger,
		service.WithMergeWindow(cfg.MergeWindow),
		service.WithEngineName(cfg.SearchEngine),
	)
	c.Catalog = service.NewCatalogService(store, logger)

	if mem, ok := store.(*catalogmemory.Store); ok && cfg.SeedProducts > 0 {
		if err := c.seedDemo(ctx, mem, cfg.SeedProducts, logger); err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
	}
	return c, nil
}

// seedDemo fills the in-memory catalog and indexes it.
func (c *Core) seedDemo(ctx context.Context, store *catalogmemory.Store, n int, logger *slog.Logger) error {
	if _, err := seed.Load(ctx, store, seed.Options{Products: n, Seed: 1}, logger); err != nil {
		return fmt.Errorf("seed demo catalog: %w", err)
	}
	report, err := c.Search.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("index demo catalog: %w", err)
	}
	logger.Info("demo catalog indexed", slog.Int("synced", report.Synced), slog.Int("total", report.Total))
	return nil
}

func (c *Core) openEngine(cfg *config.Config, logger *slog.Logger) (engine.SearchEngine, error) {
	var eng engine.SearchEngine
	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		es, err := esengine.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", es.IndexName()),
		)
		eng = es
	case config.EngineBleve:
		bl, err := embedded.New(cfg.BlevePath, logger)
		if err != nil {
			return nil, fmt.Errorf("init bleve engine: %w", err)
		}
		c.closers = append(c.closers, closer{"bleve index", func(context.Context) error { return bl.Close() }})
		eng = bl
	default:
		eng = memory.New()
		logger.Info("in-memory search engine initialized")
	}

	if cfg.Breaker.Enabled {
		eng = breaker.New(eng, cfg.Breaker.Settings(cfg.SearchEngine), logger)
	}
	return eng, nil
}

func (c *Core) openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Store, error) {
	if cfg.CatalogBackend == config.CatalogMemory {
		logger.Warn("using in-memory catalog; products must be loaded separately")
		return catalogmemory.NewStore(), nil
	}

	database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("init catalog store: %w", err)
	}
	c.closers = append(c.closers, closer{"postgres pool", func(context.Context) error {
		pool.Close()
		return nil
	}})

	if err := database.RunMigrations(ctx, pool, catalogpg.Migrations(), logger); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	return catalogpg.NewStore(pool), nil
}

// Close releases the engine and store in reverse order of opening.
func (c *Core) Close(ctx context.Context) error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(ctx); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", c.closers[i].name, err)
		}
	}
	c.closers = nil
	return first
}
