package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/ThinhVo0/BT4-CNPMM/internal/catalog/memory"
	"github.com/ThinhVo0/BT4-CNPMM/internal/config"
	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/breaker"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/embedded"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inMemoryConfig(t *testing.T, engine string) *config.Config {
	t.Helper()
	t.Setenv("SEARCH_ENGINE", engine)
	t.Setenv("CATALOG_BACKEND", "memory")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("REINDEX_SCHEDULE", "@every 1h")
	t.Setenv("ADMIN_JWT_SECRET", "app-secret")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewCore_InMemory(t *testing.T) {
	ctx := context.Background()
	core, err := NewCore(ctx, inMemoryConfig(t, config.EngineMemory), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close(ctx) })

	_, ok := core.Engine.(*breaker.Engine)
	assert.True(t, ok, "engine is wrapped in the circuit breaker")

	store, ok := core.Store.(*catalogmemory.Store)
	require.True(t, ok)
	store.PutProduct(domain.Product{ID: "p1", Name: "Desk lamp", Price: 25, IsActive: true, CreatedAt: time.Now()})

	report, err := core.Search.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	stats, err := core.Search.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{Engine: config.EngineMemory, Documents: 1}, *stats)
}

func TestNewCore_SeedsDemoCatalog(t *testing.T) {
	ctx := context.Background()
	cfg := inMemoryConfig(t, config.EngineMemory)
	cfg.SeedProducts = 50

	core, err := NewCore(ctx, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close(ctx) })

	stats, err := core.Search.Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.Documents)
	assert.LessOrEqual(t, stats.Documents, 50)

	cats, err := core.Catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestNewCore_BleveWithoutBreaker(t *testing.T) {
	ctx := context.Background()
	cfg := inMemoryConfig(t, config.EngineBleve)
	cfg.Breaker.Enabled = false

	core, err := NewCore(ctx, cfg, testLogger())
	require.NoError(t, err)

	_, ok := core.Engine.(*embedded.Engine)
	assert.True(t, ok)
	assert.NoError(t, core.Close(ctx))
	assert.NoError(t, core.Close(ctx), "second close is a no-op")
}

func TestNewApp_ServesRoutes(t *testing.T) {
	ctx := context.Background()
	a, err := NewApp(ctx, inMemoryConfig(t, config.EngineMemory), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeAll(ctx) })

	assert.Empty(t, a.consumers)
	assert.NotNil(t, a.limiter)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/api/v1/search/products")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	tok, err := middleware.SignToken("app-secret", "ops", middleware.RoleAdmin, time.Minute)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/search/stats", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestTokenValidator_DisabledWithoutSecret(t *testing.T) {
	cfg := inMemoryConfig(t, config.EngineMemory)
	cfg.AdminJWTSecret = ""
	a := &App{cfg: cfg, logger: testLogger()}

	tok, err := middleware.SignToken("", "ops", middleware.RoleAdmin, time.Minute)
	require.NoError(t, err)

	_, err = a.tokenValidator()(tok)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := inMemoryConfig(t, config.EngineMemory)
	a, err := NewApp(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
