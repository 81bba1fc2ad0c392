package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, EngineElasticsearch, cfg.SearchEngine)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "products", cfg.ElasticsearchIndex)
	assert.Equal(t, CatalogPostgres, cfg.CatalogBackend)
	assert.Equal(t, 500, cfg.MergeWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "search-service", cfg.KafkaGroupID)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "@every 6h", cfg.ReindexSchedule)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, ServiceName, cfg.Tracing.ServiceName)
	assert.True(t, cfg.SuggestLimitEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_PORT":            "9000",
		"SEARCH_ENGINE":        "bleve",
		"BLEVE_PATH":           "/var/lib/search/products.bleve",
		"CATALOG_BACKEND":      "memory",
		"KAFKA_BROKERS":        "k1:9092,k2:9092",
		"REDIS_ENABLED":        "true",
		"REDIS_URL":            "redis://cache:6379/1",
		"DATABASE_URL":         "postgres://u:p@db:5432/shop",
		"BREAKER_TIMEOUT":      "5s",
		"CORS_ALLOWED_ORIGINS": "https://shop.example,https://admin.example",
		"SUGGEST_RPS":          "0",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, EngineBleve, cfg.SearchEngine)
	assert.Equal(t, "/var/lib/search/products.bleve", cfg.BlevePath)
	assert.Equal(t, CatalogMemory, cfg.CatalogBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "postgres://u:p@db:5432/shop", cfg.Postgres.DSN())
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
	assert.Len(t, cfg.CORSAllowedOrigins, 2)
	assert.False(t, cfg.SuggestLimitEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"http port", map[string]string{"HTTP_PORT": "0"}, "invalid HTTP port"},
		{"engine", map[string]string{"SEARCH_ENGINE": "solr"}, "SEARCH_ENGINE must be one of"},
		{"catalog", map[string]string{"CATALOG_BACKEND": "mongo"}, "CATALOG_BACKEND must be"},
		{"merge window", map[string]string{"MERGE_WINDOW": "0"}, "MERGE_WINDOW must be positive"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{"breaker ratio", map[string]string{"BREAKER_FAILURE_RATIO": "1.5"}, "BREAKER_FAILURE_RATIO"},
		{"pprof cidr", map[string]string{"PPROF_ALLOWED_CIDRS": "10.0.0.0/99"}, "PPROF_ALLOWED_CIDRS"},
		{"production secret", map[string]string{"ENVIRONMENT": "production"}, "ADMIN_JWT_SECRET is required"},
		{"not a number", map[string]string{"MERGE_WINDOW": "lots"}, "load search config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.env)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	setEnvs(t, map[string]string{"HTTP_PORT": "70000", "SEARCH_ENGINE": "solr"})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "SEARCH_ENGINE")
}

func TestBreakerSettings(t *testing.T) {
	b := BreakerConfig{MaxRequests: 2, Interval: time.Minute, Timeout: 5 * time.Second, FailureRatio: 0.4, MinRequests: 10}

	s := b.Settings("elasticsearch")

	assert.Equal(t, "elasticsearch", s.Name)
	assert.Equal(t, uint32(2), s.MaxRequests)
	assert.Equal(t, 0.4, s.FailureRatio)
	assert.Equal(t, uint32(10), s.MinRequests)
}
