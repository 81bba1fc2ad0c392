package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/ThinhVo0/BT4-CNPMM/internal/engine/breaker"
	pkgconfig "github.com/ThinhVo0/BT4-CNPMM/pkg/config"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/database"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/tracing"
)

// ServiceName tags logs, metrics and traces.
const ServiceName = "search-service"

// Search engine backends.
const (
	EngineElasticsearch = "elasticsearch"
	EngineBleve         = "bleve"
	EngineMemory        = "memory"
)

// Catalog backends.
const (
	CatalogPostgres = "postgres"
	CatalogMemory   = "memory"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8010"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Search engine selection
	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"products"`
	// BlevePath is the on-disk bleve index. Empty keeps it in memory.
	BlevePath   string `env:"BLEVE_PATH"`
	MergeWindow int    `env:"MERGE_WINDOW" envDefault:"500"`

	Breaker BreakerConfig

	// Primary store
	CatalogBackend string `env:"CATALOG_BACKEND" envDefault:"postgres"`
	Postgres       database.PostgresConfig
	SlowQuery      time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	// SeedProducts fills an in-memory catalog with that many demo products
	// at startup.
	SeedProducts int `env:"SEED_PRODUCTS" envDefault:"0"`

	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`
	Redis        database.RedisConfig

	// Kafka
	KafkaEnabled   bool          `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID   string        `env:"KAFKA_GROUP_ID" envDefault:"search-service"`
	KafkaRetries   int           `env:"KAFKA_MAX_RETRIES" envDefault:"3"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Reindex
	ReindexSchedule string        `env:"REINDEX_SCHEDULE" envDefault:"@every 6h"`
	ReindexTimeout  time.Duration `env:"REINDEX_TIMEOUT" envDefault:"30m"`

	// HTTP surface
	SuggestRPS         float64       `env:"SUGGEST_RPS" envDefault:"20"`
	SuggestBurst       int           `env:"SUGGEST_BURST" envDefault:"40"`
	AdminJWTSecret     string        `env:"ADMIN_JWT_SECRET"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"60s"`

	Tracing tracing.Config
}

// BreakerConfig configures the circuit breaker around the search engine.
type BreakerConfig struct {
	Enabled      bool          `env:"BREAKER_ENABLED" envDefault:"true"`
	MaxRequests  uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"1"`
	Interval     time.Duration `env:"BREAKER_INTERVAL" envDefault:"60s"`
	Timeout      time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	FailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	MinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`
}

// Settings converts the env config to breaker settings.
func (b BreakerConfig) Settings(name string) breaker.Config {
	return breaker.Config{
		Name:         name,
		MaxRequests:  b.MaxRequests,
		Interval:     b.Interval,
		Timeout:      b.Timeout,
		FailureRatio: b.FailureRatio,
		MinRequests:  b.MinRequests,
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	cfg.Tracing.ServiceName = ServiceName
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	switch c.SearchEngine {
	case EngineElasticsearch, EngineBleve, EngineMemory:
	default:
		errs = append(errs, fmt.Errorf("SEARCH_ENGINE must be one of elasticsearch, bleve, memory; got %q", c.SearchEngine))
	}
	switch c.CatalogBackend {
	case CatalogPostgres, CatalogMemory:
	default:
		errs = append(errs, fmt.Errorf("CATALOG_BACKEND must be postgres or memory; got %q", c.CatalogBackend))
	}
	if c.MergeWindow < 1 {
		errs = append(errs, fmt.Errorf("MERGE_WINDOW must be positive: %d", c.MergeWindow))
	}
	if c.SeedProducts < 0 {
		errs = append(errs, fmt.Errorf("SEED_PRODUCTS must not be negative: %d", c.SeedProducts))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED"))
	}
	if c.SuggestRPS < 0 || c.SuggestBurst < 0 {
		errs = append(errs, errors.New("SUGGEST_RPS and SUGGEST_BURST must not be negative"))
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]: %v", c.Breaker.FailureRatio))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be between 0.0 and 1.0"))
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("PPROF_ALLOWED_CIDRS: %w", err))
		}
	}
	if c.Environment == "production" && c.AdminJWTSecret == "" {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

// SuggestLimitEnabled reports whether the suggestion endpoint is throttled.
func (c *Config) SuggestLimitEnabled() bool {
	return c.SuggestRPS > 0 && c.SuggestBurst > 0
}
