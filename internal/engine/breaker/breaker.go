// Package breaker guards a search engine with a circuit breaker so a failing
// backend is rejected fast instead of tying up request goroutines.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/engine"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// Config holds configuration for the circuit breaker.
type Config struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of probes allowed in the half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureRatio trips the breaker once reached.
	FailureRatio float64

	// MinRequests is the minimum number of requests before the ratio counts.
	MinRequests uint32
}

// DefaultConfig returns the breaker settings used by the server.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var engineBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "search_engine_breaker_state",
		Help: "Current state of the search engine circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(engineBreakerState)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Engine wraps an engine.SearchEngine. Only backend unavailability counts
// as a failure; query errors pass through without tripping the breaker.
type Engine struct {
	next    engine.SearchEngine
	breaker *gobreaker.CircuitBreaker[any]
	name    string
}

var _ engine.SearchEngine = (*Engine)(nil)

// New wraps next with a circuit breaker.
func New(next engine.SearchEngine, cfg Config, logger *slog.Logger) *Engine {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, engine.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search engine breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			engineBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	engineBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &Engine{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		name:    cfg.Name,
	}
}

// State returns the current state of the breaker.
func (e *Engine) State() gobreaker.State {
	return e.breaker.State()
}

func (e *Engine) execute(op string, fn func() (any, error)) (any, error) {
	v, err := e.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %w", op, engine.ErrUnavailable, err)
	}
	return v, err
}

// Index implements engine.SearchEngine.
func (e *Engine) Index(ctx context.Context, product *domain.IndexedProduct) error {
	_, err := e.execute("index", func() (any, error) {
		return nil, e.next.Index(ctx, product)
	})
	return err
}

// Delete implements engine.SearchEngine.
func (e *Engine) Delete(ctx context.Context, id string) error {
	_, err := e.execute("delete", func() (any, error) {
		return nil, e.next.Delete(ctx, id)
	})
	return err
}

// BulkIndex implements engine.SearchEngine.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.IndexedProduct) error {
	_, err := e.execute("bulk index", func() (any, error) {
		return nil, e.next.BulkIndex(ctx, products)
	})
	return err
}

// Search implements engine.SearchEngine.
func (e *Engine) Search(ctx context.Context, q query.Query) (*engine.Result, error) {
	v, err := e.execute("search", func() (any, error) {
		return e.next.Search(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.Result), nil
}

// Complete implements engine.SearchEngine.
func (e *Engine) Complete(ctx context.Context, prefix string, size int) ([]domain.Suggestion, error) {
	v, err := e.execute("complete", func() (any, error) {
		return e.next.Complete(ctx, prefix, size)
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.([]domain.Suggestion)
	return s, nil
}

// Count implements engine.SearchEngine.
func (e *Engine) Count(ctx context.Context) (int, error) {
	v, err := e.execute("count", func() (any, error) {
		return e.next.Count(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (e *Engine) Ping(ctx context.Context) error {
	return e.next.Ping(ctx)
}
