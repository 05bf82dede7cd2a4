package inventory

import (
	"context"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/resilience"
)

// Migrator is implemented by stores with a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// ResilientStore wraps a remote Store with a circuit breaker and retries
// transient failures. Reserve and Release are not idempotent and are never
// retried; a lost reply could otherwise consume capacity twice.
type ResilientStore struct {
	inner   Store
	backend string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

var _ Store = (*ResilientStore)(nil)

// NewResilient wraps st using the retry and breaker settings in cfg.
func NewResilient(st Store, backend string, cfg config.InventoryConfig) *ResilientStore {
	retry, breaker := resilience.FromInventoryConfig(cfg)
	return newResilient(st, backend, retry, breaker)
}

func newResilient(st Store, backend string, retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) *ResilientStore {
	return &ResilientStore{
		inner:   st,
		backend: backend,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breaker),
	}
}

// Breaker exposes the circuit breaker state for health reporting.
func (s *ResilientStore) Breaker() *resilience.CircuitBreaker { return s.breaker }

// Unwrap returns the wrapped store.
func (s *ResilientStore) Unwrap() Store { return s.inner }

func retried[T any](ctx context.Context, s *ResilientStore, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger(s.backend, op)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		return resilience.ExecuteVal(ctx, s.breaker, fn)
	})
}

// Snapshot implements Store.
func (s *ResilientStore) Snapshot(ctx context.Context) ([]model.PlatformState, error) {
	return retried(ctx, s, "snapshot", s.inner.Snapshot)
}

// Get implements Store.
func (s *ResilientStore) Get(ctx context.Context, code string) (model.PlatformState, error) {
	return retried(ctx, s, "get", func(ctx context.Context) (model.PlatformState, error) {
		return s.inner.Get(ctx, code)
	})
}

// Reserve implements Store.
func (s *ResilientStore) Reserve(ctx context.Context, code string) (int, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (int, error) {
		return s.inner.Reserve(ctx, code)
	})
}

// Release implements Store.
func (s *ResilientStore) Release(ctx context.Context, code string) (int, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (int, error) {
		return s.inner.Release(ctx, code)
	})
}

// SetAccepting implements Store.
func (s *ResilientStore) SetAccepting(ctx context.Context, code string, accepting bool) error {
	_, err := retried(ctx, s, "set_accepting", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.inner.SetAccepting(ctx, code, accepting)
	})
	return err
}

// Upsert implements Store.
func (s *ResilientStore) Upsert(ctx context.Context, states ...model.PlatformState) error {
	_, err := retried(ctx, s, "upsert", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.inner.Upsert(ctx, states...)
	})
	return err
}

// Migrate runs the wrapped store's migrations, if it has any.
func (s *ResilientStore) Migrate(ctx context.Context) error {
	m, ok := s.inner.(Migrator)
	if !ok {
		return nil
	}
	_, err := retried(ctx, s, "migrate", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.Migrate(ctx)
	})
	return err
}

// Close implements Store.
func (s *ResilientStore) Close() error {
	return s.inner.Close()
}
