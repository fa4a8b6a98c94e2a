package messages

import (
	"context"

	"github.com/sony/gobreaker"

	"lyftr/internal/config"
	"lyftr/pkg/circuitbreaker"
	"lyftr/pkg/errors"
	"lyftr/pkg/metrics"
)

const breakerName = "sqlite-messages"

// CircuitBreakerRepository fails fast with ErrServiceUnavailable while the
// store keeps erroring.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig, m *metrics.Metrics) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{
			repo: repo,
			cb:   nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig(breakerName)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig, m),
	}
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if circuitbreaker.IsRejection(err) {
		return errors.ErrServiceUnavailable.WithCause(err)
	}
	return err
}

func (r *CircuitBreakerRepository) Insert(ctx context.Context, msg Message) (Outcome, error) {
	if r.cb == nil {
		return r.repo.Insert(ctx, msg)
	}

	outcome, err := circuitbreaker.Execute(ctx, r.cb, func() (Outcome, error) {
		return r.repo.Insert(ctx, msg)
	})
	if err != nil {
		return OutcomeStorageError, unavailable(err)
	}
	return outcome, nil
}

func (r *CircuitBreakerRepository) Query(ctx context.Context, filter Filter, limit, offset int) (QueryResult, error) {
	if r.cb == nil {
		return r.repo.Query(ctx, filter, limit, offset)
	}

	result, err := circuitbreaker.Execute(ctx, r.cb, func() (QueryResult, error) {
		return r.repo.Query(ctx, filter, limit, offset)
	})
	return result, unavailable(err)
}

func (r *CircuitBreakerRepository) Stats(ctx context.Context) (Stats, error) {
	if r.cb == nil {
		return r.repo.Stats(ctx)
	}

	stats, err := circuitbreaker.Execute(ctx, r.cb, func() (Stats, error) {
		return r.repo.Stats(ctx)
	})
	return stats, unavailable(err)
}

// Ping reports an open breaker as not ready without probing the store.
func (r *CircuitBreakerRepository) Ping(ctx context.Context) error {
	if r.cb != nil && r.cb.IsOpen() {
		return errors.ErrServiceUnavailable.WithDetail("message", "circuit breaker is open for "+breakerName)
	}
	return r.repo.Ping(ctx)
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	if r.cb == nil {
		return false
	}
	return r.cb.IsOpen()
}

var _ Repository = (*CircuitBreakerRepository)(nil)
