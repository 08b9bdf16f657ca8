// Package resilient guards a spatial store with a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/core/ports"
	"github.com/samirrijal/turbinemap/internal/pkg/metrics"
)

// Settings tune the breaker. Zero values take the defaults below.
type Settings struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open period before probing again
	MinRequests  uint32        // requests needed before the ratio counts
	FailureRatio float64
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = "spatial-store"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	return s
}

// Store decorates a ports.TurbineRepository. While the circuit is open calls
// fail fast with domain.ErrStoreUnavailable and never reach the store.
type Store struct {
	next ports.TurbineRepository
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// Wrap returns next guarded by a breaker built from settings.
func Wrap(next ports.TurbineRepository, settings Settings) *Store {
	st := settings.withDefaults()

	metrics.BreakerState.WithLabelValues(st.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < st.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= st.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Caller cancellations say nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInvalidArgument)
		},
	})

	return &Store{next: next, cb: cb, name: st.Name}
}

// State exposes the breaker state for readiness checks.
func (s *Store) State() gobreaker.State { return s.cb.State() }

func (s *Store) execute(fn func() (any, error)) (any, error) {
	res, err := s.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.BreakerRequests.WithLabelValues(s.name, "success").Inc()
		return res, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BreakerRequests.WithLabelValues(s.name, "rejected").Inc()
		return nil, fmt.Errorf("%s: %w: %w", s.name, domain.ErrStoreUnavailable, err)
	default:
		metrics.BreakerRequests.WithLabelValues(s.name, "failure").Inc()
		return nil, err
	}
}

func (s *Store) ContainedIn(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	res, err := s.execute(func() (any, error) { return s.next.ContainedIn(ctx, box, limit) })
	if err != nil {
		return nil, err
	}
	return res.([]domain.Turbine), nil
}

func (s *Store) NearestTo(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	res, err := s.execute(func() (any, error) { return s.next.NearestTo(ctx, p, k) })
	if err != nil {
		return nil, err
	}
	return res.([]domain.NearbyTurbine), nil
}

func (s *Store) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	res, err := s.execute(func() (any, error) { return s.next.Stats(ctx) })
	if err != nil {
		return nil, err
	}
	return res.(*domain.DatasetStats), nil
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
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
