package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"pizzastream/internal/config"
	"pizzastream/pkg/metrics"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

const (
	defaultMaxRequests  = 3
	defaultInterval     = 60 * time.Second
	defaultTimeout      = 60 * time.Second
	defaultMinRequests  = 3
	defaultFailureRatio = 0.5
)

// Option adjusts the gobreaker settings before the breaker is built.
type Option func(*gobreaker.Settings)

// WithIgnoredErrors makes errors matching any target count as successes.
func WithIgnoredErrors(targets ...error) Option {
	return func(s *gobreaker.Settings) {
		next := s.IsSuccessful
		s.IsSuccessful = func(err error) bool {
			for _, target := range targets {
				if errors.Is(err, target) {
					return true
				}
			}
			return next(err)
		}
	}
}

// Breaker trips once MinRequests calls in an interval fail at FailureRatio
// or more.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(name string, cfg config.CircuitBreakerConfig, opts ...Option) *Breaker {
	minRequests := orDefault(cfg.MinRequests, defaultMinRequests)
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = defaultFailureRatio
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: orDefault(cfg.MaxRequests, defaultMaxRequests),
		Interval:    orDefault(cfg.Interval, defaultInterval),
		Timeout:     orDefault(cfg.Timeout, defaultTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			setState(name, to)
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	setState(name, cb.State())
	return &Breaker{cb: cb}
}

// Do runs fn through the breaker unless ctx is already done.
func Do[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	b.record(err)
	if err != nil {
		return zero, err
	}
	typed, _ := result.(T)
	return typed, nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) record(err error) {
	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), b.cb.State().String()).Inc()
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
	}
}

// setState exports closed=0, half-open=1, open=2.
func setState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
