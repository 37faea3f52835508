// Package query answers the rolling order summary from the window store.
package query

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	"pizzastream/internal/logger"
	"pizzastream/internal/windowstore"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
	"pizzastream/pkg/retry"
)

// Facade is safe for concurrent use by request goroutines.
type Facade struct {
	registry *windowstore.Registry
	period   time.Duration
	policy   retry.Policy
	log      logger.Logger
}

// NewFacade reads windows of length period. Each summary period is
// represented by one window instance.
func NewFacade(registry *windowstore.Registry, period time.Duration, cfg config.QueryConfig, log logger.Logger) *Facade {
	initial := cfg.InitialInterval
	if initial <= 0 {
		initial = constants.DefaultQueryInitialInterval
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = constants.DefaultQueryMaxInterval
	}

	return &Facade{
		registry: registry,
		period:   period,
		policy: retry.Policy{
			InitialInterval: initial,
			MaxInterval:     maxInterval,
			Multiplier:      2.0,
		},
		log: log.Named("query"),
	}
}

// Summary reports the window starting at or after now-period as the current
// period and the one starting at or after now-2*period as the previous one.
// Overlapping hops are not re-aggregated: the first window of each range
// stands for the whole period. It blocks until window state is ready or ctx
// is done. Failed reads are retried with backoff until one succeeds, the
// store reports a fatal error or ctx is done.
func (f *Facade) Summary(ctx context.Context, now time.Time) (models.OrdersSummary, error) {
	started := time.Now()
	defer func() {
		metrics.ObserveQueryDuration(time.Since(started))
	}()

	store, err := f.store(ctx)
	if err != nil {
		return models.OrdersSummary{}, err
	}

	var summary models.OrdersSummary
	err = retry.Until(ctx, f.policy, func() error {
		s, err := f.read(store, now)
		if err != nil {
			f.log.DebugwCtx(ctx, "window read failed", "error", err)
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return models.OrdersSummary{}, err
	}
	return summary, nil
}

func (f *Facade) read(store windowstore.Store, now time.Time) (models.OrdersSummary, error) {
	current, err := firstEntry(store, now.Add(-f.period), now)
	if err != nil {
		return models.OrdersSummary{}, err
	}
	previous, err := firstEntry(store, now.Add(-2*f.period), now.Add(-f.period))
	if err != nil {
		return models.OrdersSummary{}, err
	}
	return models.OrdersSummary{
		CurrentTimePeriod:  current,
		PreviousTimePeriod: previous,
	}, nil
}

func (f *Facade) store(ctx context.Context) (windowstore.Store, error) {
	select {
	case <-f.registry.Ready():
	default:
		f.log.DebugwCtx(ctx, "window state not ready, waiting")
		select {
		case <-f.registry.Ready():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.registry.Store()
}

func firstEntry(store windowstore.Store, from, to time.Time) (models.TimePeriod, error) {
	windows, err := store.Fetch(from, to)
	if err != nil {
		return models.TimePeriod{}, err
	}
	if len(windows) == 0 {
		return models.TimePeriod{TotalPrice: decimal.Zero}, nil
	}
	return models.TimePeriod{
		Orders:     windows[0].Count,
		TotalPrice: windows[0].Revenue,
	}, nil
}
