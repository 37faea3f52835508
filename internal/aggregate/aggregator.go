package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pizzastream/internal/logger"
	"pizzastream/internal/windowstore"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
)

// Result describes what one Add did to the window store.
type Result struct {
	Updated int
	Late    int
	Evicted int
}

// Aggregator is the single writer of the window store. Every order counts
// towards the same global series; there is no per-key state.
type Aggregator struct {
	mu         sync.Mutex
	windows    HoppingWindows
	store      windowstore.Store
	streamTime time.Time
	logger     logger.Logger
}

func NewAggregator(windows HoppingWindows, store windowstore.Store, log logger.Logger) *Aggregator {
	return &Aggregator{
		windows: windows,
		store:   store,
		logger:  log,
	}
}

// Add counts order in every open window containing its creation time and
// evicts the windows that closed as stream time advanced. The window updates
// are committed in one write; on error nothing was counted and stream time is
// unchanged, so the record can be retried.
func (a *Aggregator) Add(ctx context.Context, order models.Order) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res Result
	ts := order.CreatedAt.Time

	streamTime := a.streamTime
	advanced := ts.After(streamTime)
	if advanced {
		streamTime = ts
	}

	assigned := a.windows.Assign(ts)
	updates := make([]models.WindowedMetric, 0, len(assigned))
	for _, win := range assigned {
		if a.windows.closed(win, streamTime) {
			res.Late++
			continue
		}

		m, ok, err := a.store.Get(win.Start)
		if err != nil {
			return Result{}, fmt.Errorf("read window %s: %w", win.Start, err)
		}
		if !ok {
			m = models.WindowedMetric{
				WindowStart: win.Start,
				WindowEnd:   win.End,
				Revenue:     decimal.Zero,
			}
		}
		m.Count++
		m.Revenue = m.Revenue.Add(order.Price)
		updates = append(updates, m)
	}

	if len(updates) > 0 {
		if err := a.store.PutAll(updates); err != nil {
			return Result{}, fmt.Errorf("write %d windows: %w", len(updates), err)
		}
	}
	res.Updated = len(updates)
	a.streamTime = streamTime

	if res.Late > 0 {
		metrics.AddLateRecords(metrics.StageAggregate, res.Late)
		a.logger.DebugwCtx(ctx, "late order dropped from closed windows",
			"order_id", order.ID,
			"created_at", ts,
			"stream_time", streamTime,
			"windows", res.Late,
		)
	}

	if advanced {
		// The order is already counted. A failed eviction is retried on the
		// next advance instead of failing the record.
		evicted, err := a.store.EvictThrough(a.windows.retainedAfter(streamTime))
		if err != nil {
			a.logger.WarnwCtx(ctx, "window eviction failed", "error", err)
		}
		res.Evicted = evicted
		if n, err := a.store.Len(); err == nil {
			metrics.SetOpenWindows(n)
		}
	}

	return res, nil
}

func (a *Aggregator) StreamTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streamTime
}
