package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzastream/internal/aggregate"
	"pizzastream/internal/config"
	"pizzastream/internal/logger"
	"pizzastream/internal/windowstore"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

var (
	base    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	revenue = aggregate.HoppingWindows{Size: time.Minute, Advance: time.Second, Grace: time.Minute}
	fast    = config.QueryConfig{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
)

func order(id string, at time.Duration, price string) models.Order {
	return models.Order{
		ID:        models.ID(id),
		CreatedAt: models.NewTimestamp(base.Add(at)),
		Price:     decimal.RequireFromString(price),
	}
}

func readyFacade(t *testing.T, orders ...models.Order) *Facade {
	t.Helper()
	store := windowstore.NewMemoryStore()
	agg := aggregate.NewAggregator(revenue, store, logger.NopLogger())
	for _, o := range orders {
		_, err := agg.Add(context.Background(), o)
		require.NoError(t, err)
	}

	registry := windowstore.NewRegistry()
	registry.MarkReady(store)
	return NewFacade(registry, revenue.Size, fast, logger.NopLogger())
}

func TestSummary_ThreeOrders(t *testing.T) {
	f := readyFacade(t,
		order("o1", 0, "10.0"),
		order("o2", 10*time.Second, "20.0"),
		order("o3", 70*time.Second, "30.0"),
	)

	summary, err := f.Summary(context.Background(), base.Add(75*time.Second))
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.CurrentTimePeriod.Orders)
	assert.True(t, decimal.RequireFromString("30").Equal(summary.CurrentTimePeriod.TotalPrice))
	assert.Equal(t, int64(2), summary.PreviousTimePeriod.Orders)
	assert.True(t, decimal.RequireFromString("30").Equal(summary.PreviousTimePeriod.TotalPrice))
}

func TestSummary_UsesFirstWindowOfRange(t *testing.T) {
	// [+15s, +75s) is the first window starting in [now-60s, now) and holds
	// o2 and o3. Later windows in the same range hold only o3 and are ignored.
	f := readyFacade(t,
		order("o1", 0, "10.0"),
		order("o2", 30*time.Second, "20.0"),
		order("o3", 70*time.Second, "40.0"),
	)
	now := base.Add(75 * time.Second)

	store, err := f.registry.Store()
	require.NoError(t, err)
	windows, err := store.Fetch(now.Add(-time.Minute), now)
	require.NoError(t, err)
	require.Len(t, windows, 56)
	assert.Equal(t, int64(1), windows[len(windows)-1].Count)

	summary, err := f.Summary(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.CurrentTimePeriod.Orders)
	assert.True(t, decimal.RequireFromString("60").Equal(summary.CurrentTimePeriod.TotalPrice))
	assert.Equal(t, int64(1), summary.PreviousTimePeriod.Orders)
	assert.True(t, decimal.RequireFromString("10").Equal(summary.PreviousTimePeriod.TotalPrice))
}

func TestSummary_EmptyRangesAreZero(t *testing.T) {
	f := readyFacade(t)

	summary, err := f.Summary(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, int64(0), summary.CurrentTimePeriod.Orders)
	assert.True(t, summary.CurrentTimePeriod.TotalPrice.IsZero())
	assert.Equal(t, int64(0), summary.PreviousTimePeriod.Orders)
	assert.True(t, summary.PreviousTimePeriod.TotalPrice.IsZero())
}

func TestSummary_BlocksUntilReady(t *testing.T) {
	registry := windowstore.NewRegistry()
	f := NewFacade(registry, revenue.Size, fast, logger.NopLogger())

	store := windowstore.NewMemoryStore()
	agg := aggregate.NewAggregator(revenue, store, logger.NopLogger())
	_, err := agg.Add(context.Background(), order("o1", 0, "12.5"))
	require.NoError(t, err)

	type result struct {
		summary models.OrdersSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := f.Summary(context.Background(), base.Add(time.Second))
		done <- result{s, err}
	}()

	select {
	case <-done:
		t.Fatal("summary returned before the store was ready")
	case <-time.After(50 * time.Millisecond):
	}

	registry.MarkReady(store)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, int64(1), r.summary.CurrentTimePeriod.Orders)
		assert.True(t, decimal.RequireFromString("12.5").Equal(r.summary.CurrentTimePeriod.TotalPrice))
	case <-time.After(5 * time.Second):
		t.Fatal("summary did not return after the store became ready")
	}
}

func TestSummary_CancelledWhileWaiting(t *testing.T) {
	f := NewFacade(windowstore.NewRegistry(), revenue.Size, fast, logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Summary(ctx, base)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// flakyStore fails its first failures fetches.
type flakyStore struct {
	windowstore.Store
	failures int
	calls    int
}

func (s *flakyStore) Fetch(from, to time.Time) ([]models.WindowedMetric, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("read interrupted")
	}
	return s.Store.Fetch(from, to)
}

func TestSummary_RetriesFailedReads(t *testing.T) {
	mem := windowstore.NewMemoryStore()
	agg := aggregate.NewAggregator(revenue, mem, logger.NopLogger())
	_, err := agg.Add(context.Background(), order("o1", 0, "8"))
	require.NoError(t, err)

	store := &flakyStore{Store: mem, failures: 3}
	registry := windowstore.NewRegistry()
	registry.MarkReady(store)
	f := NewFacade(registry, revenue.Size, fast, logger.NopLogger())

	summary, err := f.Summary(context.Background(), base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.CurrentTimePeriod.Orders)
	assert.True(t, decimal.NewFromInt(8).Equal(summary.CurrentTimePeriod.TotalPrice))
	assert.Equal(t, 5, store.calls)
}

func TestSummary_ClosedStoreIsNotRetried(t *testing.T) {
	store := windowstore.NewMemoryStore()
	registry := windowstore.NewRegistry()
	registry.MarkReady(store)
	require.NoError(t, store.Close())
	f := NewFacade(registry, revenue.Size, fast, logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.Summary(ctx, base)
	assert.ErrorIs(t, err, apperrors.ErrStoreClosed)
	assert.NoError(t, ctx.Err())
}
