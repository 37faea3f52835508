package windowstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func window(offset time.Duration, count int64, revenue int64) models.WindowedMetric {
	start := base.Add(offset)
	return models.WindowedMetric{
		WindowStart: start,
		WindowEnd:   start.Add(time.Minute),
		Count:       count,
		Revenue:     decimal.NewFromInt(revenue),
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	pebbleStore, err := NewPebbleStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pebbleStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"pebble": pebbleStore,
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(base)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(window(0, 1, 10)))
			require.NoError(t, s.Put(window(0, 2, 30)))

			got, ok, err := s.Get(base)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(2), got.Count)
			assert.True(t, decimal.NewFromInt(30).Equal(got.Revenue))
			assert.True(t, base.Equal(got.WindowStart))

			n, err := s.Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStore_FetchHalfOpenAscending(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, off := range []time.Duration{3 * time.Second, -2 * time.Second, 0, time.Second, 5 * time.Second} {
				require.NoError(t, s.Put(window(off, 1, int64(off/time.Second))))
			}

			got, err := s.Fetch(base.Add(-2*time.Second), base.Add(3*time.Second))
			require.NoError(t, err)

			var starts []time.Duration
			for _, m := range got {
				starts = append(starts, m.WindowStart.Sub(base))
			}
			assert.Equal(t, []time.Duration{-2 * time.Second, 0, time.Second}, starts)

			empty, err := s.Fetch(base.Add(10*time.Second), base.Add(20*time.Second))
			require.NoError(t, err)
			assert.Empty(t, empty)

			inverted, err := s.Fetch(base.Add(5*time.Second), base)
			require.NoError(t, err)
			assert.Empty(t, inverted)
		})
	}
}

func TestStore_EvictThrough(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, s.Put(window(time.Duration(i)*time.Second, 1, 1)))
			}

			n, err := s.EvictThrough(base.Add(2 * time.Second))
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			_, ok, err := s.Get(base.Add(2 * time.Second))
			require.NoError(t, err)
			assert.False(t, ok)

			remaining, err := s.Fetch(base.Add(-time.Hour), base.Add(time.Hour))
			require.NoError(t, err)
			require.Len(t, remaining, 2)
			assert.True(t, base.Add(3*time.Second).Equal(remaining[0].WindowStart))

			n, err = s.EvictThrough(base.Add(2 * time.Second))
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_PutAll(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(window(time.Second, 1, 5)))
			require.NoError(t, s.PutAll([]models.WindowedMetric{
				window(2*time.Second, 1, 7),
				window(0, 3, 9),
				window(time.Second, 2, 12),
			}))

			got, err := s.Fetch(base, base.Add(time.Minute))
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.True(t, base.Equal(got[0].WindowStart))
			assert.Equal(t, int64(3), got[0].Count)
			assert.Equal(t, int64(2), got[1].Count)
			assert.True(t, decimal.NewFromInt(12).Equal(got[1].Revenue))
			assert.Equal(t, int64(1), got[2].Count)

			require.NoError(t, s.PutAll(nil))
			n, err := s.Len()
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPebbleStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(window(0, 4, 120)))
	require.NoError(t, s.Close())

	reopened, err := NewPebbleStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(base)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), got.Count)
	assert.True(t, decimal.NewFromInt(120).Equal(got.Revenue))
}

func TestWindowKey_OrdersAcrossEpoch(t *testing.T) {
	before := windowKey(time.UnixMilli(-1000))
	zero := windowKey(time.UnixMilli(0))
	after := windowKey(time.UnixMilli(1000))

	assert.Negative(t, compareBytes(before, zero))
	assert.Negative(t, compareBytes(zero, after))
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return 0
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put(window(0, 1, 1)), apperrors.ErrStoreClosed)
	assert.ErrorIs(t, s.PutAll([]models.WindowedMetric{window(0, 1, 1)}), apperrors.ErrStoreClosed)
	_, err := s.Fetch(base, base.Add(time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrStoreClosed)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StateConfig{Backend: constants.StateBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StateConfig{Backend: constants.StateBackendPebble, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &PebbleStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StateConfig{Backend: "rocksdb"})
	assert.Error(t, err)
}

func TestRegistry_ReadySignal(t *testing.T) {
	r := NewRegistry()

	_, err := r.Store()
	assert.ErrorIs(t, err, ErrNotReady)

	select {
	case <-r.Ready():
		t.Fatal("ready before MarkReady")
	default:
	}

	store := NewMemoryStore()
	r.MarkReady(store)
	r.MarkReady(NewMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case <-r.Ready():
	case <-ctx.Done():
		t.Fatal("ready signal not raised")
	}

	got, err := r.Store()
	require.NoError(t, err)
	assert.Same(t, store, got)
}
