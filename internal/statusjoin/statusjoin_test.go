package statusjoin

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pizzastream/pkg/models"
	"pizzastream/pkg/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	base   = time.Date(2022, 10, 17, 13, 0, 0, 0, time.UTC)
	window = JoinWindow{Before: 2 * time.Hour, After: 2 * time.Hour, Grace: 4 * time.Hour}
)

func order(id string, at time.Duration) models.Order {
	return models.Order{
		ID:        models.ID(id),
		UserID:    "817",
		CreatedAt: models.NewTimestamp(base.Add(at)),
		Price:     decimal.NewFromInt(4259),
		Items:     []models.OrderItem{{ProductID: "3", Quantity: 3, Price: decimal.NewFromInt(60)}},
	}
}

func status(id string, at time.Duration, s models.Status) models.OrderStatus {
	return models.OrderStatus{ID: models.ID(id), UpdatedAt: models.NewTimestamp(base.Add(at)), Status: s}
}

func matched(t *testing.T, outcomes []stream.Outcome[models.EnrichedOrder]) []models.EnrichedOrder {
	t.Helper()
	var out []models.EnrichedOrder
	for _, o := range outcomes {
		if v, ok := o.Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

func reasons(outcomes []stream.Outcome[models.EnrichedOrder]) []stream.Reason {
	var out []stream.Reason
	for _, o := range outcomes {
		if !o.IsMatched() {
			out = append(out, o.Reason())
		}
	}
	return out
}

func TestJoiner_OrderThenStatus(t *testing.T) {
	j := NewJoiner(0, window)

	assert.Equal(t, []stream.Reason{stream.ReasonNoPartner}, reasons(j.ProcessOrder(order("x", 0))))

	got := matched(t, j.ProcessStatus(status("x", 3*time.Minute, models.StatusOrderConfirmed)))
	require.Len(t, got, 1)
	assert.Equal(t, models.ID("x"), got[0].ID)
	assert.Equal(t, models.StatusOrderConfirmed, got[0].Status)
	assert.True(t, base.Add(3*time.Minute).Equal(got[0].CreatedAt.Time))
	assert.Equal(t, models.ID("817"), got[0].UserID)
}

func TestJoiner_StatusThenOrder(t *testing.T) {
	j := NewJoiner(0, window)

	assert.Equal(t, []stream.Reason{stream.ReasonNoPartner}, reasons(j.ProcessStatus(status("x", time.Minute, models.StatusPlacedOrder))))

	got := matched(t, j.ProcessOrder(order("x", 0)))
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusPlacedOrder, got[0].Status)
}

func TestJoiner_OneEnrichedOrderPerStatus(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))

	var statuses []models.Status
	for i, s := range models.Statuses {
		got := matched(t, j.ProcessStatus(status("x", time.Duration(i+1)*time.Minute, s)))
		require.Len(t, got, 1, "status %s", s)
		statuses = append(statuses, got[0].Status)
	}
	assert.Equal(t, models.Statuses, statuses)
}

func TestJoiner_WindowBoundaryInclusive(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))

	assert.Len(t, matched(t, j.ProcessStatus(status("x", 2*time.Hour, models.StatusDelivered))), 1)
	assert.Empty(t, matched(t, j.ProcessStatus(status("x", 2*time.Hour+time.Millisecond, models.StatusDelivered))))
}

func TestJoiner_StatusThreeHoursLaterNeverJoins(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))

	out := j.ProcessStatus(status("x", 3*time.Hour, models.StatusDelivered))
	assert.Empty(t, matched(t, out))
	assert.Equal(t, []stream.Reason{stream.ReasonNoPartner}, reasons(out))

	// nothing joins later either
	j.ProcessStatus(status("y", 4*time.Hour, models.StatusPlacedOrder))
	assert.Empty(t, matched(t, j.ProcessOrder(order("other", 4*time.Hour))))
}

func TestJoiner_BeyondWindowPlusGrace(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))

	out := j.ProcessStatus(status("x", 6*time.Hour+time.Second, models.StatusDelivered))
	assert.Empty(t, matched(t, out))
}

func TestJoiner_LateRecordExpired(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))

	// another order moves stream time past 1m + 2h + 4h
	j.ProcessOrder(order("y", 6*time.Hour+2*time.Minute))

	out := j.ProcessStatus(status("x", time.Minute, models.StatusOrderConfirmed))
	assert.Equal(t, []stream.Reason{stream.ReasonExpired}, reasons(out))
	assert.Empty(t, matched(t, out))

	_, statuses := j.Buffered()
	assert.Zero(t, statuses, "late records are never buffered")
}

func TestJoiner_GraceAcceptsOutOfOrder(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))
	j.ProcessOrder(order("y", 5*time.Hour))

	got := matched(t, j.ProcessStatus(status("x", time.Hour, models.StatusBeingCooked)))
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusBeingCooked, got[0].Status)
}

func TestJoiner_SweepPurgesExpiredBuffers(t *testing.T) {
	j := NewJoiner(0, window)
	j.ProcessOrder(order("x", 0))
	j.ProcessStatus(status("z", 0, models.StatusPlacedOrder))

	orders, statuses := j.Buffered()
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, statuses)

	j.ProcessOrder(order("y", 8*time.Hour+time.Second))
	assert.Equal(t, 2, j.Sweep())

	orders, statuses = j.Buffered()
	assert.Equal(t, 1, orders)
	assert.Zero(t, statuses)
	assert.True(t, base.Add(8*time.Hour+time.Second).Equal(j.StreamTime()))
}

func TestStage_PartitionsByOrderID(t *testing.T) {
	s := NewStage(4, window)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Order(ctx, order(id, 0))
		require.NoError(t, err)
	}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		out, err := s.Status(ctx, status(id, time.Minute, models.StatusPlacedOrder))
		require.NoError(t, err)
		got := matched(t, out)
		require.Len(t, got, 1)
		assert.Equal(t, models.ID(id), got[0].ID)
	}

	dropped, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, dropped)
}

func TestStage_ExpiringContextsReturnNoPartialResult(t *testing.T) {
	s := NewStage(2, window)
	defer s.Close()

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
		out, err := s.Order(ctx, order("o1", time.Duration(i)*time.Second))
		cancel()
		if err != nil {
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Nil(t, out)
		}
	}

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
}
