package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzastream/internal/config"
	"pizzastream/pkg/circuitbreaker"
	"pizzastream/pkg/models"
	"pizzastream/pkg/stream"
)

func testItem(orderID models.ID, productID models.ID) models.OrderItemWithContext {
	return models.OrderItemWithContext{
		OrderID:   orderID,
		CreatedAt: models.NewTimestamp(time.Date(2022, 10, 17, 13, 27, 0, 0, time.UTC)),
		OrderItem: models.OrderItem{ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(45)},
	}
}

func TestJoiner_HydratesKnownProduct(t *testing.T) {
	ctx := context.Background()
	j := NewJoiner(NewMemoryTable())

	product := models.Product{ID: "21", Name: "Pepperoni", Category: "pizza", Price: decimal.NewFromInt(45)}
	require.NoError(t, j.Apply(ctx, product.ID, &product))

	out, err := j.Join(ctx, "21", testItem("o1", "21"))
	require.NoError(t, err)

	hydrated, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, models.ID("o1"), hydrated.OrderID)
	assert.Equal(t, "Pepperoni", hydrated.Product.Name)
	assert.Equal(t, 2, hydrated.OrderItem.Quantity)
}

func TestJoiner_ProductArrivingLaterDoesNotReplay(t *testing.T) {
	ctx := context.Background()
	j := NewJoiner(NewMemoryTable())

	out, err := j.Join(ctx, "99", testItem("o1", "99"))
	require.NoError(t, err)
	assert.False(t, out.IsMatched())
	assert.Equal(t, stream.ReasonNoTableEntry, out.Reason())

	product := models.Product{ID: "99", Name: "Calzone"}
	require.NoError(t, j.Apply(ctx, product.ID, &product))

	out, err = j.Join(ctx, "99", testItem("o2", "99"))
	require.NoError(t, err)
	hydrated, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, models.ID("o2"), hydrated.OrderID)
}

func TestMemoryTable_LatestWins(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()

	require.NoError(t, table.Upsert(ctx, models.Product{ID: "1", Name: "Margherita", Price: decimal.NewFromInt(10)}))
	require.NoError(t, table.Upsert(ctx, models.Product{ID: "1", Name: "Margherita", Price: decimal.NewFromInt(12)}))

	p, found, err := table.Lookup(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, decimal.NewFromInt(12).Equal(p.Price))
	assert.Equal(t, 1, table.Len())
}

func TestJoiner_Tombstone(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()
	j := NewJoiner(table)

	product := models.Product{ID: "5", Name: "Garlic bread"}
	require.NoError(t, j.Apply(ctx, product.ID, &product))
	require.NoError(t, j.Apply(ctx, "5", nil))

	out, err := j.Join(ctx, "5", testItem("o1", "5"))
	require.NoError(t, err)
	assert.False(t, out.IsMatched())
	assert.Equal(t, 0, table.Len())
}

func TestNew_Backends(t *testing.T) {
	table, err := New(config.CatalogConfig{Backend: "memory"}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryTable{}, table)

	_, err = New(config.CatalogConfig{Backend: "redis"}, nil, "")
	assert.Error(t, err)

	_, err = New(config.CatalogConfig{Backend: "cassandra"}, nil, "")
	assert.Error(t, err)
}

type failingTable struct {
	calls int
}

var errUnavailable = errors.New("connection refused")

func (f *failingTable) Upsert(context.Context, models.Product) error {
	f.calls++
	return errUnavailable
}

func (f *failingTable) Delete(context.Context, models.ID) error {
	f.calls++
	return errUnavailable
}

func (f *failingTable) Lookup(context.Context, models.ID) (models.Product, bool, error) {
	f.calls++
	return models.Product{}, false, errUnavailable
}

func TestCircuitBreakerTable_OpensOnFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingTable{}
	table := NewCircuitBreakerTable(inner, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 2; i++ {
		_, _, err := table.Lookup(ctx, "1")
		require.ErrorIs(t, err, errUnavailable)
	}
	assert.True(t, table.IsOpen())
	assert.Equal(t, "open", table.State())

	_, _, err := table.Lookup(ctx, "1")
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerTable_Disabled(t *testing.T) {
	ctx := context.Background()
	table := NewCircuitBreakerTable(NewMemoryTable(), config.CircuitBreakerConfig{})

	require.NoError(t, table.Upsert(ctx, models.Product{ID: "1", Name: "Margherita"}))
	p, found, err := table.Lookup(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Margherita", p.Name)
	assert.Equal(t, "disabled", table.State())
	assert.False(t, table.IsOpen())
}
