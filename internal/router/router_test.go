package router

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pizzastream/pkg/models"
)

func TestItems_OnePairPerItem(t *testing.T) {
	created := models.NewTimestamp(time.Date(2022, 10, 17, 13, 27, 35, 0, time.UTC))
	order := models.Order{
		ID:        "o1",
		CreatedAt: created,
		Items: []models.OrderItem{
			{ProductID: "21", Quantity: 2, Price: decimal.NewFromInt(45)},
			{ProductID: "7", Quantity: 1, Price: decimal.NewFromInt(10)},
			{ProductID: "21", Quantity: 1, Price: decimal.NewFromInt(45)},
		},
	}

	var keys []string
	var items []models.OrderItemWithContext
	for key, item := range Items(order) {
		keys = append(keys, key)
		items = append(items, item)
	}

	assert.Equal(t, []string{"21", "7", "21"}, keys)
	for i, item := range items {
		assert.Equal(t, models.ID("o1"), item.OrderID)
		assert.Equal(t, created, item.CreatedAt)
		assert.Equal(t, order.Items[i], item.OrderItem)
	}
}

func TestItems_Empty(t *testing.T) {
	count := 0
	for range Items(models.Order{ID: "o1"}) {
		count++
	}
	assert.Zero(t, count)
}

func TestItems_StopsEarly(t *testing.T) {
	order := models.Order{ID: "o1", Items: []models.OrderItem{{ProductID: "1"}, {ProductID: "2"}, {ProductID: "3"}}}

	var keys []string
	for key := range Items(order) {
		keys = append(keys, key)
		if len(keys) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, keys)
}

func TestItems_Replayable(t *testing.T) {
	order := models.Order{ID: "o1", Items: []models.OrderItem{{ProductID: "1"}, {ProductID: "2"}}}
	seq := Items(order)

	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	assert.Equal(t, 2, first)
	assert.Equal(t, first, second)
}
