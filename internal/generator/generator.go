// Package generator produces sample orders, status transitions and catalog
// rows for local runs.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"pizzastream/internal/broker"
	"pizzastream/internal/config"
	"pizzastream/internal/logger"
	"pizzastream/pkg/models"
)

// DefaultProducts is a small menu; ids match the numeric ids of the
// upstream catalog.
func DefaultProducts() []models.Product {
	row := func(id, name, category string, price int64) models.Product {
		return models.Product{
			ID:       models.ID(id),
			Name:     name,
			Category: category,
			Price:    decimal.NewFromInt(price),
		}
	}
	return []models.Product{
		row("1", "Moroccan Spice Pasta Pizza - Veg", "veg pizzas", 335),
		row("2", "Pepper Barbecue Chicken", "non veg pizzas", 385),
		row("3", "Margherita", "veg pizzas", 239),
		row("4", "Chicken Dominator", "non veg pizzas", 569),
		row("5", "Garlic Breadsticks", "side orders", 109),
		row("6", "Choco Lava Cake", "desserts", 119),
	}
}

type Generator struct {
	rng      *rand.Rand
	products []models.Product
	users    int
}

func New(seed uint64, products []models.Product) *Generator {
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		products: products,
		users:    1000,
	}
}

// Order returns an order placed at now with one to five distinct products.
// Price is the sum of item prices times quantities.
func (g *Generator) Order(now time.Time) models.Order {
	n := 1 + g.rng.IntN(min(5, len(g.products)))
	picked := g.rng.Perm(len(g.products))[:n]

	order := models.Order{
		ID:        models.ID(uuid.NewString()),
		CreatedAt: models.NewTimestamp(now),
		UserID:    models.ID(fmt.Sprintf("%d", 1+g.rng.IntN(g.users))),
		Price:     decimal.Zero,
	}
	for _, i := range picked {
		p := g.products[i]
		qty := 1 + g.rng.IntN(3)
		order.Items = append(order.Items, models.OrderItem{ProductID: p.ID, Quantity: qty, Price: p.Price})
		order.Price = order.Price.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return order
}

// Statuses walks order through the whole lifecycle, one to three minutes
// per step.
func (g *Generator) Statuses(order models.Order) []models.OrderStatus {
	at := order.CreatedAt.Time
	out := make([]models.OrderStatus, 0, len(models.Statuses))
	for i, s := range models.Statuses {
		if i > 0 {
			at = at.Add(time.Minute + time.Duration(g.rng.Int64N(int64(2*time.Minute))))
		}
		out = append(out, models.OrderStatus{ID: order.ID, UpdatedAt: models.NewTimestamp(at), Status: s})
	}
	return out
}

// changeEvent mirrors the connector's envelope for an insert.
type changeEvent struct {
	Before *models.Product `json:"before"`
	After  *models.Product `json:"after"`
	Op     string          `json:"op"`
}

type keyDoc struct {
	ID models.ID `json:"id"`
}

type encoder interface {
	Encode(v any) ([]byte, error)
}

// Publisher writes generated records to the input topics.
type Publisher struct {
	gen      *Generator
	producer broker.Producer
	codec    encoder
	topics   config.TopicsConfig
	log      logger.Logger
}

func NewPublisher(gen *Generator, producer broker.Producer, codec encoder, topics config.TopicsConfig, log logger.Logger) *Publisher {
	return &Publisher{gen: gen, producer: producer, codec: codec, topics: topics, log: log}
}

func (p *Publisher) publish(ctx context.Context, topic string, key []byte, value any) error {
	v, err := p.codec.Encode(value)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, broker.Message{Topic: topic, Key: key, Value: v})
}

// Catalog publishes every product as a change event.
func (p *Publisher) Catalog(ctx context.Context) error {
	for i := range p.gen.products {
		product := p.gen.products[i]
		key, err := p.codec.Encode(keyDoc{ID: product.ID})
		if err != nil {
			return err
		}
		if err := p.publish(ctx, p.topics.Products, key, changeEvent{After: &product, Op: "c"}); err != nil {
			return fmt.Errorf("publish product %s: %w", product.ID, err)
		}
	}
	return nil
}

// Orders publishes orders at rps, each followed by its status transitions,
// until ctx is done or limit orders have been sent. limit <= 0 means no
// limit.
func (p *Publisher) Orders(ctx context.Context, rps float64, limit int) (int, error) {
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	sent := 0
	for limit <= 0 || sent < limit {
		if err := limiter.Wait(ctx); err != nil {
			return sent, err
		}

		order := p.gen.Order(time.Now())
		if err := p.publish(ctx, p.topics.Orders, []byte(order.ID), order); err != nil {
			return sent, fmt.Errorf("publish order %s: %w", order.ID, err)
		}
		for _, s := range p.gen.Statuses(order) {
			if err := p.publish(ctx, p.topics.OrderStatuses, []byte(s.ID), s); err != nil {
				return sent, fmt.Errorf("publish status %s: %w", s.ID, err)
			}
		}
		sent++

		if sent%100 == 0 {
			p.log.Infow("Orders published", "count", sent)
		}
	}
	return sent, nil
}
