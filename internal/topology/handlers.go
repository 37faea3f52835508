package topology

import (
	"context"
	"fmt"
	"time"

	"pizzastream/internal/broker"
	"pizzastream/internal/constants"
	"pizzastream/internal/router"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
	"pizzastream/pkg/retry"
	"pizzastream/pkg/stream"
)

var publishPolicy = retry.Policy{
	MaxAttempts:     5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      2.0,
}

// HandleItems maintains the catalog table from the products changelog and
// hydrates every item of an order with the product row current right now.
func (t *Topology) HandleItems(ctx context.Context, rec broker.Record) (err error) {
	defer t.observe(constants.PipelineItems, rec.Topic, time.Now(), &err)

	switch rec.Topic {
	case t.topics.Products:
		id, product, err := t.codec.DecodeProduct(rec.Key, rec.Value)
		if err != nil {
			return err
		}
		return t.catalog.Apply(ctx, id, product)

	case t.topics.Orders:
		order, err := t.codec.DecodeOrder(rec.Value)
		if err != nil {
			return err
		}

		var hydrated []broker.Message
		for productID, item := range router.Items(order) {
			out, err := t.catalog.Join(ctx, models.ID(productID), item)
			if err != nil {
				return err
			}
			value, ok := out.Get()
			if !ok {
				t.log.DebugwCtx(ctx, "Order item dropped",
					"order_id", order.ID,
					"product_id", productID,
					"reason", out.Reason(),
				)
				continue
			}
			msg, err := t.message(t.topics.EnrichedOrderItems, productID, value)
			if err != nil {
				return err
			}
			hydrated = append(hydrated, msg)
		}
		return t.publish(ctx, hydrated)

	default:
		return unexpectedTopic(rec.Topic)
	}
}

// HandleStatuses feeds both sides of the status join.
func (t *Topology) HandleStatuses(ctx context.Context, rec broker.Record) (err error) {
	defer t.observe(constants.PipelineStatuses, rec.Topic, time.Now(), &err)

	var outcomes []stream.Outcome[models.EnrichedOrder]
	switch rec.Topic {
	case t.topics.Orders:
		order, err := t.codec.DecodeOrder(rec.Value)
		if err != nil {
			return err
		}
		if outcomes, err = t.statuses.Order(ctx, order); err != nil {
			return err
		}

	case t.topics.OrderStatuses:
		status, err := t.codec.DecodeOrderStatus(rec.Value)
		if err != nil {
			return err
		}
		if outcomes, err = t.statuses.Status(ctx, status); err != nil {
			return err
		}

	default:
		return unexpectedTopic(rec.Topic)
	}

	var enriched []broker.Message
	for _, out := range outcomes {
		value, ok := out.Get()
		if !ok {
			metrics.IncJoinUnmatched(metrics.StageStatusJoin, string(out.Reason()))
			if out.Reason() == stream.ReasonExpired {
				metrics.AddLateRecords(metrics.StageStatusJoin, 1)
			}
			t.log.DebugwCtx(ctx, "No enriched order emitted", "reason", out.Reason())
			continue
		}
		metrics.IncJoinMatched(metrics.StageStatusJoin)
		msg, err := t.message(t.topics.EnrichedOrders, value.ID.String(), value)
		if err != nil {
			return err
		}
		enriched = append(enriched, msg)
	}
	return t.publish(ctx, enriched)
}

// HandleRevenue adds every order to the hopping windows.
func (t *Topology) HandleRevenue(ctx context.Context, rec broker.Record) (err error) {
	defer t.observe(constants.PipelineRevenue, rec.Topic, time.Now(), &err)

	if rec.Topic != t.topics.Orders {
		return unexpectedTopic(rec.Topic)
	}

	order, err := t.codec.DecodeOrder(rec.Value)
	if err != nil {
		return err
	}

	res, err := t.aggregator.Add(ctx, order)
	if err != nil {
		return err
	}
	if res.Updated == 0 {
		t.log.DebugwCtx(ctx, "Order outside every open window",
			"order_id", order.ID,
			"late_windows", res.Late,
		)
	}
	return nil
}

func (t *Topology) message(topic, key string, v any) (broker.Message, error) {
	value, err := t.codec.Encode(v)
	if err != nil {
		return broker.Message{}, retry.NewFatalError(err)
	}
	return broker.Message{Topic: topic, Key: []byte(key), Value: value}, nil
}

// publish retries each output on its own. Once the join has consumed a
// record its state has moved on, so a failure that survives the retries is
// fatal rather than a reason to run the join again.
func (t *Topology) publish(ctx context.Context, msgs []broker.Message) error {
	for _, msg := range msgs {
		err := retry.Retry(ctx, publishPolicy, func() error {
			return t.producer.Publish(ctx, msg)
		})
		if err != nil {
			return retry.NewFatalError(fmt.Errorf("publish to %s: %w", msg.Topic, err))
		}
	}
	return nil
}

func (t *Topology) observe(pipeline, topic string, start time.Time, err *error) {
	metrics.ObserveStreamProcessing(pipeline, time.Since(start))
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.IncStreamRecord(pipeline, topic, status)
}

func unexpectedTopic(topic string) error {
	return retry.NewFatalError(fmt.Errorf("unexpected topic %q", topic))
}
