// Package statusjoin pairs orders with their status updates when the two
// happened close enough in time.
package statusjoin

import (
	"time"

	"pizzastream/pkg/metrics"
	"pizzastream/pkg/models"
	"pizzastream/pkg/stream"
)

// JoinWindow pairs an order at t with statuses in [t-Before, t+After].
// Records stay joinable for Grace after their window closes.
type JoinWindow struct {
	Before time.Duration
	After  time.Duration
	Grace  time.Duration
}

func (w JoinWindow) contains(orderTime, statusTime time.Time) bool {
	return !statusTime.Before(orderTime.Add(-w.Before)) && !statusTime.After(orderTime.Add(w.After))
}

// retention is how long a buffered record can still meet a partner that is
// not itself late.
func (w JoinWindow) retention() time.Duration {
	return w.Before + w.After + w.Grace
}

type entry[T any] struct {
	ts    time.Time
	value T
}

type buffers struct {
	orders   []entry[models.Order]
	statuses []entry[models.OrderStatus]
}

// Joiner holds the join state of one partition. It is not safe for
// concurrent use; the partition runner serializes access.
type Joiner struct {
	partition  int
	window     JoinWindow
	streamTime time.Time
	keys       map[models.ID]*buffers

	bufferedOrders   int
	bufferedStatuses int
}

func NewJoiner(partition int, window JoinWindow) *Joiner {
	return &Joiner{
		partition: partition,
		window:    window,
		keys:      make(map[models.ID]*buffers),
	}
}

// ProcessOrder buffers order and joins it with every buffered status of
// the same order that falls inside the window.
func (j *Joiner) ProcessOrder(order models.Order) []stream.Outcome[models.EnrichedOrder] {
	ts := order.CreatedAt.Time
	j.advance(ts)

	if ts.Add(j.window.After + j.window.Grace).Before(j.streamTime) {
		return []stream.Outcome[models.EnrichedOrder]{stream.Unmatched[models.EnrichedOrder](stream.ReasonExpired)}
	}

	j.purge(order.ID)
	b := j.buffersFor(order.ID)
	b.orders = append(b.orders, entry[models.Order]{ts: ts, value: order})
	j.bufferedOrders++

	var out []stream.Outcome[models.EnrichedOrder]
	for _, s := range b.statuses {
		if j.window.contains(ts, s.ts) {
			out = append(out, stream.Matched(models.NewEnrichedOrder(order, s.value)))
		}
	}
	j.report()
	return orNoPartner(out)
}

// ProcessStatus buffers status and joins it with every buffered order it
// falls inside the window of.
func (j *Joiner) ProcessStatus(status models.OrderStatus) []stream.Outcome[models.EnrichedOrder] {
	ts := status.UpdatedAt.Time
	j.advance(ts)

	// Seen from the status side the window is mirrored, so Before bounds lateness.
	if ts.Add(j.window.Before + j.window.Grace).Before(j.streamTime) {
		return []stream.Outcome[models.EnrichedOrder]{stream.Unmatched[models.EnrichedOrder](stream.ReasonExpired)}
	}

	j.purge(status.ID)
	b := j.buffersFor(status.ID)
	b.statuses = append(b.statuses, entry[models.OrderStatus]{ts: ts, value: status})
	j.bufferedStatuses++

	var out []stream.Outcome[models.EnrichedOrder]
	for _, o := range b.orders {
		if j.window.contains(o.ts, ts) {
			out = append(out, stream.Matched(models.NewEnrichedOrder(o.value, status)))
		}
	}
	j.report()
	return orNoPartner(out)
}

// Sweep drops every buffered record that can no longer join and returns how
// many were dropped.
func (j *Joiner) Sweep() int {
	dropped := 0
	for id, b := range j.keys {
		dropped += j.purgeKey(id, b)
	}
	j.report()
	return dropped
}

func (j *Joiner) StreamTime() time.Time {
	return j.streamTime
}

// Buffered returns the number of buffered orders and statuses.
func (j *Joiner) Buffered() (orders, statuses int) {
	return j.bufferedOrders, j.bufferedStatuses
}

func (j *Joiner) advance(ts time.Time) {
	if ts.After(j.streamTime) {
		j.streamTime = ts
	}
}

func (j *Joiner) buffersFor(id models.ID) *buffers {
	b, ok := j.keys[id]
	if !ok {
		b = &buffers{}
		j.keys[id] = b
	}
	return b
}

func (j *Joiner) purge(id models.ID) {
	if b, ok := j.keys[id]; ok {
		j.purgeKey(id, b)
	}
}

func (j *Joiner) purgeKey(id models.ID, b *buffers) int {
	cutoff := j.streamTime.Add(-j.window.retention())

	keptOrders := b.orders[:0]
	for _, o := range b.orders {
		if !o.ts.Before(cutoff) {
			keptOrders = append(keptOrders, o)
		}
	}
	droppedOrders := len(b.orders) - len(keptOrders)
	clear(b.orders[len(keptOrders):])
	b.orders = keptOrders

	keptStatuses := b.statuses[:0]
	for _, s := range b.statuses {
		if !s.ts.Before(cutoff) {
			keptStatuses = append(keptStatuses, s)
		}
	}
	droppedStatuses := len(b.statuses) - len(keptStatuses)
	clear(b.statuses[len(keptStatuses):])
	b.statuses = keptStatuses

	j.bufferedOrders -= droppedOrders
	j.bufferedStatuses -= droppedStatuses

	if len(b.orders) == 0 && len(b.statuses) == 0 {
		delete(j.keys, id)
	}
	return droppedOrders + droppedStatuses
}

func (j *Joiner) report() {
	metrics.SetStatusJoinBuffered(j.partition, "orders", j.bufferedOrders)
	metrics.SetStatusJoinBuffered(j.partition, "statuses", j.bufferedStatuses)
}

func orNoPartner(out []stream.Outcome[models.EnrichedOrder]) []stream.Outcome[models.EnrichedOrder] {
	if len(out) == 0 {
		return []stream.Outcome[models.EnrichedOrder]{stream.Unmatched[models.EnrichedOrder](stream.ReasonNoPartner)}
	}
	return out
}
