// Package stream holds the building blocks shared by the stream stages:
// join outcomes, key partitioning and the per-partition runner.
package stream

// Reason says why a join input produced no output.
type Reason string

const (
	// ReasonNoTableEntry: a stream-table join found no row for the key.
	ReasonNoTableEntry Reason = "no_table_entry"
	// ReasonNoPartner: a windowed join found nothing to pair with yet.
	ReasonNoPartner Reason = "no_partner"
	// ReasonExpired: the record arrived after its join window closed.
	ReasonExpired Reason = "expired"
)

// Outcome is the result of offering one record to a join. Unmatched
// outcomes are dropped at the pipeline boundary; they are never errors.
type Outcome[T any] struct {
	value   T
	reason  Reason
	matched bool
}

func Matched[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, matched: true}
}

func Unmatched[T any](reason Reason) Outcome[T] {
	return Outcome[T]{reason: reason}
}

func (o Outcome[T]) IsMatched() bool {
	return o.matched
}

// Get returns the joined value and whether there was one.
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.matched
}

// Reason is empty for matched outcomes.
func (o Outcome[T]) Reason() Reason {
	return o.reason
}
