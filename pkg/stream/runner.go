package stream

import (
	"context"
	"errors"
	"sync"

	apperrors "pizzastream/pkg/errors"
)

var ErrRunnerClosed = errors.New("runner is closed")

type result struct {
	value any
	err   error
}

// task results travel over done, which is buffered and owned by the
// submitting call, so an abandoned call never races with its fn.
type task[S any] struct {
	fn   func(S) (any, error)
	done chan result
}

// Runner owns one state value per partition and runs every function for a
// partition on that partition's goroutine, so state never needs locking.
// Functions for the same key run in submission order.
type Runner[S any] struct {
	partitioner Partitioner
	queues      []chan task[S]
	states      []S

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner starts one goroutine per partition. newState builds the state
// owned by a partition.
func NewRunner[S any](partitions, queueSize int, newState func(partition int) S) *Runner[S] {
	p := NewPartitioner(partitions)
	r := &Runner[S]{
		partitioner: p,
		queues:      make([]chan task[S], p.Partitions()),
		states:      make([]S, p.Partitions()),
	}

	for i := range r.queues {
		r.queues[i] = make(chan task[S], queueSize)
		r.states[i] = newState(i)
		r.wg.Add(1)
		go r.loop(i)
	}

	return r
}

func (r *Runner[S]) loop(partition int) {
	defer r.wg.Done()
	state := r.states[partition]
	for t := range r.queues[partition] {
		v, err := run(t.fn, state)
		t.done <- result{value: v, err: err}
	}
}

func run[S any](fn func(S) (any, error), state S) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = apperrors.RecoverPanic(rec)
		}
	}()
	return fn(state)
}

// Call runs fn on the partition owning key and returns its result. If ctx
// ends first Call returns ctx.Err(); an already queued fn still runs and its
// result is discarded.
func Call[S, R any](ctx context.Context, r *Runner[S], key string, fn func(S) (R, error)) (R, error) {
	return call(ctx, r, r.partitioner.Partition(key), fn)
}

// Gather runs fn once on every partition, one partition at a time, and
// returns the results in partition order.
func Gather[S, R any](ctx context.Context, r *Runner[S], fn func(partition int, state S) (R, error)) ([]R, error) {
	out := make([]R, 0, len(r.queues))
	for partition := range r.queues {
		v, err := call(ctx, r, partition, func(s S) (R, error) {
			return fn(partition, s)
		})
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Do is Call for functions without a result.
func (r *Runner[S]) Do(ctx context.Context, key string, fn func(S) error) error {
	_, err := Call(ctx, r, key, func(s S) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

// Each is Gather for functions without a result.
func (r *Runner[S]) Each(ctx context.Context, fn func(partition int, state S) error) error {
	_, err := Gather(ctx, r, func(p int, s S) (struct{}, error) {
		return struct{}{}, fn(p, s)
	})
	return err
}

func call[S, R any](ctx context.Context, r *Runner[S], partition int, fn func(S) (R, error)) (R, error) {
	var zero R
	res, err := r.submit(ctx, partition, func(s S) (any, error) {
		return fn(s)
	})
	if err != nil {
		return zero, err
	}
	if res.err != nil {
		return zero, res.err
	}
	v, _ := res.value.(R)
	return v, nil
}

func (r *Runner[S]) Partitions() int {
	return len(r.queues)
}

func (r *Runner[S]) submit(ctx context.Context, partition int, fn func(S) (any, error)) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}
	t := task[S]{fn: fn, done: make(chan result, 1)}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return result{}, ErrRunnerClosed
	}
	select {
	case r.queues[partition] <- t:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return result{}, ctx.Err()
	}

	select {
	case res := <-t.done:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Close stops accepting work, drains the queued functions and waits for the
// partition goroutines to exit.
func (r *Runner[S]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, q := range r.queues {
		close(q)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
