// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Next after the consumer has closed the
// stream.
var ErrClosed = errors.New("stream: closed")

// Source is a lazy, non-restartable, single-consumer sequence.
//
// Next returns io.EOF when the sequence completes normally. Any other
// non-context error is terminal. A context error only abandons that
// call; the source remains usable.
//
// Close may be called from any goroutine, including while another
// goroutine is blocked in Next. It is idempotent.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// Queue is an unbounded FIFO with a single consumer. Producers call
// Push and Finish and never block; the consumer calls Next. Queue
// implements Source.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	err    error
	closed bool

	// ready has capacity 1. Producers do a non-blocking send after
	// every state change so a waiting consumer re-checks.
	ready chan struct{}
}

// NewQueue returns an empty, open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends value. Returns false if the queue has already been
// finished or closed, in which case value is discarded.
func (q *Queue[T]) Push(value T) bool {
	q.mu.Lock()
	if q.closed || q.err != nil {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, value)
	q.mu.Unlock()
	q.signal()
	return true
}

// Finish terminates the queue with err, which Next returns after all
// previously pushed values have been consumed. Pass io.EOF for normal
// completion. Only the first call has any effect; Finish reports
// whether it was that call.
func (q *Queue[T]) Finish(err error) bool {
	if err == nil {
		err = io.EOF
	}
	q.mu.Lock()
	if q.closed || q.err != nil {
		q.mu.Unlock()
		return false
	}
	q.err = err
	q.mu.Unlock()
	q.signal()
	return true
}

// Next returns the oldest pending value, blocking until one is
// available, the queue is finished, the queue is closed, or ctx ends.
func (q *Queue[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		if len(q.items) > 0 {
			value := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return value, nil
		}
		if q.err != nil {
			err := q.err
			q.mu.Unlock()
			return zero, err
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close releases the consumer side. Pending values are discarded and
// later pushes are rejected.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
	return nil
}

// Len returns the number of values waiting to be consumed.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// FromSlice returns a Source that yields values in order and then
// completes.
func FromSlice[T any](values ...T) Source[T] {
	queue := NewQueue[T]()
	queue.items = append(queue.items, values...)
	queue.err = io.EOF
	return queue
}

// Fail returns a Source whose first Next returns err.
func Fail[T any](err error) Source[T] {
	queue := NewQueue[T]()
	queue.err = err
	return queue
}
