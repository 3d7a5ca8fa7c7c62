// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
)

// Filter returns a Source yielding only the values of upstream for
// which keep returns true.
func Filter[T any](upstream Source[T], keep func(T) bool) Source[T] {
	return &operator[T, T]{
		upstream: upstream,
		step: func(value T) (T, bool, error) {
			return value, keep(value), nil
		},
	}
}

// Map returns a Source yielding transform applied to each value of
// upstream. An error from transform is terminal.
func Map[T, U any](upstream Source[T], transform func(T) (U, error)) Source[U] {
	return &operator[T, U]{
		upstream: upstream,
		step: func(value T) (U, bool, error) {
			result, err := transform(value)
			return result, err == nil, err
		},
	}
}

// Scan returns a Source that folds each value of upstream into an
// accumulator, starting from seed, and yields the accumulator after
// every step. An error from accumulate is terminal.
//
// The accumulator is handed back to accumulate on the next step, so
// accumulate must not mutate a value it has already returned if
// consumers retain emitted results.
func Scan[T, A any](upstream Source[T], seed A, accumulate func(A, T) (A, error)) Source[A] {
	accumulator := seed
	return &operator[T, A]{
		upstream: upstream,
		step: func(value T) (A, bool, error) {
			next, err := accumulate(accumulator, value)
			if err != nil {
				var zero A
				return zero, false, err
			}
			accumulator = next
			return next, true, nil
		},
	}
}

// operator is the shared implementation of Filter, Map, and Scan.
// step returns the output value, whether to emit it, and a terminal
// error.
type operator[T, U any] struct {
	upstream Source[T]
	step     func(T) (U, bool, error)

	// err is sticky once set. Only the Next goroutine touches it.
	err error
}

func (o *operator[T, U]) Next(ctx context.Context) (U, error) {
	var zero U
	if o.err != nil {
		return zero, o.err
	}
	for {
		value, err := o.upstream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return zero, err
			}
			o.err = err
			return zero, err
		}
		result, emit, err := o.step(value)
		if err != nil {
			o.err = err
			o.upstream.Close()
			return zero, err
		}
		if emit {
			return result, nil
		}
	}
}

func (o *operator[T, U]) Close() error {
	return o.upstream.Close()
}
