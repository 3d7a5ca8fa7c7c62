// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"io"
	"sync"
)

// Topic is the publish side of a hot stream, as handed to code that
// may publish and observe but must not end the stream. *Broadcast
// implements Topic.
type Topic[T any] interface {
	// Publish delivers value to every current subscriber. Returns
	// false once the stream has completed.
	Publish(value T) bool

	// Subscribe attaches a new observer. The observer sees only values
	// published after this call.
	Subscribe() *Subscription[T]
}

// Broadcast is a hot multicast point. Values are delivered to all
// subscribers attached at publish time, in publish order. There is no
// replay: a late subscriber sees only later values.
//
// Broadcast is safe for concurrent use.
type Broadcast[T any] struct {
	mu          sync.Mutex
	subscribers map[*Subscription[T]]struct{}
	completed   bool
}

// NewBroadcast returns an open broadcast with no subscribers.
func NewBroadcast[T any]() *Broadcast[T] {
	return &Broadcast[T]{subscribers: make(map[*Subscription[T]]struct{})}
}

// Publish delivers value to every current subscriber. Returns false
// after Complete. Publish never blocks on a slow subscriber.
func (b *Broadcast[T]) Publish(value T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return false
	}
	// Pushing under the lock keeps concurrent publishers from
	// interleaving differently for different subscribers.
	for subscriber := range b.subscribers {
		subscriber.queue.Push(value)
	}
	return true
}

// Subscribe attaches a new observer. Subscribing to a completed
// broadcast yields a subscription whose first Next returns io.EOF.
func (b *Broadcast[T]) Subscribe() *Subscription[T] {
	subscription := &Subscription[T]{
		queue:     NewQueue[T](),
		broadcast: b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		subscription.queue.Finish(io.EOF)
		return subscription
	}
	b.subscribers[subscription] = struct{}{}
	return subscription
}

// Complete ends the broadcast. Every current subscriber receives
// io.EOF after draining the values already delivered to it. Only the
// first call has any effect; Complete reports whether it was that
// call.
func (b *Broadcast[T]) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return false
	}
	b.completed = true
	for subscriber := range b.subscribers {
		subscriber.queue.Finish(io.EOF)
	}
	clear(b.subscribers)
	return true
}

// Completed reports whether Complete has been called.
func (b *Broadcast[T]) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// SubscriberCount returns the number of attached subscribers.
func (b *Broadcast[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcast[T]) remove(subscription *Subscription[T]) {
	b.mu.Lock()
	delete(b.subscribers, subscription)
	b.mu.Unlock()
}

// Subscription is one observer of a Broadcast. It implements Source.
type Subscription[T any] struct {
	queue     *Queue[T]
	broadcast *Broadcast[T]
}

// Next returns the next published value, io.EOF once the broadcast
// has completed and all earlier values were read, or ErrClosed after
// Close.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	return s.queue.Next(ctx)
}

// Close detaches the subscription. Delivery stops immediately: values
// published after Close are not seen, and values still buffered are
// discarded.
func (s *Subscription[T]) Close() error {
	s.broadcast.remove(s)
	return s.queue.Close()
}
