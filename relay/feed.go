// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
)

// Message is one delivery from the upstream bus.
type Message struct {
	// Channel is the concrete channel the message was published on,
	// not the pattern that matched it.
	Channel string
	Payload []byte
}

// Feed is a pattern-subscribable publish/subscribe bus.
type Feed interface {
	// Subscribe starts delivery of messages on every channel matching
	// pattern. The returned channel is closed when ctx is cancelled or
	// the feed shuts down. An error means the subscription was never
	// established.
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
}

// RedisFeed is a Feed backed by Redis PSUBSCRIBE.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisFeed connects to the Redis server at url (a redis:// or
// rediss:// URL) and verifies the connection.
func NewRedisFeed(ctx context.Context, url string, logger *slog.Logger) (*RedisFeed, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", options.Addr, err)
	}
	return &RedisFeed{client: client, logger: logger}, nil
}

// Subscribe issues PSUBSCRIBE and waits for the server to confirm it.
func (f *RedisFeed) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	pubsub := f.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("psubscribe %q: %w", pattern, err)
	}

	messages := make(chan Message)
	go func() {
		defer close(messages)
		defer pubsub.Close()
		deliveries := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					f.logger.Warn("redis subscription channel closed", "pattern", pattern)
					return
				}
				select {
				case messages <- Message{Channel: delivery.Channel, Payload: []byte(delivery.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return messages, nil
}

// Publish sends payload on channel.
func (f *RedisFeed) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %q: %w", channel, err)
	}
	return nil
}

// Close closes the Redis client and every subscription made through it.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}

// MemoryFeed is an in-process Feed. Patterns use path.Match syntax,
// which agrees with Redis glob patterns for channels without slashes.
type MemoryFeed struct {
	mu          sync.Mutex
	subscribers map[*memorySubscriber]struct{}
	closed      bool
}

type memorySubscriber struct {
	pattern string
	queue   *stream.Queue[Message]
}

// NewMemoryFeed returns a feed with no subscribers.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subscribers: make(map[*memorySubscriber]struct{})}
}

// Subscribe registers pattern. Delivery is unbounded: Publish never
// blocks on a slow subscriber.
func (f *MemoryFeed) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	subscriber := &memorySubscriber{pattern: pattern, queue: stream.NewQueue[Message]()}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, errors.New("memory feed is closed")
	}
	f.subscribers[subscriber] = struct{}{}
	f.mu.Unlock()

	messages := make(chan Message)
	go func() {
		defer close(messages)
		defer f.remove(subscriber)
		for {
			message, err := subscriber.queue.Next(ctx)
			if err != nil {
				return
			}
			select {
			case messages <- message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return messages, nil
}

// Publish delivers payload to every subscriber whose pattern matches
// channel and returns how many received it.
func (f *MemoryFeed) Publish(channel string, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	delivered := 0
	for subscriber := range f.subscribers {
		if matched, _ := path.Match(subscriber.pattern, channel); !matched {
			continue
		}
		if subscriber.queue.Push(Message{Channel: channel, Payload: append([]byte(nil), payload...)}) {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount returns the number of live subscriptions.
func (f *MemoryFeed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Close ends every subscription after its queued messages drain.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for subscriber := range f.subscribers {
		subscriber.queue.Finish(nil)
	}
	return nil
}

func (f *MemoryFeed) remove(subscriber *memorySubscriber) {
	f.mu.Lock()
	delete(f.subscribers, subscriber)
	f.mu.Unlock()
	subscriber.queue.Close()
}
