// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/whiteboard-relay/lib/codec"
	"github.com/bureau-foundation/whiteboard-relay/store"
)

var (
	// ErrShortPayload is returned by DecodePayload for payloads that
	// end inside the header.
	ErrShortPayload = errors.New("relay: payload shorter than header")

	// ErrMissingData is returned by DecodePayload for envelopes without
	// a non-null "data" field.
	ErrMissingData = errors.New("relay: envelope has no data field")

	// ErrInvalidData is returned by DecodePayload when a string "data"
	// field does not hold JSON text.
	ErrInvalidData = errors.New("relay: data field is not JSON text")

	// ErrFeedClosed is returned by Run when the feed ends delivery
	// before the relay's context is cancelled.
	ErrFeedClosed = errors.New("relay: feed closed")
)

// Format is the encoding of the envelope that follows the header.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Defaults used by the binary's configuration.
const (
	DefaultPattern    = "test:tutsess.*"
	DefaultHeaderSize = 4
)

// Config holds a relay's collaborators and wire settings.
type Config struct {
	Feed   Feed
	Intake store.Intake

	// Pattern is the glob subscribed on the feed.
	Pattern string

	// HeaderSize is the number of opaque bytes preceding the envelope.
	HeaderSize int

	// Format defaults to FormatJSON.
	Format Format

	Logger *slog.Logger
}

// Stats is a point-in-time view of a relay's counters.
type Stats struct {
	// Channel is the latched channel, or "" before the first message.
	Channel string

	// Forwarded counts modifications submitted to the intake. The store
	// may still reject one that is valid JSON but not a valid update.
	Forwarded uint64

	// Mismatched counts messages from channels other than Channel.
	Mismatched uint64

	// DecodeFaults counts payloads dropped before submission.
	DecodeFaults uint64
}

// Relay latches onto one upstream channel and forwards its
// modifications into the store intake.
type Relay struct {
	config Config

	channel atomic.Pointer[string]

	forwarded    atomic.Uint64
	mismatched   atomic.Uint64
	decodeFaults atomic.Uint64
}

// New validates config and returns a relay that has not subscribed yet.
func New(config Config) (*Relay, error) {
	if config.Feed == nil {
		return nil, errors.New("relay: feed is required")
	}
	if config.Intake == nil {
		return nil, errors.New("relay: intake is required")
	}
	if config.Pattern == "" {
		return nil, errors.New("relay: pattern is required")
	}
	if config.HeaderSize < 0 {
		return nil, fmt.Errorf("relay: negative header size %d", config.HeaderSize)
	}
	switch config.Format {
	case "":
		config.Format = FormatJSON
	case FormatJSON, FormatCBOR:
	default:
		return nil, fmt.Errorf("relay: unknown format %q", config.Format)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Relay{config: config}, nil
}

// Run subscribes to the feed and handles messages until ctx is
// cancelled. Failing to subscribe is returned immediately; per-message
// faults are not.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.config.Feed.Subscribe(ctx, r.config.Pattern)
	if err != nil {
		return fmt.Errorf("subscribing to upstream feed: %w", err)
	}
	r.config.Logger.Info("relay subscribed", "pattern", r.config.Pattern, "format", string(r.config.Format))

	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrFeedClosed
			}
			r.Handle(message)
		}
	}
}

// Handle processes one upstream message. It is safe to call from
// several goroutines at once.
func (r *Relay) Handle(message Message) {
	if !r.latch(message.Channel) {
		r.mismatched.Add(1)
		r.config.Logger.Debug("ignoring message from another channel", "channel", message.Channel)
		return
	}

	modification, err := DecodePayload(message.Payload, r.config.HeaderSize, r.config.Format)
	if err != nil {
		r.decodeFaults.Add(1)
		r.config.Logger.Warn("dropping undecodable upstream message",
			"channel", message.Channel,
			"error", err,
		)
		return
	}

	r.config.Intake.Submit(store.AttributedModification{
		Source:       store.Remote,
		Modification: modification,
	})
	r.forwarded.Add(1)
}

// latch reports whether channel is the latched channel, adopting it if
// nothing has been latched yet.
func (r *Relay) latch(channel string) bool {
	if r.channel.CompareAndSwap(nil, &channel) {
		r.config.Logger.Info("latched upstream channel", "channel", channel)
		return true
	}
	return *r.channel.Load() == channel
}

// Channel returns the latched channel, or "" if none.
func (r *Relay) Channel() string {
	if latched := r.channel.Load(); latched != nil {
		return *latched
	}
	return ""
}

// Stats returns the relay's counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Channel:      r.Channel(),
		Forwarded:    r.forwarded.Load(),
		Mismatched:   r.mismatched.Load(),
		DecodeFaults: r.decodeFaults.Load(),
	}
}

// DecodePayload strips headerSize bytes from payload and extracts the
// modification from the envelope's "data" field.
func DecodePayload(payload []byte, headerSize int, format Format) (store.Modification, error) {
	if len(payload) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header is %d", ErrShortPayload, len(payload), headerSize)
	}
	body := payload[headerSize:]

	var data json.RawMessage
	switch format {
	case FormatCBOR:
		var envelope map[string]codec.RawMessage
		if err := codec.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decoding cbor envelope: %w", err)
		}
		raw, ok := envelope["data"]
		if !ok {
			return nil, ErrMissingData
		}
		var text string
		if err := codec.Unmarshal(raw, &text); err == nil {
			// CBOR null decodes into a string without error.
			return modificationText(text)
		}
		converted, err := codec.ToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding cbor data field: %w", err)
		}
		data = converted
	default:
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decoding json envelope: %w", err)
		}
		data = envelope.Data
	}

	if len(data) == 0 || string(data) == "null" {
		return nil, ErrMissingData
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return modificationText(text)
	}
	return store.Modification(data), nil
}

// modificationText checks a string "data" field. An empty string is
// treated like an absent field.
func modificationText(text string) (store.Modification, error) {
	if text == "" {
		return nil, ErrMissingData
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: %.40q", ErrInvalidData, text)
	}
	return store.Modification(text), nil
}
