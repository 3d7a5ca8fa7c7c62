// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay forwards modifications from an upstream replication
// feed into the store.
//
// The upstream bus interleaves many replication sessions on channels
// that share a namespace. A [Relay] subscribes with a glob pattern,
// adopts the channel of the first message it sees, and from then on
// forwards only that channel's messages. The choice is made with a
// compare-and-swap, so when messages on different channels race to be
// first exactly one wins. A relay never re-latches; serving several
// upstream sessions takes several relays.
//
// Each payload is a fixed-size opaque header followed by an envelope
// whose "data" field carries the modification. The envelope is JSON by
// default or CBOR when configured. If "data" is a string, the string's
// contents are the modification; otherwise the field's value is.
//
// Messages on other channels are dropped silently. Messages that fail
// to decode are logged and dropped; the relay keeps going.
//
// [RedisFeed] is the production [Feed]. [MemoryFeed] is an in-process
// feed with the same pattern semantics, used in tests and local runs.
package relay
