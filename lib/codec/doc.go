// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the relay's shared CBOR configuration.
//
// Serialization formats have a clear boundary:
//
//   - JSON for client-facing interfaces: websocket actions and store
//     modifications.
//   - CBOR for upstream replication payloads when the feed is
//     configured with format "cbor".
//
// The decoder maps CBOR maps onto map[string]any rather than the CBOR
// default of map[any]any, so decoded documents can be re-encoded as
// JSON and handed to the store without conversion. [ToJSON] does that
// in one step.
//
// The struct tag on a type documents its serialization format: a `cbor`
// tag means CBOR only; a `json` tag means both, since fxamacker/cbor
// reads `json` tags as a fallback. Never put both tags on one field.
package codec
