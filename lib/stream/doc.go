// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream provides the two delivery primitives used between
// relay components, plus a small operator algebra over them.
//
// [Broadcast] is hot and push-based: Publish delivers a value to every
// subscriber attached at that moment, with no replay for late
// subscribers. Complete ends the broadcast for all current subscribers
// exactly once. A subscriber is a [Subscription], which is itself a
// [Source], so consumers read a broadcast the same way they read any
// other stream.
//
// [Source] is lazy and pull-based: Next blocks until the next value is
// available, the stream completes (io.EOF), the stream fails (any
// other error, sticky thereafter), or the caller's context ends.
// Sources are non-restartable and single-consumer. Close releases the
// source; after Close returns no further values are delivered and Next
// returns [ErrClosed].
//
// Producers never block: every Source backed by this package buffers
// through an unbounded [Queue], so a slow consumer delays only itself.
//
// Operators compose sources without goroutines:
//
//	changes := ref.Changes(store.Events(store.ChildAdded))
//	pages := stream.Scan(changes, []Page{}, appendPage)
//	for {
//	    snapshot, err := pages.Next(ctx)
//	    ...
//	}
//
// [Filter] drops values, [Map] transforms them, and [Scan] folds them
// into an accumulator and emits every intermediate result. An error
// returned by a Map or Scan function is terminal for that stream: it
// is returned from Next, the upstream source is closed, and every
// subsequent Next returns the same error.
package stream
