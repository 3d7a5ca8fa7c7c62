// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the hierarchical store contract the relay is
// built against, and provides Tree, an in-memory implementation of it.
//
// The contract has three parts:
//
//   - [Reference] is a handle to one slash-separated path. Value reads
//     a one-shot [Snapshot]; Changes returns a lazy stream of
//     [ChangeEvent] values for that path, restricted to an [EventSet].
//   - [Intake] is the single write path. It accepts
//     [AttributedModification] values fire-and-forget: no
//     acknowledgement, no backpressure.
//   - Every modification carries a [Source] (Local or Remote), and
//     every live change event reports the source of the modification
//     that caused it.
//
// # Modifications
//
// A [Modification] is a JSON object mapping paths to new values, in
// the style of a multi-location update:
//
//	{"whiteboard/pages/p7": {"paperType": 2}, "drawablesData/p7/s1": null}
//
// A null value deletes the node. Nodes whose children are all deleted
// disappear. The whole modification applies atomically: an invalid
// path anywhere rejects all of it.
//
// # Change streams
//
// A change stream attaches to the tree on its first Next call. On
// attach it first replays the current state: one ChildAdded per
// existing child (in key order) and one ValueChanged with the current
// value, each marked Replayed. Live events follow in store-applied
// order. Per modification, events for one path are emitted as
// ChildRemoved, ChildAdded, ChildChanged (each in key order), then
// ValueChanged.
//
// Tree stores values copy-on-write, so a Snapshot stays valid and
// unchanged after later modifications.
package store
