// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
)

// ErrInvalidPath is returned for paths containing characters the
// store does not allow in keys.
var ErrInvalidPath = errors.New("store: invalid path")

// ErrInvalidModification is reported for modifications that are not a
// JSON object of path to value.
var ErrInvalidModification = errors.New("store: invalid modification")

// Source identifies where a modification was authored.
type Source int

const (
	// Local modifications were authored by this process or its
	// clients.
	Local Source = iota
	// Remote modifications were replicated from an upstream feed.
	Remote
)

func (s Source) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Modification is an encoded change destined for the store. See the
// package documentation for its format.
type Modification []byte

// AttributedModification is a modification tagged with its origin.
// Every value entering an Intake carries one.
type AttributedModification struct {
	Source       Source
	Modification Modification
}

// Intake is the store's single write path.
type Intake interface {
	// Submit applies m. It never blocks on consumers and reports no
	// result; invalid modifications are logged and dropped.
	Submit(m AttributedModification)
}

// EventType classifies a change notification.
type EventType int

const (
	ChildAdded EventType = iota
	ChildChanged
	ChildRemoved
	ValueChanged
)

func (t EventType) String() string {
	switch t {
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	case ChildRemoved:
		return "child_removed"
	case ValueChanged:
		return "value_changed"
	default:
		return "unknown"
	}
}

// EventSet is a set of event types.
type EventSet uint8

// Events returns the set containing types.
func Events(types ...EventType) EventSet {
	var set EventSet
	for _, eventType := range types {
		set |= 1 << eventType
	}
	return set
}

// Has reports whether eventType is in the set.
func (s EventSet) Has(eventType EventType) bool {
	return s&(1<<eventType) != 0
}

// ChangeEvent is one notification from a change stream.
type ChangeEvent struct {
	Type EventType

	// Path is the path of the reference the stream was opened on.
	Path string

	// Value is the affected node: the child for child events (keyed by
	// the child's name), or the referenced node itself for
	// ValueChanged. For ChildRemoved it holds the value before removal.
	Value Snapshot

	// Source is the origin of the modification that caused the event.
	// Meaningless when Replayed is true.
	Source Source

	// Replayed is true for events synthesized from existing state when
	// the stream attached.
	Replayed bool
}

// Reference is a handle to one addressable node.
type Reference interface {
	// Path returns the normalized slash-separated path.
	Path() string

	// Key returns the last path segment, or "" for the root.
	Key() string

	// Value reads the node's current value.
	Value(ctx context.Context) (Snapshot, error)

	// Changes returns a lazy, non-restartable stream of events at this
	// path, restricted to types. Nothing is registered with the store
	// until the first Next call. Close detaches it.
	Changes(types EventSet) stream.Source[ChangeEvent]
}

// splitPath normalizes path into segments, dropping empty segments
// produced by leading, trailing, or doubled slashes.
func splitPath(path string) ([]string, error) {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if strings.ContainsAny(segment, ".#$[]") {
			return nil, fmt.Errorf("%w: segment %q of %q", ErrInvalidPath, segment, path)
		}
		segments = append(segments, segment)
	}
	return segments, nil
}
