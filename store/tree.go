// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
)

// Tree is an in-memory hierarchical store. It implements Intake, and
// its references implement Reference.
//
// Tree is safe for concurrent use. Modifications are applied one at a
// time under a single lock, which defines the store-applied order that
// change streams observe.
type Tree struct {
	logger *slog.Logger

	mu        sync.Mutex
	root      any
	listeners map[string]*pathListeners
}

// pathListeners groups the change streams attached to one path so the
// diff for that path is computed once per modification.
type pathListeners struct {
	segments []string
	streams  map[*changeStream]struct{}
}

// NewTree returns an empty tree.
func NewTree(logger *slog.Logger) *Tree {
	return &Tree{
		logger:    logger,
		listeners: make(map[string]*pathListeners),
	}
}

// Reference returns a handle to path. An invalid path yields a
// reference whose Value and Changes report ErrInvalidPath.
func (t *Tree) Reference(path string) Reference {
	segments, err := splitPath(path)
	return &treeReference{
		tree:     t,
		segments: segments,
		path:     strings.Join(segments, "/"),
		err:      err,
	}
}

// Submit applies m, logging and dropping it if it is invalid.
func (t *Tree) Submit(m AttributedModification) {
	if err := t.Apply(m); err != nil {
		t.logger.Warn("dropping modification",
			"source", m.Source.String(),
			"error", err,
		)
	}
}

// Apply applies m and reports why it was rejected, if it was.
func (t *Tree) Apply(m AttributedModification) error {
	writes, err := parseModification(m.Modification)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	previous := t.root
	current := previous
	for _, w := range writes {
		current = setPath(current, w.segments, w.value)
	}
	t.root = current
	t.notify(previous, current, m.Source)
	return nil
}

type write struct {
	path     string
	segments []string
	value    any
}

func parseModification(modification Modification) ([]write, error) {
	var update map[string]json.RawMessage
	if err := json.Unmarshal(modification, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModification, err)
	}
	if update == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidModification)
	}

	writes := make([]write, 0, len(update))
	for path, raw := range update {
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("%w: value at %q: %v", ErrInvalidModification, path, err)
		}
		value, err = normalize(value)
		if err != nil {
			return nil, fmt.Errorf("value at %q: %w", path, err)
		}
		writes = append(writes, write{path: strings.Join(segments, "/"), segments: segments, value: value})
	}
	// Ancestors sort before descendants, so a write to a parent never
	// clobbers a write to one of its children in the same update.
	sort.Slice(writes, func(i, j int) bool { return writes[i].path < writes[j].path })
	return writes, nil
}

// normalize validates keys and prunes null children and empty objects.
func normalize(value any) (any, error) {
	children, ok := value.(map[string]any)
	if !ok {
		return value, nil
	}
	pruned := make(map[string]any, len(children))
	for key, child := range children {
		if key == "" || strings.ContainsAny(key, "/.#$[]") {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidPath, key)
		}
		normalized, err := normalize(child)
		if err != nil {
			return nil, err
		}
		if normalized != nil {
			pruned[key] = normalized
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}
	return pruned, nil
}

// setPath returns a copy of node with value written at segments. Only
// the maps along the path are copied.
func setPath(node any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}
	children, _ := node.(map[string]any)
	next := make(map[string]any, len(children)+1)
	for key, child := range children {
		next[key] = child
	}
	child := setPath(children[segments[0]], segments[1:], value)
	if child == nil {
		delete(next, segments[0])
	} else {
		next[segments[0]] = child
	}
	if len(next) == 0 {
		return nil
	}
	return next
}

func lookup(node any, segments []string) any {
	for _, segment := range segments {
		children, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = children[segment]
	}
	return node
}

// notify pushes the events caused by moving from previous to current
// to every attached change stream. Must be called with t.mu held.
func (t *Tree) notify(previous, current any, source Source) {
	for path, listeners := range t.listeners {
		before := lookup(previous, listeners.segments)
		after := lookup(current, listeners.segments)
		if reflect.DeepEqual(before, after) {
			continue
		}
		events := diff(path, lastSegment(listeners.segments), before, after, source)
		for changes := range listeners.streams {
			for _, event := range events {
				if changes.types.Has(event.Type) {
					changes.queue.Push(event)
				}
			}
		}
	}
}

// diff computes the events for one path, in the order documented on
// the package.
func diff(path, key string, before, after any, source Source) []ChangeEvent {
	beforeChildren, _ := before.(map[string]any)
	afterChildren, _ := after.(map[string]any)

	var events []ChangeEvent
	for _, child := range sortedKeys(beforeChildren) {
		if _, ok := afterChildren[child]; !ok {
			events = append(events, ChangeEvent{Type: ChildRemoved, Path: path, Value: Snapshot{key: child, value: beforeChildren[child]}, Source: source})
		}
	}
	for _, child := range sortedKeys(afterChildren) {
		if _, ok := beforeChildren[child]; !ok {
			events = append(events, ChangeEvent{Type: ChildAdded, Path: path, Value: Snapshot{key: child, value: afterChildren[child]}, Source: source})
		}
	}
	for _, child := range sortedKeys(afterChildren) {
		old, ok := beforeChildren[child]
		if ok && !reflect.DeepEqual(old, afterChildren[child]) {
			events = append(events, ChangeEvent{Type: ChildChanged, Path: path, Value: Snapshot{key: child, value: afterChildren[child]}, Source: source})
		}
	}
	events = append(events, ChangeEvent{Type: ValueChanged, Path: path, Value: Snapshot{key: key, value: after}, Source: source})
	return events
}

func lastSegment(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// attach registers changes and replays current state into it.
func (t *Tree) attach(changes *changeStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if changes.closed {
		return
	}

	reference := changes.reference
	listeners, ok := t.listeners[reference.path]
	if !ok {
		listeners = &pathListeners{
			segments: reference.segments,
			streams:  make(map[*changeStream]struct{}),
		}
		t.listeners[reference.path] = listeners
	}
	listeners.streams[changes] = struct{}{}

	value := lookup(t.root, reference.segments)
	if changes.types.Has(ChildAdded) {
		if children, ok := value.(map[string]any); ok {
			for _, child := range sortedKeys(children) {
				changes.queue.Push(ChangeEvent{
					Type:     ChildAdded,
					Path:     reference.path,
					Value:    Snapshot{key: child, value: children[child]},
					Replayed: true,
				})
			}
		}
	}
	if changes.types.Has(ValueChanged) {
		changes.queue.Push(ChangeEvent{
			Type:     ValueChanged,
			Path:     reference.path,
			Value:    Snapshot{key: reference.Key(), value: value},
			Replayed: true,
		})
	}
}

// detach unregisters changes. Safe to call more than once.
func (t *Tree) detach(changes *changeStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	changes.closed = true
	listeners, ok := t.listeners[changes.reference.path]
	if !ok {
		return
	}
	delete(listeners.streams, changes)
	if len(listeners.streams) == 0 {
		delete(t.listeners, changes.reference.path)
	}
}

// ListenerCount returns the number of attached change streams.
func (t *Tree) ListenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, listeners := range t.listeners {
		count += len(listeners.streams)
	}
	return count
}

type treeReference struct {
	tree     *Tree
	segments []string
	path     string
	err      error
}

func (r *treeReference) Path() string { return r.path }

func (r *treeReference) Key() string { return lastSegment(r.segments) }

func (r *treeReference) Value(ctx context.Context) (Snapshot, error) {
	if r.err != nil {
		return Snapshot{}, r.err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	r.tree.mu.Lock()
	defer r.tree.mu.Unlock()
	return Snapshot{key: r.Key(), value: lookup(r.tree.root, r.segments)}, nil
}

func (r *treeReference) Changes(types EventSet) stream.Source[ChangeEvent] {
	return &changeStream{
		reference: r,
		types:     types,
		queue:     stream.NewQueue[ChangeEvent](),
	}
}

// changeStream is the Source returned by Changes.
type changeStream struct {
	reference  *treeReference
	types      EventSet
	queue      *stream.Queue[ChangeEvent]
	attachOnce sync.Once

	// closed is guarded by the tree's mutex.
	closed bool
}

func (c *changeStream) Next(ctx context.Context) (ChangeEvent, error) {
	c.attachOnce.Do(func() {
		if c.reference.err != nil {
			c.queue.Finish(c.reference.err)
			return
		}
		c.reference.tree.attach(c)
	})
	return c.queue.Next(ctx)
}

func (c *changeStream) Close() error {
	c.reference.tree.detach(c)
	return c.queue.Close()
}
