// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is an immutable view of one node's value at a point in
// time, together with the node's key.
//
// Values are JSON-shaped: map[string]any for nodes with children,
// otherwise string, float64, bool, or []any. A nil value means the
// node does not exist.
type Snapshot struct {
	key   string
	value any
}

// NewSnapshot builds a snapshot from a key and a JSON-shaped value.
// Intended for tests and for implementations of Reference outside this
// package.
func NewSnapshot(key string, value any) Snapshot {
	return Snapshot{key: key, value: value}
}

// Key returns the node's key.
func (s Snapshot) Key() string { return s.key }

// Value returns the raw value. Callers must not modify it.
func (s Snapshot) Value() any { return s.value }

// Exists reports whether the node had a value.
func (s Snapshot) Exists() bool { return s.value != nil }

// HasChild reports whether the node has a direct child named name.
func (s Snapshot) HasChild(name string) bool {
	children, ok := s.value.(map[string]any)
	if !ok {
		return false
	}
	_, ok = children[name]
	return ok
}

// Child returns a snapshot of the direct child named name. The result
// does not exist if there is no such child.
func (s Snapshot) Child(name string) Snapshot {
	children, _ := s.value.(map[string]any)
	return Snapshot{key: name, value: children[name]}
}

// ChildKeys returns the names of the direct children in key order.
func (s Snapshot) ChildKeys() []string {
	children, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	return sortedKeys(children)
}

// JSON encodes the value.
func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// Decode unmarshals the value into target using encoding/json rules.
// Type mismatches between the stored value and target are errors.
func (s Snapshot) Decode(target any) error {
	data, err := json.Marshal(s.value)
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", s.key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding snapshot %q: %w", s.key, err)
	}
	return nil
}

func sortedKeys(children map[string]any) []string {
	keys := make([]string, 0, len(children))
	for key := range children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
