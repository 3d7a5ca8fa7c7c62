// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bureau-foundation/whiteboard-relay/session"
)

func newIdleSession() *session.Session {
	return session.New(newFakeConn(), session.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRegistryAssignsIncreasingIDsFromOne(t *testing.T) {
	t.Parallel()
	registry := session.NewRegistry()

	var previous session.ID
	for i := 0; i < 5; i++ {
		s := newIdleSession()
		id := registry.Add(s)
		if i == 0 && id != 1 {
			t.Errorf("first id: got %d, want 1", id)
		}
		if id <= previous {
			t.Errorf("id %d: got %d, want greater than %d", i, id, previous)
		}
		if s.ID() != id {
			t.Errorf("session.ID: got %d, want %d", s.ID(), id)
		}
		previous = id
	}

	// Removal never frees an id for reuse.
	registry.Remove(previous)
	if id := registry.Add(newIdleSession()); id != previous+1 {
		t.Errorf("id after remove: got %d, want %d", id, previous+1)
	}
}

func TestRegistryGetAndRemove(t *testing.T) {
	t.Parallel()
	registry := session.NewRegistry()
	s := newIdleSession()
	id := registry.Add(s)

	got, ok := registry.Get(id)
	if !ok || got != s {
		t.Fatalf("Get(%d): got %v %v, want the added session", id, got, ok)
	}

	registry.Remove(id)
	registry.Remove(id)
	registry.Remove(999)
	if _, ok := registry.Get(id); ok {
		t.Errorf("Get(%d) after Remove: found, want not found", id)
	}
	if registry.Len() != 0 {
		t.Errorf("Len: got %d, want 0", registry.Len())
	}
}

func TestRegistryConcurrentAddsAreUnique(t *testing.T) {
	t.Parallel()
	registry := session.NewRegistry()

	const adders = 32
	ids := make(chan session.ID, adders)
	var wait sync.WaitGroup
	for i := 0; i < adders; i++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			ids <- registry.Add(newIdleSession())
		}()
	}
	wait.Wait()
	close(ids)

	seen := make(map[session.ID]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("id %d assigned twice", id)
		}
		seen[id] = true
	}
	if len(seen) != adders {
		t.Errorf("distinct ids: got %d, want %d", len(seen), adders)
	}

	sessions := registry.Sessions()
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1].ID() >= sessions[i].ID() {
			t.Errorf("Sessions not in id order at %d: %d then %d", i, sessions[i-1].ID(), sessions[i].ID())
		}
	}
}
