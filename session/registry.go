// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sort"
	"sync"
)

// ID identifies a session for the lifetime of the process. Assigned
// ids start at 1 and strictly increase.
type ID int64

// Registry owns the mapping from ID to live Session. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	lastID   ID
	sessions map[ID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ID]*Session)}
}

// Add registers session under a fresh id, records the id on the
// session, and returns it.
func (r *Registry) Add(session *Session) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	id := r.lastID
	session.id.Store(int64(id))
	r.sessions[id] = session
	return id
}

// Remove deletes id. Removing an absent id does nothing.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the session registered under id.
func (r *Registry) Get(id ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns the registered sessions in id order.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID() < sessions[j].ID() })
	return sessions
}
