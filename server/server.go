// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/whiteboard-relay/lib/clock"
	"github.com/bureau-foundation/whiteboard-relay/session"
)

// DefaultAddress is the listen address when Config.Address is empty.
const DefaultAddress = "localhost:8081"

// Hooks receives lifecycle notifications. Methods are called
// synchronously and must not block.
type Hooks interface {
	// ServerOpened is called after the listener is bound.
	ServerOpened(address string)

	// ServerClosed is called after Stop has closed the listener and
	// asked every session to close.
	ServerClosed()

	// SessionAdded is called once a session is registered, before it
	// starts reading.
	SessionAdded(s *session.Session)

	// SessionRemoved is called after a session's teardown, once it has
	// been removed from the registry.
	SessionRemoved(s *session.Session)
}

// NopHooks ignores every notification. Embed it to implement only
// some of Hooks.
type NopHooks struct{}

func (NopHooks) ServerOpened(string) {}
func (NopHooks) ServerClosed() {}
func (NopHooks) SessionAdded(*session.Session) {}
func (NopHooks) SessionRemoved(*session.Session) {}

// Config holds the server's listen address and per-session settings.
type Config struct {
	// Address is the TCP listen address. Use port 0 for a random port.
	Address string

	WriteTimeout     time.Duration
	CloseGracePeriod time.Duration
	Clock            clock.Clock

	Logger *slog.Logger
	Hooks  Hooks
}

// Server is a websocket accept loop feeding a session registry.
type Server struct {
	config   Config
	registry *session.Registry
	upgrader websocket.Upgrader

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	serveDone  chan struct{}
}

// New returns a stopped server that registers sessions in registry.
func New(config Config, registry *session.Registry) *Server {
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Hooks == nil {
		config.Hooks = NopHooks{}
	}
	return &Server{
		config:   config,
		registry: registry,
		upgrader: websocket.Upgrader{
			// Every client is accepted; authentication happens upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		s.config.Logger.Warn("server already started", "address", s.Addr())
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listening on %s: %w", s.config.Address, err)
	}
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 30 * time.Second,
	}
	done := make(chan struct{})
	s.listener = listener
	s.httpServer = httpServer
	s.serveDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Logger.Error("websocket server failed", "error", err)
			go s.Stop()
		}
	}()

	address := listener.Addr().String()
	s.config.Logger.Info("server listening", "address", address)
	s.config.Hooks.ServerOpened(address)
	return nil
}

// Stop closes the listener and asks every registered session to close.
// It does not wait for sessions to finish their close handshakes.
func (s *Server) Stop() {
	s.mu.Lock()
	httpServer, done := s.httpServer, s.serveDone
	s.httpServer, s.listener, s.serveDone = nil, nil, nil
	s.mu.Unlock()
	if httpServer == nil {
		s.config.Logger.Warn("server already stopped")
		return
	}

	// Hijacked websocket connections are not tracked by http.Server,
	// so Close only stops the accept loop.
	if err := httpServer.Close(); err != nil {
		s.config.Logger.Warn("closing http server", "error", err)
	}
	<-done

	sessions := s.registry.Sessions()
	for _, active := range sessions {
		active.Close(websocket.CloseGoingAway, "server shutting down")
	}
	s.config.Logger.Info("server stopped", "sessions_closed", len(sessions))
	s.config.Hooks.ServerClosed()
}

// Addr returns the bound listen address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ServeHTTP upgrades the request to a websocket and registers a
// session for it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.config.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := session.New(conn, session.Config{
		WriteTimeout:     s.config.WriteTimeout,
		CloseGracePeriod: s.config.CloseGracePeriod,
		Clock:            s.config.Clock,
		Logger:           s.config.Logger,
		OnClose:          s.removeSession,
	})
	id := s.registry.Add(client)
	s.config.Logger.Info("session opened", "session_id", id, "remote", r.RemoteAddr)
	s.config.Hooks.SessionAdded(client)
	client.Start()
}

func (s *Server) removeSession(closed *session.Session) {
	s.registry.Remove(closed.ID())
	s.config.Hooks.SessionRemoved(closed)
}
