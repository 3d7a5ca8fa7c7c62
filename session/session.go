// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/whiteboard-relay/lib/clock"
	"github.com/bureau-foundation/whiteboard-relay/lib/stream"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultWriteTimeout     = 10 * time.Second
	DefaultCloseGracePeriod = 5 * time.Second
)

// errCloseTimeout is the teardown cause when the peer does not answer
// a close frame within the grace period.
var errCloseTimeout = errors.New("close handshake timed out")

// State is a session's position in its lifecycle.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(deadline time.Time) error
	Close() error
}

// Config holds a session's collaborators and timeouts.
type Config struct {
	// WriteTimeout bounds each message write.
	WriteTimeout time.Duration

	// CloseGracePeriod is how long Close waits for the peer to
	// complete the close handshake before closing the connection.
	CloseGracePeriod time.Duration

	// Clock drives write deadlines and the close grace timer.
	Clock clock.Clock

	Logger *slog.Logger

	// OnClose, if set, runs once at the end of teardown.
	OnClose func(*Session)
}

// Session is one client connection viewed as an action stream.
type Session struct {
	conn   Conn
	config Config
	id     atomic.Int64
	state  atomic.Int32

	// writeMu serializes writes to conn.
	writeMu sync.Mutex

	outbound *stream.Broadcast[Action]

	// mu guards subscriptions and graceTimer. subscriptions is nil
	// once teardown has started.
	mu            sync.Mutex
	subscriptions map[*subscription]struct{}
	graceTimer    *clock.Timer

	startOnce    sync.Once
	teardownOnce sync.Once
	done         chan struct{}
}

// New wraps conn. The session does not read until Start is called.
func New(conn Conn, config Config) *Session {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.CloseGracePeriod <= 0 {
		config.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Session{
		conn:          conn,
		config:        config,
		outbound:      stream.NewBroadcast[Action](),
		subscriptions: make(map[*subscription]struct{}),
		done:          make(chan struct{}),
	}
}

// ID returns the identifier assigned by a Registry, or 0 if the
// session has not been registered.
func (s *Session) ID() ID { return ID(s.id.Load()) }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Outbound returns the session's hot action broadcast. Inbound client
// actions are published here, and any component may publish or
// observe. The broadcast completes when the session closes.
func (s *Session) Outbound() stream.Topic[Action] { return s.outbound }

// Done is closed when teardown has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start begins reading from the connection. Calling it again has no
// effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.readLoop()
	})
}

func (s *Session) logger() *slog.Logger {
	return s.config.Logger.With("session_id", s.ID())
}

// Send writes action to the client as one JSON text message. It does
// nothing unless the session is open.
func (s *Session) Send(action Action) {
	if s.State() != StateOpen {
		return
	}
	data, err := json.Marshal(action)
	if err != nil {
		s.logger().Error("dropping action that cannot be encoded",
			"action_type", action.Type,
			"error", err,
		)
		return
	}

	s.writeMu.Lock()
	if s.State() != StateOpen {
		s.writeMu.Unlock()
		return
	}
	err = s.conn.SetWriteDeadline(s.config.Clock.Now().Add(s.config.WriteTimeout))
	if err == nil {
		err = s.conn.WriteMessage(websocket.TextMessage, data)
	}
	s.writeMu.Unlock()

	if err != nil {
		s.teardown(fmt.Errorf("writing action: %w", err))
	}
}

// Close starts the close handshake with code and reason. A zero code
// means a normal closure. Only the first call on an open session has
// any effect.
func (s *Session) Close(code int, reason string) {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return
	}
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	level := slog.LevelWarn
	if code == websocket.CloseNormalClosure {
		level = slog.LevelInfo
	}
	s.logger().Log(context.Background(), level, "closing session", "code", code, "reason", reason)

	message := websocket.FormatCloseMessage(code, reason)
	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.CloseMessage, message, s.config.Clock.Now().Add(s.config.WriteTimeout))
	s.writeMu.Unlock()
	if err != nil {
		s.teardown(fmt.Errorf("sending close frame: %w", err))
		return
	}

	timer := s.config.Clock.AfterFunc(s.config.CloseGracePeriod, func() {
		s.teardown(errCloseTimeout)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		timer.Stop()
		return
	}
	s.graceTimer = timer
}

// Subscribe forwards every action from source to the client through
// Send until source ends, the returned release function is called, or
// the session closes. Release is idempotent and returns once no
// further actions from source will be sent.
func (s *Session) Subscribe(source stream.Source[Action]) (release func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		source: source,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.subscriptions == nil {
		s.mu.Unlock()
		sub.stop(s)
		close(sub.done)
		return func() {}
	}
	s.subscriptions[sub] = struct{}{}
	s.mu.Unlock()

	go s.pump(ctx, sub)
	return func() {
		sub.stop(s)
		<-sub.done
	}
}

// SubscriptionCount returns the number of active subscriptions.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

func (s *Session) pump(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	defer sub.stop(s)
	for {
		action, err := sub.source.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, stream.ErrClosed) {
				s.logger().Warn("subscription ended with error", "error", err)
			}
			return
		}
		s.Send(action)
	}
}

func (s *Session) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.teardown(err)
			return
		}
		if s.State() != StateOpen {
			continue
		}
		switch messageType {
		case websocket.TextMessage:
			s.receive(data)
		case websocket.BinaryMessage:
			s.Close(websocket.CloseUnsupportedData, "binary messages are not supported")
		}
	}
}

func (s *Session) receive(data []byte) {
	action, err := ParseAction(data)
	if err != nil {
		s.logger().Warn("rejecting inbound message", "error", err)
		s.Close(websocket.CloseProtocolError, "invalid action")
		return
	}
	s.outbound.Publish(action)
}

// teardown releases everything the session owns. Only the first call
// does anything.
func (s *Session) teardown(cause error) {
	s.teardownOnce.Do(func() {
		s.state.Store(int32(StateClosed))

		s.mu.Lock()
		timer := s.graceTimer
		subscriptions := s.subscriptions
		s.subscriptions = nil
		s.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		s.conn.Close()
		s.outbound.Complete()
		for sub := range subscriptions {
			sub.stop(s)
		}

		logger := s.logger()
		var closeError *websocket.CloseError
		switch {
		case errors.As(cause, &closeError):
			logger.Info("session closed by peer", "code", closeError.Code, "reason", closeError.Text)
		case errors.Is(cause, errCloseTimeout):
			logger.Warn("session closed after close handshake timed out")
		default:
			logger.Warn("session closed on transport fault", "error", cause)
		}

		close(s.done)
		if s.config.OnClose != nil {
			s.config.OnClose(s)
		}
	})
}

type subscription struct {
	source   stream.Source[Action]
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// stop detaches sub from s and closes its source.
func (sub *subscription) stop(s *Session) {
	sub.stopOnce.Do(func() {
		s.mu.Lock()
		delete(s.subscriptions, sub)
		s.mu.Unlock()
		sub.cancel()
		sub.source.Close()
	})
}
