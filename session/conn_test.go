// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session_test

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"
)

// frame is one message read from or written to a fakeConn.
type frame struct {
	messageType int
	data        []byte
	err         error
}

// fakeConn is a scripted websocket connection. Tests feed inbound
// frames with deliver and observe writes on the written and controls
// channels.
type fakeConn struct {
	inbound  chan frame
	written  chan frame
	controls chan frame

	closeOnce sync.Once
	closed    chan struct{}

	mu         sync.Mutex
	writeErr   error
	closeCalls int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan frame, 16),
		written:  make(chan frame, 64),
		controls: make(chan frame, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) deliver(messageType int, data string) {
	c.inbound <- frame{messageType: messageType, data: []byte(data)}
}

func (c *fakeConn) fail(err error) {
	c.inbound <- frame{err: err}
}

func (c *fakeConn) setWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.messageType, f.data, f.err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.written <- frame{messageType: messageType, data: append([]byte(nil), data...)}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.controls <- frame{messageType: messageType, data: append([]byte(nil), data...)}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// closeCode extracts the status code and reason from a close frame
// payload.
func closeCode(data []byte) (int, string) {
	if len(data) < 2 {
		return 0, ""
	}
	return int(binary.BigEndian.Uint16(data)), string(data[2:])
}
