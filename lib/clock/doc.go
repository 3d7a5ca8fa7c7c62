// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The relay core has no timeouts of its own; the only timer is the
// session close grace period, after which a connection whose peer never
// completed the close handshake is torn down. Components holding such a
// timer take a Clock:
//
//	s := session.New(conn, session.Config{Clock: clock.Real()})
//
// Tests use Fake, which stands still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := session.New(conn, session.Config{Clock: c})
//	s.Close(websocket.CloseNormalClosure, "")
//	c.Advance(5 * time.Second) // grace timer fires synchronously
package clock
