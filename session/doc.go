// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session adapts client websocket connections into typed
// action streams and tracks them in a [Registry].
//
// A [Session] moves through three states. It starts Open. Close sends
// a close frame and moves it to Closing, where it waits for the peer to
// finish the handshake (bounded by a grace period). Any transport
// signal (peer close, read error, write error, grace expiry) moves it
// to Closed. Teardown runs exactly once no matter how many of those
// signals arrive: the outbound broadcast is completed, every
// subscription is released, and the OnClose callback runs.
//
// Send is a silent no-op outside the Open state. Actions that cannot be
// encoded are logged and dropped.
//
// Inbound text messages must be JSON objects carrying both a "type"
// and a "payload" key. Valid ones are published on the session's
// outbound broadcast; anything else closes the session with a protocol
// error (1002).
package session
