// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// whiteboard-relay accepts websocket clients for a shared whiteboard
// and keeps them in sync with the upstream replication feed.
//
// One process owns one in-memory store. The relay latches onto the
// first upstream channel that matches its pattern and applies every
// modification from that channel as a remote change. Each client
// session is subscribed to the page projection on connect and receives
// a {"type":"pages"} action whenever the page list grows.
package main
