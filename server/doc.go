// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server accepts websocket clients and turns each connection
// into a registered [session.Session].
//
// Lifecycle notifications go to a [Hooks] implementation supplied at
// construction. Start and Stop are idempotent: calling Start on a
// running server or Stop on a stopped one logs a warning and does
// nothing. Stop closes every registered session with 1001 (going away).
package server
