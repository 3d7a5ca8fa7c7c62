// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for relay packages.
//
// [RequireReceive], [RequireClosed], and [RequireNext] encapsulate the
// timeout safety valve pattern (select or context with a wall-clock
// fallback) so that individual tests never hang on a missing delivery.
// These are the only place in the test suite where real wall-clock
// timeouts are used.
//
// [RequireNoNext] asserts the opposite: that a stream has nothing to
// deliver within a short window. It is inherently a timing assertion,
// so use it only after the producer has finished publishing.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, such as channel names on a shared feed.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package depends only on lib/stream.
package testutil
