// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"strconv"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns "prefix-PID-N" with N increasing per call. The
// process id keeps names apart when several test binaries share one
// redis server.
//
//	namespace := testutil.UniqueID("relaytest") // "relaytest-4121-1", ...
func UniqueID(prefix string) string {
	return prefix + "-" + strconv.Itoa(os.Getpid()) + "-" + strconv.FormatUint(uniqueCounter.Add(1), 10)
}
