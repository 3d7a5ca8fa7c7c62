// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the relay binary.
//
// Four package-level variables may be injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/whiteboard-relay/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not injected, the VCS stamp embedded by the go
// command is used instead. [Info] formats the result for --version;
// [Full] adds the Go version and platform. [Print] writes Info for
// --version flags.
package version
