// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the relay.
//
// Configuration comes from a single file named by either the
// RELAY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Without a file,
// the binary runs on [Default].
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs.
//
// The upstream redis URL is expanded after loading: ${VAR} and
// ${VAR:-default} patterns are replaced from the process environment,
// so credentials can stay out of the file. Nothing else reads the
// environment.
//
// Key exports:
//
//   - [Config] -- server, upstream, and logging sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [LoggingConfig.Handler] -- builds the process slog handler
//
// This package depends on no other relay packages.
package config
