// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for live-share
// components.
//
// Configuration is loaded from a single file specified by either the
// LIVESHARE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. With neither set,
// [Load] returns the defaults, which describe a broker on the local
// machine at ports 5559-5562.
//
// The configuration file supports environment-specific sections
// (development, production) that override base values when
// [Config].Environment matches. Production defaults log at warn.
//
// Variable expansion is performed on the transfer directory after
// loading: ${HOME}, ${TMPDIR}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
// Command-line flags override file values in each binary.
//
// Key exports:
//
//   - [Config] -- master struct with LiveShare, Broker, Logging
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other live-share packages.
package config
