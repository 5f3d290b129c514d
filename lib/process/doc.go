// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for live-share
// binaries. These functions centralize the raw I/O that happens before
// the structured logger exists or after main() has given up:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized.
//   - Process exit with a chosen code after that report.
//   - Construction of the stderr logger from a --log-level value.
//
// Library packages never write to stdout or stderr directly; they log
// through the *slog.Logger they are given.
package process
