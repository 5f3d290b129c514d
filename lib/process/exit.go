// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. This is
// the standard binary entrypoint error handler. Use it in main() for
// errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	Exit(err, 1)
}

// Exit writes "error: err" to stderr and exits with code. The broker
// uses it with code 0: supervisors restart a broker that exits
// non-zero, and a port that cannot be bound will not bind on restart.
func Exit(err error, code int) {
	Report(os.Stderr, err)
	os.Exit(code)
}

// Report writes "error: err" to w.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
