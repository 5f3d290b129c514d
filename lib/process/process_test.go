// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.name)
		if err != nil || got != test.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", test.name, got, err, test.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) succeeded")
	}
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := NewLogger(&buffer, "warn")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "port", 5561)
	output := buffer.String()
	if strings.Contains(output, "hidden") || !strings.Contains(output, "shown") || !strings.Contains(output, "port=5561") {
		t.Fatalf("output = %q", output)
	}
}

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	Report(&buffer, errors.New("binding listener endpoint: address in use"))
	if got := buffer.String(); got != "error: binding listener endpoint: address in use\n" {
		t.Fatalf("Report wrote %q", got)
	}
}
