// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/config"
	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/liveshare"
	"github.com/opendcc/liveshare/lib/value"
)

func encodedMessage(t *testing.T, identity liveshare.Identity, record edit.Record) []byte {
	t.Helper()
	payload, err := edit.Encode(codec.Standard(), record)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return bus.EncodeMessage(uint64(identity), payload)
}

func TestDecodeEntry(t *testing.T) {
	identity := liveshare.NewIdentity(4242, 7)
	record := edit.SetField{Layer: "scene.usda", Path: "/World", Field: "active", Value: value.Of(true)}
	message := encodedMessage(t, identity, record)

	entry := decodeEntry(codec.Standard(), message)
	if entry.Error != "" {
		t.Fatalf("unexpected error: %s", entry.Error)
	}
	if entry.Session != identity.String() || entry.PID != 4242 || entry.Counter != 7 {
		t.Errorf("identity fields = %+v", entry)
	}
	if entry.Layer != "scene.usda" || entry.Type != edit.TypeSetField.String() {
		t.Errorf("record fields = %+v", entry)
	}
	if entry.Description != edit.Describe(record) || entry.Bytes != len(message) {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDecodeEntryReportsErrors(t *testing.T) {
	tests := []struct {
		name    string
		message []byte
		session bool
	}{
		{name: "short frame", message: []byte{1, 2, 3}},
		{name: "unknown record", message: bus.EncodeMessage(9, []byte{99, 0, 0, 0, 0, 0, 0, 0}), session: true},
		{name: "truncated record", message: bus.EncodeMessage(9, []byte{0, 0}), session: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entry := decodeEntry(codec.Standard(), test.message)
			if entry.Error == "" {
				t.Fatalf("no error for %x", test.message)
			}
			if (entry.Session != "") != test.session {
				t.Errorf("session = %q", entry.Session)
			}
		})
	}
}

func TestJSONPrinter(t *testing.T) {
	var buffer bytes.Buffer
	out := newJSONPrinter(&buffer)
	for _, entry := range []messageEntry{
		{Session: "1.1", Description: "first", Bytes: 10},
		{Session: "1.2", Error: "corrupt", Bytes: 3},
	} {
		if err := out.Print(entry); err != nil {
			t.Fatal(err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buffer.String())
	}
	var decoded messageEntry
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Error != "corrupt" || decoded.Bytes != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestTablePrinter(t *testing.T) {
	var buffer bytes.Buffer
	out := newTablePrinter(&buffer)
	if err := out.Print(messageEntry{Session: "12.3", Bytes: 40, Description: "SetField scene.usda /World.active = true"}); err != nil {
		t.Fatal(err)
	}
	if err := out.Print(messageEntry{Bytes: 2, Error: "corrupt data"}); err != nil {
		t.Fatal(err)
	}
	output := buffer.String()
	if strings.Count(output, "SESSION") != 1 {
		t.Errorf("header printed more than once:\n%s", output)
	}
	if !strings.Contains(output, "12.3") || !strings.Contains(output, "! corrupt data") {
		t.Errorf("output:\n%s", output)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate = %q", got)
	}
}

// scriptedReceiver replays messages, then returns err.
type scriptedReceiver struct {
	messages [][]byte
	err      error
}

func (r *scriptedReceiver) Receive(ctx context.Context) ([]byte, error) {
	if len(r.messages) == 0 {
		return nil, r.err
	}
	message := r.messages[0]
	r.messages = r.messages[1:]
	return message, nil
}

type collectingPrinter struct {
	entries []messageEntry
}

func (p *collectingPrinter) Print(entry messageEntry) error {
	p.entries = append(p.entries, entry)
	return nil
}

func (p *collectingPrinter) Flush() error { return nil }

func TestTailStopsAtCount(t *testing.T) {
	identity := liveshare.NewIdentity(1, 1)
	source := &scriptedReceiver{
		messages: [][]byte{
			encodedMessage(t, identity, edit.CreateSpec{Layer: "a", Path: "/p", SpecType: value.SpecTypePrim}),
			encodedMessage(t, identity, edit.TransactionBoundary{}),
			encodedMessage(t, identity, edit.DeleteSpec{Layer: "a", Path: "/p"}),
		},
	}
	out := &collectingPrinter{}
	if err := tail(context.Background(), source, out, 2); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(out.entries) != 2 || out.entries[1].Type != edit.TypeTransactionBoundary.String() {
		t.Fatalf("entries = %+v", out.entries)
	}
}

func TestTailEndsWhenBrokerCloses(t *testing.T) {
	source := &scriptedReceiver{messages: [][]byte{{1}}, err: bus.ErrClosed}
	out := &collectingPrinter{}
	err := tail(context.Background(), source, out, 0)
	if err == nil || !strings.Contains(err.Error(), "broker closed") {
		t.Fatalf("tail = %v", err)
	}
	if len(out.entries) != 1 {
		t.Fatalf("printed %d entries, want 1", len(out.entries))
	}
}

func TestTailCancelledIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &scriptedReceiver{err: context.Canceled}
	if err := tail(ctx, source, &collectingPrinter{}, 0); err != nil {
		t.Fatalf("tail = %v, want nil after cancellation", err)
	}
	failing := &scriptedReceiver{err: errors.New("tls: bad record")}
	if err := tail(context.Background(), failing, &collectingPrinter{}, 0); err == nil {
		t.Fatal("tail swallowed a receive error")
	}
}

func TestAddressFlagsOverrideConfig(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	opts, err := parseFlags([]string{"--port", "7561"})
	if err != nil {
		t.Fatal(err)
	}
	address, err := opts.address()
	if err != nil {
		t.Fatal(err)
	}
	if address != bus.Address("127.0.0.1", 7561) {
		t.Errorf("address = %q", address)
	}

	opts, err = parseFlags([]string{"--host", "render-07"})
	if err != nil {
		t.Fatal(err)
	}
	if address, err = opts.address(); err != nil || address != bus.Address("render-07", 5561) {
		t.Errorf("address = %q, %v", address, err)
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--json", "-n", "5"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.forceJSON || opts.count != 5 {
		t.Errorf("opts = %+v", opts)
	}
	if _, err := parseFlags([]string{"--count", "-1"}); err == nil {
		t.Error("negative count accepted")
	}
	if _, err := parseFlags([]string{"stray"}); err == nil {
		t.Error("positional argument accepted")
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}
