// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/liveshare"
)

// messageEntry is one bus message flattened for display.
type messageEntry struct {
	Session     string `json:"session"`
	PID         uint32 `json:"pid"`
	Counter     uint32 `json:"counter"`
	Type        string `json:"type,omitempty"`
	Layer       string `json:"layer,omitempty"`
	Description string `json:"description,omitempty"`
	Bytes       int    `json:"bytes"`
	Error       string `json:"error,omitempty"`
}

// decodeEntry describes message. Undecodable messages still produce an
// entry carrying the error so the tail shows every frame it saw.
func decodeEntry(registry *codec.Registry, message []byte) messageEntry {
	entry := messageEntry{Bytes: len(message)}
	session, payload, err := bus.DecodeMessage(message)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	identity := liveshare.Identity(session)
	entry.Session = identity.String()
	entry.PID = identity.PID()
	entry.Counter = identity.Counter()

	record, err := edit.Decode(registry, payload)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Type = record.Type().String()
	entry.Layer, _ = edit.LayerOf(record)
	entry.Description = edit.Describe(record)
	return entry
}

// printer writes entries as they arrive.
type printer interface {
	Print(entry messageEntry) error
	Flush() error
}

type jsonPrinter struct {
	encoder *json.Encoder
}

func newJSONPrinter(w io.Writer) *jsonPrinter {
	return &jsonPrinter{encoder: json.NewEncoder(w)}
}

func (p *jsonPrinter) Print(entry messageEntry) error { return p.encoder.Encode(entry) }
func (p *jsonPrinter) Flush() error                   { return nil }

// tablePrinter aligns columns and flushes after every row, so output
// keeps up with the bus even though column widths are per row.
type tablePrinter struct {
	writer *tabwriter.Writer
	header bool
}

func newTablePrinter(w io.Writer) *tablePrinter {
	return &tablePrinter{writer: tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)}
}

func (p *tablePrinter) Print(entry messageEntry) error {
	if !p.header {
		fmt.Fprintf(p.writer, "SESSION\tBYTES\tEDIT\n")
		p.header = true
	}
	description := entry.Description
	if entry.Error != "" {
		description = "! " + entry.Error
	}
	fmt.Fprintf(p.writer, "%s\t%d\t%s\n", entry.Session, entry.Bytes, truncate(description, 120))
	return p.writer.Flush()
}

func (p *tablePrinter) Flush() error { return p.writer.Flush() }

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
