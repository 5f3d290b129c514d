// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"context"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/transfer"
)

// catchUp asks a peer for its transfer directory and queues a task
// replacing local layers with the snapshots staged there. Every failure
// ends catch-up quietly: the session proceeds with incremental sync.
//
// Snapshots are loaded here, off the owning goroutine, into standalone
// layers; only the content transfer runs in Process.
func (s *Session) catchUp() {
	ctx, cancel := context.WithTimeout(s.ctx, s.options.CatchUpTimeout)
	defer cancel()

	requester, err := bus.DialRequester(ctx, s.options.Settings.requesterAddress(), s.dialOptions())
	if err != nil {
		s.logger.Debug("catch-up skipped, sync port unreachable", "error", err)
		return
	}
	if !s.track(requester) {
		return
	}
	reply, err := requester.Request(ctx, bus.EncodeRequest(bus.RequestTransferDirectory))
	s.untrack(requester)
	if err != nil {
		s.logger.Debug("catch-up skipped, request failed", "error", err)
		return
	}
	if len(reply) == 0 {
		s.logger.Debug("catch-up skipped, no peer offered content")
		return
	}
	if len(reply) > bus.MaxReplyLength {
		s.logger.Warn("catch-up skipped, oversized reply", "length", len(reply))
		return
	}
	dir := string(reply)
	if dir == s.options.TransferDir {
		return
	}

	entries, skipped, err := transfer.Load(dir, s.codec)
	if err != nil {
		s.logger.Warn("catch-up skipped, transfer directory unreadable", "dir", dir, "error", err)
		return
	}
	for _, entry := range skipped {
		s.logger.Debug("catch-up entry skipped", "layer", entry.ID, "error", entry.Err)
	}
	if len(entries) == 0 {
		return
	}
	if s.enqueue(func() { s.applyTransfer(entries) }) {
		s.logger.Info("catch-up loaded", "dir", dir, "layers", len(entries), "skipped", len(skipped))
	}
}

// applyTransfer replaces local layer content with caught-up content in
// one change block. It runs inside Process. Layers not yet open are
// opened.
func (s *Session) applyTransfer(entries []transfer.Entry) {
	s.registry.ChangeBlock(func() error {
		for _, entry := range entries {
			s.registry.Open(entry.ID).TransferContent(entry.Layer)
		}
		return nil
	})
}
