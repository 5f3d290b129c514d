// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"errors"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/edit"
)

// publishLoop sends staged records to the broker in staging order.
//
// A failed publish reconnects and resends the rest of the batch, so
// one broken connection costs at most the record in flight. The loop
// ends only when the session stops.
func (s *Session) publishLoop() {
	defer s.wg.Done()

	publisher, err := bus.DialPublisher(s.ctx, s.options.Settings.publisherAddress(), s.dialOptions())
	if err != nil {
		// Only cancellation ends a retrying dial.
		return
	}
	if !s.track(publisher) {
		return
	}
	defer func() { s.untrack(publisher) }()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}

		batch := s.takeStaged()
		for i := 0; i < len(batch); i++ {
			data, err := edit.Encode(s.codec, batch[i])
			if err != nil {
				s.logger.Warn("dropping unencodable edit", "edit", edit.Describe(batch[i]), "error", err)
				continue
			}
			if err := publisher.Publish(bus.EncodeMessage(uint64(s.identity), data)); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn("publish failed, reconnecting", "error", err)
				s.untrack(publisher)
				next, err := bus.DialPublisher(s.ctx, s.options.Settings.publisherAddress(), s.dialOptions())
				if err != nil || !s.track(next) {
					return
				}
				publisher = next
				continue
			}
			s.published.Add(1)
		}
	}
}

// listenLoop subscribes to the bus, runs catch-up, then turns incoming
// messages into batches for Process.
//
// Batches are kept per sending session: records from two peers may
// interleave on the bus, and each peer's boundary closes only its own
// records. A receive error other than shutdown reconnects; records
// received before the reconnect stay batched.
func (s *Session) listenLoop() {
	defer s.wg.Done()

	subscriber, err := bus.DialSubscriber(s.ctx, s.options.Settings.listenerAddress(), s.dialOptions())
	if err != nil {
		return
	}
	if !s.track(subscriber) {
		return
	}
	defer func() { s.untrack(subscriber) }()

	s.catchUp()
	close(s.caughtUp)

	batches := make(map[Identity][]edit.Record)
	for {
		message, err := subscriber.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("receive failed, reconnecting", "error", err)
			s.untrack(subscriber)
			next, err := bus.DialSubscriber(s.ctx, s.options.Settings.listenerAddress(), s.dialOptions())
			if err != nil || !s.track(next) {
				return
			}
			subscriber = next
			continue
		}

		sender, data, err := bus.DecodeMessage(message)
		if err != nil {
			s.decodeFailures.Add(1)
			s.logger.Warn("discarding malformed bus message", "error", err)
			continue
		}
		if Identity(sender) == s.identity {
			s.selfEchoDropped.Add(1)
			continue
		}
		s.received.Add(1)

		record, err := edit.Decode(s.codec, data)
		if err != nil {
			s.decodeFailures.Add(1)
			if errors.Is(err, edit.ErrUnknownType) {
				s.logger.Debug("discarding edit of unknown type", "sender", Identity(sender).String(), "error", err)
			} else {
				s.logger.Warn("discarding undecodable edit", "sender", Identity(sender).String(), "error", err)
			}
			continue
		}

		if _, ok := record.(edit.TransactionBoundary); !ok {
			batches[Identity(sender)] = append(batches[Identity(sender)], record)
			continue
		}
		batch := batches[Identity(sender)]
		delete(batches, Identity(sender))
		if len(batch) == 0 {
			continue
		}
		if !s.enqueue(func() { s.applyBatch(batch) }) {
			return
		}
		s.batches.Add(1)
	}
}

// applyBatch applies one incoming batch as a single change block. It
// runs inside Process. Records for layers not open here are skipped,
// and a record that fails to apply does not stop the rest.
func (s *Session) applyBatch(batch []edit.Record) {
	s.registry.ChangeBlock(func() error {
		for _, record := range batch {
			id, _ := edit.LayerOf(record)
			target := s.registry.Find(id)
			if target == nil {
				s.logger.Debug("skipping edit for layer not open here", "layer", id)
				continue
			}
			if err := record.Apply(target); err != nil {
				s.logger.Warn("applying incoming edit failed", "edit", edit.Describe(record), "error", err)
			}
		}
		return nil
	})
}

// serveLoop answers catch-up requests once this session has caught up
// itself, so it never answers its own request. Ready closes when the
// responder is registered with the broker.
func (s *Session) serveLoop() {
	defer s.wg.Done()

	select {
	case <-s.ctx.Done():
		return
	case <-s.caughtUp:
	}

	for {
		responder, err := bus.DialResponder(s.ctx, s.options.Settings.responderAddress(), s.dialOptions())
		if err != nil {
			return
		}
		if !s.track(responder) {
			return
		}
		select {
		case <-s.ready:
		default:
			close(s.ready)
			s.logger.Info("live share session ready")
		}

		err = responder.Serve(s.ctx, s.answer)
		s.untrack(responder)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("catch-up responder failed, reconnecting", "error", err)
		}
	}
}

// answer replies to a catch-up request with the transfer directory.
func (s *Session) answer(request []byte) []byte {
	code, err := bus.DecodeRequest(request)
	if err != nil {
		s.logger.Warn("malformed catch-up request", "error", err)
		return nil
	}
	if code != bus.RequestTransferDirectory {
		s.logger.Debug("unknown catch-up request code", "code", code)
		return nil
	}
	dir := s.options.TransferDir
	if len(dir) > bus.MaxReplyLength {
		s.logger.Warn("transfer directory path too long to send", "length", len(dir), "limit", bus.MaxReplyLength)
		return nil
	}
	return []byte(dir)
}
