// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/opendcc/liveshare/lib/bus"
)

// peer is a sync connection. Writes come from other connections'
// handlers, so they are serialized by writeMu.
type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// pendingRequest is a request forwarded to a responder and not yet
// answered.
type pendingRequest struct {
	requester *peer
	responder *peer
}

type syncRouter struct {
	logger *slog.Logger

	mu         sync.Mutex
	responders []*peer
	next       int
	routes     uint64
	pending    map[uint64]pendingRequest
	requesters map[*peer]struct{}

	requests   atomic.Uint64
	replies    atomic.Uint64
	unanswered atomic.Uint64
}

func newSyncRouter(logger *slog.Logger) *syncRouter {
	return &syncRouter{
		logger:     logger,
		pending:    make(map[uint64]pendingRequest),
		requesters: make(map[*peer]struct{}),
	}
}

// forward assigns request a route and picks the next responder. It
// returns nil when no responder is connected.
func (s *syncRouter) forward(requester *peer) (uint64, *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responders) == 0 {
		return 0, nil
	}
	s.routes++
	route := s.routes
	responder := s.responders[s.next%len(s.responders)]
	s.next++
	s.pending[route] = pendingRequest{requester: requester, responder: responder}
	return route, responder
}

// complete removes and returns the requester waiting on route.
func (s *syncRouter) complete(route uint64) *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.pending[route]
	if !ok {
		return nil
	}
	delete(s.pending, route)
	return request.requester
}

func (s *syncRouter) addRequester(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[p] = struct{}{}
}

// removeRequester forgets a requester; replies still in flight for it
// are discarded when they arrive.
func (s *syncRouter) removeRequester(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requesters, p)
	for route, request := range s.pending {
		if request.requester == p {
			delete(s.pending, route)
		}
	}
}

// removeResponder takes a responder out of rotation and returns the
// requesters it left waiting.
func (s *syncRouter) removeResponder(p *peer) []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders = slices.DeleteFunc(s.responders, func(candidate *peer) bool { return candidate == p })
	var orphaned []*peer
	for route, request := range s.pending {
		if request.responder == p {
			orphaned = append(orphaned, request.requester)
			delete(s.pending, route)
		}
	}
	return orphaned
}

// answerEmpty tells requester that nobody will answer its request.
func (s *syncRouter) answerEmpty(requester *peer) {
	s.unanswered.Add(1)
	if err := requester.write(nil); err != nil && !bus.IsClosed(err) {
		s.logger.Warn("writing empty sync reply failed", "error", err)
	}
}

func (s *syncRouter) closeAll() {
	s.mu.Lock()
	peers := slices.Clone(s.responders)
	for p := range s.requesters {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
}

func (s *syncRouter) stats(stats *Stats) {
	s.mu.Lock()
	stats.Responders = len(s.responders)
	s.mu.Unlock()
	stats.Requests = s.requests.Load()
	stats.Replies = s.replies.Load()
	stats.Unanswered = s.unanswered.Load()
}

// handleRequester reads requests from a sync-receiver connection and
// forwards each to a responder. With no responder connected the
// request is answered empty at once, so a lone session never waits for
// a catch-up that cannot happen.
func (b *Broker) handleRequester(w http.ResponseWriter, r *http.Request) {
	conn := b.upgrade(w, r, RoleSyncReceiver)
	if conn == nil {
		return
	}
	requester := &peer{conn: conn}
	b.sync.addRequester(requester)
	defer func() {
		b.sync.removeRequester(requester)
		conn.Close()
	}()

	for {
		messageType, request, err := conn.ReadMessage()
		if err != nil {
			if !bus.IsClosed(err) {
				b.logger.Warn("reading sync request failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		b.sync.requests.Add(1)

		route, responder := b.sync.forward(requester)
		if responder == nil {
			b.sync.answerEmpty(requester)
			continue
		}
		envelope, err := bus.MarshalEnvelope(bus.Envelope{Route: route, Body: request})
		if err != nil {
			b.logger.Error("encoding sync envelope failed", "error", err)
			b.sync.complete(route)
			b.sync.answerEmpty(requester)
			continue
		}
		if err := responder.write(envelope); err != nil {
			// The responder's own handler removes it from rotation.
			if b.sync.complete(route) != nil {
				b.sync.answerEmpty(requester)
			}
		}
	}
}

// handleResponder adds a sync-sender connection to the rotation and
// routes its replies back to the waiting requesters.
func (b *Broker) handleResponder(w http.ResponseWriter, r *http.Request) {
	conn := b.upgrade(w, r, RoleSyncSender)
	if conn == nil {
		return
	}
	responder := &peer{conn: conn}

	// Holding writeMu across registration keeps any request routed here
	// from being written ahead of the acknowledgement.
	responder.writeMu.Lock()
	b.sync.mu.Lock()
	b.sync.responders = append(b.sync.responders, responder)
	b.sync.mu.Unlock()
	err := conn.WriteMessage(websocket.BinaryMessage, nil)
	responder.writeMu.Unlock()

	defer func() {
		for _, requester := range b.sync.removeResponder(responder) {
			b.sync.answerEmpty(requester)
		}
		conn.Close()
	}()
	if err != nil {
		return
	}
	b.logger.Debug("responder connected", "remote", r.RemoteAddr)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !bus.IsClosed(err) {
				b.logger.Warn("reading sync reply failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		envelope, err := bus.UnmarshalEnvelope(data)
		if err != nil {
			b.logger.Warn("discarding malformed sync reply", "remote", r.RemoteAddr, "error", err,
				"data", bus.DescribeEnvelope(data))
			continue
		}
		requester := b.sync.complete(envelope.Route)
		if requester == nil {
			b.logger.Debug("discarding sync reply for unknown route", "route", envelope.Route)
			continue
		}
		b.sync.replies.Add(1)
		if err := requester.write(envelope.Body); err != nil && !bus.IsClosed(err) {
			b.logger.Warn("writing sync reply failed", "error", err)
		}
	}
}
