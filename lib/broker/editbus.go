// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/opendcc/liveshare/lib/bus"
)

// subscriber is one connection on the listener port. Messages are
// queued on send and written by the connection's writer goroutine.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

type editBus struct {
	logger     *slog.Logger
	queueDepth int

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	publishers  map[*websocket.Conn]struct{}
	closed      bool

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func newEditBus(queueDepth int, logger *slog.Logger) *editBus {
	return &editBus{
		logger:      logger,
		queueDepth:  queueDepth,
		subscribers: make(map[*subscriber]struct{}),
		publishers:  make(map[*websocket.Conn]struct{}),
	}
}

// add registers s for broadcasts. It returns false, and closes s, once
// the bus is shut down.
func (e *editBus) add(s *subscriber) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		s.close()
		return false
	}
	e.subscribers[s] = struct{}{}
	return true
}

// addPublisher tracks conn so that closeAll reaches it. It returns
// false, and closes conn, once the bus is shut down.
func (e *editBus) addPublisher(conn *websocket.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		conn.Close()
		return false
	}
	e.publishers[conn] = struct{}{}
	return true
}

func (e *editBus) removePublisher(conn *websocket.Conn) {
	e.mu.Lock()
	delete(e.publishers, conn)
	e.mu.Unlock()
	conn.Close()
}

func (e *editBus) remove(s *subscriber) {
	e.mu.Lock()
	delete(e.subscribers, s)
	e.mu.Unlock()
	s.close()
}

// broadcast queues message for every subscriber. A subscriber whose
// queue is full misses the message.
func (e *editBus) broadcast(message []byte) {
	e.published.Add(1)
	e.mu.RLock()
	defer e.mu.RUnlock()
	for s := range e.subscribers {
		select {
		case s.send <- message:
			e.delivered.Add(1)
		default:
			// Logged on powers of two rather than per message.
			if dropped := e.dropped.Add(1); dropped&(dropped-1) == 0 {
				e.logger.Warn("subscriber queue full, dropping messages", "dropped_total", dropped)
			}
		}
	}
}

func (e *editBus) closeAll() {
	e.mu.Lock()
	e.closed = true
	subscribers := make([]*subscriber, 0, len(e.subscribers))
	for s := range e.subscribers {
		subscribers = append(subscribers, s)
	}
	e.subscribers = make(map[*subscriber]struct{})
	publishers := e.publishers
	e.publishers = make(map[*websocket.Conn]struct{})
	e.mu.Unlock()
	for _, s := range subscribers {
		s.close()
	}
	for conn := range publishers {
		conn.Close()
	}
}

func (e *editBus) stats(stats *Stats) {
	e.mu.RLock()
	stats.Subscribers = len(e.subscribers)
	e.mu.RUnlock()
	stats.Published = e.published.Load()
	stats.Delivered = e.delivered.Load()
	stats.Dropped = e.dropped.Load()
}

// handleSubscriber registers a listener-port connection, acknowledges
// the registration with a zero-length frame, then writes queued
// messages until the connection fails. The read side only detects the
// peer going away; anything a subscriber sends is discarded.
func (b *Broker) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn := b.upgrade(w, r, RoleListener)
	if conn == nil {
		return
	}
	s := &subscriber{
		conn: conn,
		send: make(chan []byte, b.edits.queueDepth),
		done: make(chan struct{}),
	}
	if !b.edits.add(s) {
		return
	}
	defer b.edits.remove(s)
	b.logger.Debug("subscriber connected", "remote", r.RemoteAddr)

	go func() {
		defer s.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Registration happened before the acknowledgement, so every message
	// published after the peer sees it is already queued behind it.
	if err := conn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
		return
	}
	for {
		select {
		case <-s.done:
			return
		case message := <-s.send:
			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				if !bus.IsClosed(err) {
					b.logger.Warn("writing to subscriber failed", "remote", r.RemoteAddr, "error", err)
				}
				return
			}
		}
	}
}

// handlePublisher reads messages from a publisher-port connection and
// broadcasts each one. Empty frames are keepalives.
func (b *Broker) handlePublisher(w http.ResponseWriter, r *http.Request) {
	conn := b.upgrade(w, r, RolePublisher)
	if conn == nil {
		return
	}
	if !b.edits.addPublisher(conn) {
		return
	}
	defer b.edits.removePublisher(conn)
	b.logger.Debug("publisher connected", "remote", r.RemoteAddr)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !bus.IsClosed(err) {
				b.logger.Warn("reading from publisher failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage || len(message) == 0 {
			continue
		}
		b.edits.broadcast(message)
	}
}
