// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Publisher sends edit messages to the broker's publisher port. Publish
// is safe for concurrent use.
type Publisher struct {
	socket *socket
}

// DialPublisher connects to the publisher port at address.
func DialPublisher(ctx context.Context, address string, options DialOptions) (*Publisher, error) {
	options = options.withDefaults()
	conn, err := dial(ctx, address, false, options)
	if err != nil {
		return nil, err
	}
	return &Publisher{socket: newSocket(conn, options.Logger)}, nil
}

// Publish sends one message. Empty messages are not sent, since the
// broker treats them as keepalives.
func (p *Publisher) Publish(message []byte) error {
	if len(message) == 0 {
		return nil
	}
	return p.socket.write(message)
}

// Close discards unsent messages and closes the connection.
func (p *Publisher) Close() error { return p.socket.close() }

// Subscriber receives every message published to the broker.
type Subscriber struct {
	socket *socket
}

// DialSubscriber connects to the listener port at address and returns
// once the broker has registered the subscription.
func DialSubscriber(ctx context.Context, address string, options DialOptions) (*Subscriber, error) {
	options = options.withDefaults()
	conn, err := dial(ctx, address, true, options)
	if err != nil {
		return nil, err
	}
	return &Subscriber{socket: newSocket(conn, options.Logger)}, nil
}

// Receive blocks until the next message arrives, the context ends, or
// the subscriber is closed. Cancelling ctx closes the subscriber.
func (s *Subscriber) Receive(ctx context.Context) ([]byte, error) {
	return s.socket.readContext(ctx)
}

// Close closes the connection, unblocking a pending Receive.
func (s *Subscriber) Close() error { return s.socket.close() }

// Requester sends sync requests through the broker to whichever
// responder the broker picks, one request at a time.
type Requester struct {
	socket *socket
	mu     sync.Mutex
}

// DialRequester connects to the sync receiver port at address.
func DialRequester(ctx context.Context, address string, options DialOptions) (*Requester, error) {
	options = options.withDefaults()
	conn, err := dial(ctx, address, false, options)
	if err != nil {
		return nil, err
	}
	return &Requester{socket: newSocket(conn, options.Logger)}, nil
}

// Request sends request and waits for the reply. An empty reply means
// no responder answered. The context's deadline bounds the wait;
// cancelling ctx closes the requester. A connection cannot be read
// again after a failed read, so after any error the requester must be
// closed and, if needed, dialed again.
func (r *Requester) Request(ctx context.Context, request []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.socket.write(request); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		r.socket.conn.SetReadDeadline(deadline)
		defer r.socket.conn.SetReadDeadline(time.Time{})
	}
	reply, err := r.readReply(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for reply: %w", err)
	}
	return reply, nil
}

// readReply returns the next binary frame, including an empty one: on
// the request side an empty frame is a reply, not a keepalive.
func (r *Requester) readReply(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { r.socket.close() })
	defer stop()
	_, data, err := r.socket.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-r.socket.closed:
			return nil, ErrClosed
		default:
		}
		return nil, err
	}
	return data, nil
}

// Close closes the connection, unblocking a pending Request.
func (r *Requester) Close() error { return r.socket.close() }

// Handler answers one sync request. The returned reply may be empty.
type Handler func(request []byte) []byte

// Responder answers sync requests the broker routes to it.
type Responder struct {
	socket *socket
}

// DialResponder connects to the sync sender port at address and returns
// once the broker has registered the responder.
func DialResponder(ctx context.Context, address string, options DialOptions) (*Responder, error) {
	options = options.withDefaults()
	conn, err := dial(ctx, address, true, options)
	if err != nil {
		return nil, err
	}
	return &Responder{socket: newSocket(conn, options.Logger)}, nil
}

// Serve answers requests with handler until ctx ends or the responder
// is closed, both of which return nil. Malformed envelopes are logged
// and skipped. Any other receive or send error ends Serve.
func (r *Responder) Serve(ctx context.Context, handler Handler) error {
	for {
		data, err := r.socket.readContext(ctx)
		if err != nil {
			if IsClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving sync request: %w", err)
		}
		envelope, err := UnmarshalEnvelope(data)
		if err != nil {
			r.socket.logger.Warn("skipping malformed sync request", "error", err, "data", DescribeEnvelope(data))
			continue
		}
		reply, err := MarshalEnvelope(Envelope{Route: envelope.Route, Body: handler(envelope.Body)})
		if err != nil {
			return fmt.Errorf("encoding sync reply: %w", err)
		}
		if err := r.socket.write(reply); err != nil {
			if IsClosed(err) {
				return nil
			}
			return fmt.Errorf("sending sync reply: %w", err)
		}
	}
}

// Close closes the connection, unblocking Serve.
func (r *Responder) Close() error { return r.socket.close() }
