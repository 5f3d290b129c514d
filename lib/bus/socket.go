// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/opendcc/liveshare/lib/clock"
	"github.com/opendcc/liveshare/lib/netutil"
)

// ErrClosed is returned by operations on a socket after Close.
var ErrClosed = errors.New("bus: socket closed")

// DialOptions configures how a socket connects to the broker.
type DialOptions struct {
	// Clock drives retry delays. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives retry and teardown diagnostics. Nil discards.
	Logger *slog.Logger

	// InitialInterval is the delay before the first retry. Defaults to
	// 50ms.
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries. Defaults to 2s.
	MaxInterval time.Duration

	// Retry keeps dialing, with exponential backoff, until the broker
	// answers or the context ends. When false a single failed attempt
	// is returned immediately.
	Retry bool

	// HandshakeTimeout bounds one attempt's websocket handshake and,
	// for subscribers and responders, the wait for the registration
	// frame. Defaults to 5s.
	HandshakeTimeout time.Duration
}

func (o DialOptions) withDefaults() DialOptions {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 50 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 2 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	return o
}

// Address returns the websocket URL for a broker port. Host "*" and the
// empty host mean the local machine.
func Address(host string, port int) string {
	if host == "" || host == "*" {
		host = "127.0.0.1"
	}
	return (&url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: "/"}).String()
}

// socket is the connection shared by all four socket kinds. Gorilla
// connections allow one concurrent reader and one concurrent writer;
// writeMu serializes writers, and each socket kind has a single reader.
type socket struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newSocket(conn *websocket.Conn, logger *slog.Logger) *socket {
	return &socket{conn: conn, logger: logger, closed: make(chan struct{})}
}

func (s *socket) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// read returns the next non-empty binary frame.
func (s *socket) read() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return nil, ErrClosed
			default:
			}
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			s.logger.Debug("ignoring non-binary frame", "type", messageType)
			continue
		}
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
}

// readContext is read bounded by ctx. Cancelling ctx closes the socket,
// since a gorilla read cannot otherwise be interrupted.
func (s *socket) readContext(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { s.close() })
	data, err := s.read()
	if !stop() && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return data, err
}

// close tears the connection down without a close handshake: unsent
// frames are discarded and a blocked reader returns immediately.
func (s *socket) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	if netutil.IsExpectedCloseError(err) {
		return nil
	}
	return err
}

// dial connects to address, retrying per options. When awaitRegistration
// is set it also waits for the broker's zero-length registration frame.
func dial(ctx context.Context, address string, awaitRegistration bool, options DialOptions) (*websocket.Conn, error) {
	options = options.withDefaults()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = options.InitialInterval
	policy.MaxInterval = options.MaxInterval
	policy.MaxElapsedTime = 0
	policy.Clock = options.Clock
	policy.Reset()

	for attempt := 1; ; attempt++ {
		conn, err := dialOnce(ctx, address, awaitRegistration, options.HandshakeTimeout)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !options.Retry {
			return nil, err
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return nil, err
		}
		options.Logger.Debug("broker dial failed, retrying",
			"address", address,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-options.Clock.After(wait):
		}
	}
}

func dialOnce(ctx context.Context, address string, awaitRegistration bool, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	if !awaitRegistration {
		return conn, nil
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for registration from %s: %w", address, err)
	}
	if messageType != websocket.BinaryMessage || len(data) != 0 {
		conn.Close()
		return nil, fmt.Errorf("unexpected registration frame from %s (type %d, %d bytes)", address, messageType, len(data))
	}
	conn.SetReadDeadline(time.Time{})
	return conn, nil
}

// IsClosed reports whether err is the expected result of a socket or
// its peer going away: a local Close, a cancelled context, a websocket
// close frame, or an ordinary connection teardown error. Worker loops
// treat these as a signal to exit quietly.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return netutil.IsExpectedCloseError(err)
}
