// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opendcc/liveshare/lib/clock"
)

// Default ports.
const (
	DefaultSyncReceiverPort = 5559
	DefaultSyncSenderPort   = 5560
	DefaultListenerPort     = 5561
	DefaultPublisherPort    = 5562
)

// Config describes the broker's endpoints and limits.
type Config struct {
	// Host is the interface to bind. "*" binds all interfaces.
	Host string

	ListenerPort     int
	PublisherPort    int
	SyncSenderPort   int
	SyncReceiverPort int

	// SubscriberQueue is the number of messages buffered per subscriber
	// before further messages to it are dropped. Defaults to 1024.
	SubscriberQueue int

	// StatsInterval is how often forwarding counters are logged. Zero
	// disables stats logging.
	StatsInterval time.Duration

	// Clock drives the stats ticker. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives lifecycle and error messages. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns a config binding all interfaces on the default
// ports.
func DefaultConfig() Config {
	return Config{
		Host:             "*",
		ListenerPort:     DefaultListenerPort,
		PublisherPort:    DefaultPublisherPort,
		SyncSenderPort:   DefaultSyncSenderPort,
		SyncReceiverPort: DefaultSyncReceiverPort,
		SubscriberQueue:  1024,
		StatsInterval:    time.Minute,
	}
}

// Role names one of the broker's four endpoints.
type Role string

const (
	RoleListener     Role = "listener"
	RolePublisher    Role = "publisher"
	RoleSyncSender   Role = "sync-sender"
	RoleSyncReceiver Role = "sync-receiver"
)

// Stats is a snapshot of the broker's counters.
type Stats struct {
	Subscribers int
	Responders  int

	// Published counts messages received on the publisher port.
	Published uint64
	// Delivered counts messages queued to subscribers.
	Delivered uint64
	// Dropped counts messages discarded because a subscriber's queue
	// was full.
	Dropped uint64

	// Requests counts sync requests received.
	Requests uint64
	// Unanswered counts requests answered empty because no responder
	// was connected or the chosen responder went away.
	Unanswered uint64
	// Replies counts responder replies routed back to a requester.
	Replies uint64
}

// Broker is the forwarding broker. Create it with New, bind its ports
// with Listen, then run it with Serve.
type Broker struct {
	config Config
	logger *slog.Logger
	clock  clock.Clock

	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners map[Role]net.Listener

	edits *editBus
	sync  *syncRouter
}

// New returns a broker for config. Nothing is bound until Listen.
func New(config Config) *Broker {
	if config.SubscriberQueue <= 0 {
		config.SubscriberQueue = 1024
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broker{
		config: config,
		logger: logger,
		clock:  config.Clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// Peers are native processes, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		edits: newEditBus(config.SubscriberQueue, logger),
		sync:  newSyncRouter(logger),
	}
}

// BindAddress returns the host:port the broker binds for port. Host "*"
// and the empty host bind all interfaces.
func BindAddress(host string, port int) string {
	if host == "*" || host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Listen binds all four ports. If any bind fails, the ports already
// bound are released and the error names the failing endpoint.
func (b *Broker) Listen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners != nil {
		return errors.New("broker: already listening")
	}

	endpoints := []struct {
		role Role
		port int
	}{
		{RoleListener, b.config.ListenerPort},
		{RolePublisher, b.config.PublisherPort},
		{RoleSyncSender, b.config.SyncSenderPort},
		{RoleSyncReceiver, b.config.SyncReceiverPort},
	}
	listeners := make(map[Role]net.Listener, len(endpoints))
	for _, endpoint := range endpoints {
		address := BindAddress(b.config.Host, endpoint.port)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			for _, bound := range listeners {
				bound.Close()
			}
			return fmt.Errorf("binding %s endpoint on %s: %w", endpoint.role, address, err)
		}
		listeners[endpoint.role] = listener
	}
	b.listeners = listeners
	return nil
}

// Addr returns the bound address of an endpoint, or nil before Listen.
func (b *Broker) Addr(role Role) net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if listener, ok := b.listeners[role]; ok {
		return listener.Addr()
	}
	return nil
}

// Port returns the bound port of an endpoint, or 0 before Listen.
// Useful when the config asked for port 0.
func (b *Broker) Port(role Role) int {
	if tcp, ok := b.Addr(role).(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Serve forwards traffic until ctx is cancelled, then closes every
// listener and connection. It returns nil on cancellation and the first
// server error otherwise.
func (b *Broker) Serve(ctx context.Context) error {
	b.mu.Lock()
	listeners := b.listeners
	b.mu.Unlock()
	if listeners == nil {
		return errors.New("broker: Serve called before Listen")
	}

	handlers := map[Role]http.HandlerFunc{
		RoleListener:     b.handleSubscriber,
		RolePublisher:    b.handlePublisher,
		RoleSyncSender:   b.handleResponder,
		RoleSyncReceiver: b.handleRequester,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(listeners))
	var servers []*http.Server
	for role, listener := range listeners {
		listener := listener
		server := &http.Server{
			Handler:           handlers[role],
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, server)
		b.logger.Info("broker endpoint listening", "role", string(role), "address", listener.Addr().String())
		go func() {
			err := server.Serve(listener)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errs <- err
		}()
	}

	if b.config.StatsInterval > 0 {
		go b.logStats(ctx)
	}

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errs:
		if firstErr != nil {
			b.logger.Error("broker endpoint failed", "error", firstErr)
		}
	}

	// http.Server.Close does not touch hijacked connections, so the
	// websocket peers are closed separately.
	for _, server := range servers {
		server.Close()
	}
	b.edits.closeAll()
	b.sync.closeAll()
	return firstErr
}

// Stats returns the current counters.
func (b *Broker) Stats() Stats {
	var stats Stats
	b.edits.stats(&stats)
	b.sync.stats(&stats)
	return stats
}

func (b *Broker) logStats(ctx context.Context) {
	ticker := b.clock.NewTicker(b.config.StatsInterval)
	defer ticker.Stop()
	var last Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats := b.Stats()
		if stats == last {
			continue
		}
		last = stats
		b.logger.Info("broker stats",
			"subscribers", stats.Subscribers,
			"responders", stats.Responders,
			"published", stats.Published,
			"delivered", stats.Delivered,
			"dropped", stats.Dropped,
			"requests", stats.Requests,
			"replies", stats.Replies,
			"unanswered", stats.Unanswered,
		)
	}
}

func (b *Broker) upgrade(w http.ResponseWriter, r *http.Request, role Role) *websocket.Conn {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		b.logger.Warn("rejecting non-websocket connection", "role", string(role), "remote", r.RemoteAddr, "error", err)
		return nil
	}
	return conn
}
