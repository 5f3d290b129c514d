// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/clock"
	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/layer"
	"github.com/opendcc/liveshare/lib/transfer"
)

const (
	defaultTaskQueueSize  = 1024
	defaultCatchUpTimeout = 2 * time.Second
)

// Options configures a Session. The zero value connects to a broker on
// the local machine's default ports.
type Options struct {
	Settings ConnectionSettings

	// Identity tags published messages. Zero takes the next identity
	// from NextIdentity.
	Identity Identity

	// TransferDir is the directory StageTransfer exports to and the path
	// handed to peers that ask to catch up. Empty means this session
	// has nothing to offer and answers catch-up requests empty.
	TransferDir string

	// Compression selects the snapshot codec for StageTransfer. Nil
	// selects zstd.
	Compression *layer.CompressionTag

	// Codec is the value registry for edit records. Defaults to
	// codec.Standard().
	Codec *codec.Registry

	// TaskQueueSize bounds the tasks waiting for Process. The listen
	// goroutine blocks when the queue is full. Defaults to 1024.
	TaskQueueSize int

	// CatchUpTimeout bounds the catch-up exchange at start. Defaults to
	// two seconds.
	CatchUpTimeout time.Duration

	// DialInitialInterval and DialMaxInterval shape the backoff used
	// while the broker is unreachable. Zero uses the bus defaults.
	DialInitialInterval time.Duration
	DialMaxInterval     time.Duration

	// DialTimeout bounds each connection attempt's handshake. Zero uses
	// the bus default.
	DialTimeout time.Duration

	// Clock drives dial backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives session diagnostics. Nil discards.
	Logger *slog.Logger
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	// Published counts records sent to the broker.
	Published uint64
	// Received counts peer messages accepted by the listen loop.
	Received uint64
	// SelfEchoDropped counts this session's own messages discarded on
	// receipt.
	SelfEchoDropped uint64
	// Batches counts incoming batches queued for Process.
	Batches uint64
	// DecodeFailures counts messages whose framing or record could not
	// be decoded.
	DecodeFailures uint64
}

// ErrAlreadyStarted is returned by Start on a session that was started
// before.
var ErrAlreadyStarted = errors.New("liveshare: session already started")

// Session shares the layers of one registry with every other session
// connected to the same broker. Stage and Stats may be called from any
// goroutine. Process and StageTransfer must be called from the
// goroutine that owns the registry's layers.
type Session struct {
	registry    *layer.Registry
	options     Options
	identity    Identity
	compression layer.CompressionTag
	codec       *codec.Registry
	logger      *slog.Logger

	// processing is set while Process runs a task, so that mutations
	// made by incoming edits are not staged and published again.
	processing atomic.Bool

	stagedMu sync.Mutex
	staged   []edit.Record
	signal   chan struct{}

	tasks chan func()

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	wg        sync.WaitGroup
	caughtUp  chan struct{}
	ready     chan struct{}

	socketsMu sync.Mutex
	sockets   map[io.Closer]struct{}
	stopped   bool

	cancelInterceptor func()
	cancelOnChanged   func()

	published       atomic.Uint64
	received        atomic.Uint64
	selfEchoDropped atomic.Uint64
	batches         atomic.Uint64
	decodeFailures  atomic.Uint64
}

// New returns a session sharing the layers of registry. Nothing is
// hooked or connected until Start.
func New(registry *layer.Registry, options Options) *Session {
	if options.Settings == (ConnectionSettings{}) {
		options.Settings = DefaultConnectionSettings()
	}
	if options.Identity == 0 {
		options.Identity = NextIdentity()
	}
	if options.Codec == nil {
		options.Codec = codec.Standard()
	}
	if options.TaskQueueSize <= 0 {
		options.TaskQueueSize = defaultTaskQueueSize
	}
	if options.CatchUpTimeout <= 0 {
		options.CatchUpTimeout = defaultCatchUpTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	compression := layer.CompressionZstd
	if options.Compression != nil {
		compression = *options.Compression
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		registry:    registry,
		options:     options,
		identity:    options.Identity,
		compression: compression,
		codec:       options.Codec,
		logger:      logger.With("session", options.Identity.String()),
		signal:      make(chan struct{}, 1),
		tasks:       make(chan func(), options.TaskQueueSize),
		ctx:         ctx,
		cancel:      cancel,
		caughtUp:    make(chan struct{}),
		ready:       make(chan struct{}),
		sockets:     make(map[io.Closer]struct{}),
	}
}

// Identity returns the identity this session publishes under.
func (s *Session) Identity() Identity { return s.identity }

// Ready is closed once the session is subscribed to the bus, has
// finished catching up, and answers catch-up requests. Edits staged
// after Ready are delivered to every session that is itself ready.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Start hooks the registry and starts the publish, listen, and serve
// goroutines. It does not wait for the broker; see Ready.
func (s *Session) Start() error {
	err := ErrAlreadyStarted
	s.startOnce.Do(func() {
		err = nil
		s.started.Store(true)
		s.cancelInterceptor = s.registry.RegisterInterceptor(s.intercept)
		s.cancelOnChanged = s.registry.OnChanged(s.changed)

		s.logger.Info("live share session starting",
			"listener", s.options.Settings.listenerAddress(),
			"publisher", s.options.Settings.publisherAddress(),
			"transfer_dir", s.options.TransferDir,
		)
		s.wg.Add(3)
		go s.publishLoop()
		go s.listenLoop()
		go s.serveLoop()
	})
	return err
}

// Stop stops the session: it signals every loop, force-closes their
// sockets (discarding unsent messages), waits for the loops to exit,
// then unhooks the registry. Tasks still queued for Process are
// discarded. Stop is idempotent and may be called without Start.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.closeSockets()
		s.wg.Wait()
		if s.cancelInterceptor != nil {
			s.cancelInterceptor()
			s.cancelOnChanged()
		}
		if s.started.Load() {
			s.logger.Info("live share session stopped", "stats", s.Stats())
		}
	})
}

// Stage queues r for publishing. It never blocks on the network.
func (s *Session) Stage(r edit.Record) {
	s.stagedMu.Lock()
	s.staged = append(s.staged, r)
	s.stagedMu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// takeStaged swaps the staged records out, holding the lock only for
// the swap.
func (s *Session) takeStaged() []edit.Record {
	s.stagedMu.Lock()
	defer s.stagedMu.Unlock()
	batch := s.staged
	s.staged = nil
	return batch
}

// Process runs every queued task on the calling goroutine and returns
// how many ran. It must be called periodically by the goroutine that
// owns the registry's layers; incoming edits are applied only here.
func (s *Session) Process() int {
	count := 0
	for {
		select {
		case task := <-s.tasks:
			s.processing.Store(true)
			task()
			s.processing.Store(false)
			count++
		default:
			return count
		}
	}
}

// StageTransfer exports the registry's dirty layers to the transfer
// directory so that sessions joining later can catch up from them.
// It must be called from the goroutine that owns the layers.
func (s *Session) StageTransfer() (transfer.Manifest, error) {
	if s.options.TransferDir == "" {
		return nil, errors.New("liveshare: no transfer directory configured")
	}
	return transfer.Stage(s.options.TransferDir, s.registry.Layers(), s.codec, s.compression)
}

// Stats returns the session's counters.
func (s *Session) Stats() Stats {
	return Stats{
		Published:       s.published.Load(),
		Received:        s.received.Load(),
		SelfEchoDropped: s.selfEchoDropped.Load(),
		Batches:         s.batches.Load(),
		DecodeFailures:  s.decodeFailures.Load(),
	}
}

// intercept stages every local mutation.
func (s *Session) intercept(r edit.Record) {
	if s.processing.Load() {
		return
	}
	s.Stage(r)
}

// changed closes the local transaction with a boundary.
func (s *Session) changed(layer.Notice) {
	if s.processing.Load() {
		return
	}
	s.Stage(edit.TransactionBoundary{})
}

// enqueue hands task to Process. It blocks while the queue is full and
// returns false if the session stops first.
func (s *Session) enqueue(task func()) bool {
	select {
	case s.tasks <- task:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// track registers a socket for force-closing on Stop. If Stop has
// already run, the socket is closed at once and track returns false.
func (s *Session) track(socket io.Closer) bool {
	s.socketsMu.Lock()
	defer s.socketsMu.Unlock()
	if s.stopped {
		socket.Close()
		return false
	}
	s.sockets[socket] = struct{}{}
	return true
}

func (s *Session) untrack(socket io.Closer) {
	s.socketsMu.Lock()
	delete(s.sockets, socket)
	s.socketsMu.Unlock()
	socket.Close()
}

func (s *Session) closeSockets() {
	s.socketsMu.Lock()
	s.stopped = true
	sockets := s.sockets
	s.sockets = nil
	s.socketsMu.Unlock()
	for socket := range sockets {
		socket.Close()
	}
}

func (s *Session) dialOptions() bus.DialOptions {
	return bus.DialOptions{
		Clock:            s.options.Clock,
		Logger:           s.logger,
		InitialInterval:  s.options.DialInitialInterval,
		MaxInterval:      s.options.DialMaxInterval,
		HandshakeTimeout: s.options.DialTimeout,
		Retry:            true,
	}
}
