// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// liveshare-broker forwards live-share traffic between sessions. It
// binds four ports: sessions publish edits to the publisher port and
// receive every published edit on the listener port; catch-up requests
// arrive on the sync receiver port and are routed to a session
// connected on the sync sender port.
//
// The broker holds no state beyond its connections. If a port cannot be
// bound it reports the error and exits 0, so a supervisor does not
// restart it into the same conflict.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/opendcc/liveshare/lib/broker"
	"github.com/opendcc/liveshare/lib/config"
	"github.com/opendcc/liveshare/lib/process"
	"github.com/opendcc/liveshare/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		var bind *bindError
		if errors.As(err, &bind) {
			process.Exit(err, 0)
		}
		process.Fatal(err)
	}
}

// bindError marks a failure to bind one of the broker's ports.
type bindError struct{ err error }

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

type options struct {
	configPath    string
	host          string
	listener      int
	publisher     int
	syncSender    int
	syncReceiver  int
	queue         int
	statsInterval time.Duration
	logLevel      string
	showVersion   bool
	showHelp      bool

	flagSet *pflag.FlagSet
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("liveshare-broker", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.host, "host", "*", "interface to bind (* for all)")
	flagSet.IntVar(&opts.listener, "listener", broker.DefaultListenerPort, "port sessions receive edits on")
	flagSet.IntVar(&opts.publisher, "publisher", broker.DefaultPublisherPort, "port sessions publish edits to")
	flagSet.IntVar(&opts.syncSender, "sync-sender-port", broker.DefaultSyncSenderPort, "port sessions answer catch-up requests on")
	flagSet.IntVar(&opts.syncReceiver, "sync-receiver-port", broker.DefaultSyncReceiverPort, "port sessions send catch-up requests to")
	flagSet.IntVar(&opts.queue, "subscriber-queue", 1024, "messages buffered per subscriber before dropping")
	flagSet.DurationVar(&opts.statsInterval, "stats-interval", time.Minute, "how often to log forwarding counters (0 disables)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			opts.flagSet = flagSet
			return opts, nil
		}
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	opts.flagSet = flagSet
	return opts, nil
}

// loadConfig reads the config file, then applies the flags the user set
// explicitly. Flags left at their defaults do not override the file.
func (o *options) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	changed := o.flagSet.Changed
	if changed("host") {
		cfg.Broker.Host = o.host
	}
	if changed("listener") {
		cfg.Broker.ListenerPort = o.listener
	}
	if changed("publisher") {
		cfg.Broker.PublisherPort = o.publisher
	}
	if changed("sync-sender-port") {
		cfg.Broker.SyncSenderPort = o.syncSender
	}
	if changed("sync-receiver-port") {
		cfg.Broker.SyncReceiverPort = o.syncReceiver
	}
	if changed("subscriber-queue") {
		cfg.Broker.SubscriberQueue = o.queue
	}
	if changed("stats-interval") {
		cfg.Broker.StatsInterval = o.statsInterval
	}
	if changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
		Host:             cfg.Broker.Host,
		ListenerPort:     cfg.Broker.ListenerPort,
		PublisherPort:    cfg.Broker.PublisherPort,
		SyncSenderPort:   cfg.Broker.SyncSenderPort,
		SyncReceiverPort: cfg.Broker.SyncReceiverPort,
		SubscriberQueue:  cfg.Broker.SubscriberQueue,
		StatsInterval:    cfg.Broker.StatsInterval,
	}
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		fmt.Fprintf(stderr, "Usage: liveshare-broker [flags]\n\nFlags:\n%s", opts.flagSet.FlagUsages())
		return nil
	}
	if opts.showVersion {
		version.Print("liveshare-broker")
		return nil
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := process.NewLogger(stderr, cfg.Logging.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := brokerConfig(cfg)
	settings.Logger = logger
	b := broker.New(settings)
	if err := b.Listen(); err != nil {
		return &bindError{err: err}
	}

	logger.Info("liveshare broker running",
		"version", version.Info(),
		"host", cfg.Broker.Host,
		"listener", b.Port(broker.RoleListener),
		"publisher", b.Port(broker.RolePublisher),
		"sync_sender", b.Port(broker.RoleSyncSender),
		"sync_receiver", b.Port(broker.RoleSyncReceiver),
	)

	if err := b.Serve(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	stats := b.Stats()
	logger.Info("shutting down",
		"published", stats.Published,
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"requests", stats.Requests,
	)
	return nil
}
