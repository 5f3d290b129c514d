// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// liveshare-tail subscribes to a live-share broker's listener port and
// prints every edit published by any session: the sending session's
// identity and a one-line description of the decoded record.
//
// Output is an aligned table on a terminal and JSON lines otherwise;
// --json forces JSON lines. --count stops after that many messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/config"
	"github.com/opendcc/liveshare/lib/process"
	"github.com/opendcc/liveshare/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	host        string
	port        int
	forceJSON   bool
	count       int
	logLevel    string
	showVersion bool
	showHelp    bool

	flagSet *pflag.FlagSet
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("liveshare-tail", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.host, "host", "", "broker host (default: live_share.hostname)")
	flagSet.IntVar(&opts.port, "port", 0, "broker listener port (default: live_share.listener_port)")
	flagSet.BoolVar(&opts.forceJSON, "json", false, "print JSON lines even on a terminal")
	flagSet.IntVarP(&opts.count, "count", "n", 0, "exit after this many messages (0 for no limit)")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
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
	if opts.count < 0 {
		return nil, fmt.Errorf("--count must not be negative")
	}
	opts.flagSet = flagSet
	return opts, nil
}

// address resolves the listener address from the config file and the
// flags the user set explicitly.
func (o *options) address() (string, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	host, port := cfg.LiveShare.Hostname, cfg.LiveShare.ListenerPort
	if o.flagSet.Changed("host") {
		host = o.host
	}
	if o.flagSet.Changed("port") {
		port = o.port
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid listener port %d", port)
	}
	return bus.Address(host, port), nil
}

// isTerminal reports whether w is a terminal. Anything that is not an
// *os.File is treated as a pipe.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		fmt.Fprintf(stderr, "Usage: liveshare-tail [flags]\n\nFlags:\n%s", opts.flagSet.FlagUsages())
		return nil
	}
	if opts.showVersion {
		version.Print("liveshare-tail")
		return nil
	}

	logger, err := process.NewLogger(stderr, opts.logLevel)
	if err != nil {
		return err
	}
	address, err := opts.address()
	if err != nil {
		return err
	}

	subscriber, err := bus.DialSubscriber(ctx, address, bus.DialOptions{Logger: logger, Retry: true})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer subscriber.Close()
	logger.Info("subscribed", "address", address)

	var out printer
	if opts.forceJSON || !isTerminal(stdout) {
		out = newJSONPrinter(stdout)
	} else {
		out = newTablePrinter(stdout)
	}
	defer out.Flush()

	return tail(ctx, subscriber, out, opts.count)
}

// receiver is the part of bus.Subscriber the tail loop uses.
type receiver interface {
	Receive(ctx context.Context) ([]byte, error)
}

// tail prints messages until ctx ends, the broker goes away, or limit
// messages have been printed. A zero limit means no limit.
func tail(ctx context.Context, source receiver, out printer, limit int) error {
	registry := codec.Standard()
	for printed := 0; limit == 0 || printed < limit; printed++ {
		message, err := source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if bus.IsClosed(err) {
				return errors.New("broker closed the connection")
			}
			return fmt.Errorf("receiving: %w", err)
		}
		if err := out.Print(decodeEntry(registry, message)); err != nil {
			return err
		}
	}
	return nil
}
