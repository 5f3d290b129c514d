// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"fmt"

	"github.com/opendcc/liveshare/lib/broker"
	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/config"
	"github.com/opendcc/liveshare/lib/layer"
)

// ConnectionSettings locates the broker.
type ConnectionSettings struct {
	Hostname         string
	ListenerPort     int
	PublisherPort    int
	SyncSenderPort   int
	SyncReceiverPort int
}

// DefaultConnectionSettings returns settings for a broker on the local
// machine using the default ports.
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		Hostname:         "127.0.0.1",
		ListenerPort:     broker.DefaultListenerPort,
		PublisherPort:    broker.DefaultPublisherPort,
		SyncSenderPort:   broker.DefaultSyncSenderPort,
		SyncReceiverPort: broker.DefaultSyncReceiverPort,
	}
}

// OptionsFromConfig builds session options from the live_share section
// of a config file. Fields the section leaves at zero keep the session
// defaults; an empty compression selects zstd.
func OptionsFromConfig(cfg config.LiveShareConfig) (Options, error) {
	compression, err := layer.ParseCompressionTag(cfg.Compression)
	if err != nil {
		return Options{}, fmt.Errorf("live_share.compression: %w", err)
	}
	return Options{
		Settings: ConnectionSettings{
			Hostname:         cfg.Hostname,
			ListenerPort:     cfg.ListenerPort,
			PublisherPort:    cfg.PublisherPort,
			SyncSenderPort:   cfg.SyncSenderPort,
			SyncReceiverPort: cfg.SyncReceiverPort,
		},
		TransferDir:    cfg.TransferDir,
		Compression:    &compression,
		TaskQueueSize:  cfg.TaskQueueSize,
		CatchUpTimeout: cfg.CatchUpTimeout,
		DialTimeout:    cfg.DialTimeout,
	}, nil
}

func (c ConnectionSettings) listenerAddress() string {
	return bus.Address(c.Hostname, c.ListenerPort)
}

func (c ConnectionSettings) publisherAddress() string {
	return bus.Address(c.Hostname, c.PublisherPort)
}

// Sessions answer catch-up requests on the broker's sync sender port
// and send their own to the sync receiver port.
func (c ConnectionSettings) responderAddress() string {
	return bus.Address(c.Hostname, c.SyncSenderPort)
}

func (c ConnectionSettings) requesterAddress() string {
	return bus.Address(c.Hostname, c.SyncReceiverPort)
}
