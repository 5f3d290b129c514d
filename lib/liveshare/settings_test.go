// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/config"
	"github.com/opendcc/liveshare/lib/layer"
	"github.com/opendcc/liveshare/lib/testutil"
	"github.com/opendcc/liveshare/lib/transfer"
	"github.com/opendcc/liveshare/lib/value"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().LiveShare
	cfg.Hostname = "broker.studio"
	cfg.TransferDir = "/srv/liveshare"
	cfg.CatchUpTimeout = 750 * time.Millisecond
	cfg.DialTimeout = 3 * time.Second

	options, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if options.Settings.listenerAddress() != bus.Address("broker.studio", 5561) {
		t.Errorf("listener address = %q", options.Settings.listenerAddress())
	}
	if options.Settings.requesterAddress() != bus.Address("broker.studio", 5559) {
		t.Errorf("requester address = %q", options.Settings.requesterAddress())
	}
	if options.Settings.responderAddress() != bus.Address("broker.studio", 5560) {
		t.Errorf("responder address = %q", options.Settings.responderAddress())
	}
	if options.TransferDir != "/srv/liveshare" || options.CatchUpTimeout != 750*time.Millisecond ||
		options.DialTimeout != 3*time.Second || options.TaskQueueSize != 1024 {
		t.Errorf("options = %+v", options)
	}
	if options.DialMaxInterval != 0 {
		t.Errorf("DialMaxInterval = %v, want the bus default", options.DialMaxInterval)
	}
	session := New(layer.NewRegistry(), options)
	if got := session.dialOptions().HandshakeTimeout; got != 3*time.Second {
		t.Errorf("HandshakeTimeout = %v, want the configured dial timeout", got)
	}
}

func TestOptionsFromConfigCompression(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		want    layer.CompressionTag
	}{
		{"default", config.Default().LiveShare.Compression, layer.CompressionZstd},
		{"unset", "", layer.CompressionZstd},
		{"none", "none", layer.CompressionNone},
		{"lz4", "lz4", layer.CompressionLZ4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().LiveShare
			cfg.Compression = tt.setting
			options, err := OptionsFromConfig(cfg)
			if err != nil {
				t.Fatalf("OptionsFromConfig: %v", err)
			}
			if options.Compression == nil || *options.Compression != tt.want {
				t.Fatalf("Compression = %v, want %v", options.Compression, tt.want)
			}
			if got := New(layer.NewRegistry(), options).compression; got != tt.want {
				t.Errorf("session compression = %v, want %v", got, tt.want)
			}
		})
	}

	cfg := config.Default().LiveShare
	cfg.Compression = "brotli"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("unknown compression accepted")
	}
}

// stagedTag stages registry with options and returns the compression
// tag recorded in the one snapshot's header.
func stagedTag(t *testing.T, registry *layer.Registry, options Options) layer.CompressionTag {
	t.Helper()
	options.TransferDir = testutil.TransferDir(t)
	manifest, err := New(registry, options).StageTransfer()
	if err != nil {
		t.Fatalf("StageTransfer: %v", err)
	}
	if len(manifest) != 1 {
		t.Fatalf("manifest = %v", manifest)
	}
	for _, relative := range manifest {
		path, err := transfer.Resolve(options.TransferDir, relative)
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) < 6 {
			t.Fatalf("snapshot is %d bytes", len(data))
		}
		return layer.CompressionTag(data[5])
	}
	return 0
}

func TestStageTransferDefaultsToZstd(t *testing.T) {
	registry := layer.NewRegistry()
	scene := registry.Open("crowd.usda")
	for i := 0; i < 64; i++ {
		path := value.Path("/Crowd_" + strconv.Itoa(i))
		if err := scene.CreateSpec(path, value.SpecTypePrim, false); err != nil {
			t.Fatal(err)
		}
		if err := scene.SetField(path, "kind", value.Of(value.Token("component"))); err != nil {
			t.Fatal(err)
		}
	}

	if tag := stagedTag(t, registry, Options{}); tag != layer.CompressionZstd {
		t.Errorf("default snapshot tag = %v, want zstd", tag)
	}
	none := layer.CompressionNone
	if tag := stagedTag(t, registry, Options{Compression: &none}); tag != layer.CompressionNone {
		t.Errorf("explicit none snapshot tag = %v", tag)
	}
}

func TestDefaultConnectionSettings(t *testing.T) {
	session := New(layer.NewRegistry(), Options{})
	if session.options.Settings != DefaultConnectionSettings() {
		t.Errorf("settings = %+v", session.options.Settings)
	}
	if got := session.options.Settings.publisherAddress(); got != bus.Address("127.0.0.1", 5562) {
		t.Errorf("publisher address = %q", got)
	}
}
