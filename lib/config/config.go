// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "LIVESHARE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for a single workstation running its own broker.
	Development Environment = "development"
	// Production is for a shared broker serving a studio network.
	Production Environment = "production"
)

// Config is the master configuration for live-share components.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// LiveShare configures sessions: where the broker is and how long
	// to wait for it.
	LiveShare LiveShareConfig `yaml:"live_share"`

	// Broker configures the forwarding broker process.
	Broker BrokerConfig `yaml:"broker"`

	// Logging configures diagnostics for every binary.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values leave the base setting in place.
type ConfigOverrides struct {
	LiveShare *LiveShareConfig `yaml:"live_share,omitempty"`
	Broker    *BrokerConfig    `yaml:"broker,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// LiveShareConfig configures a session's connection to the broker.
type LiveShareConfig struct {
	// Hostname is the broker host sessions connect to.
	// Default: 127.0.0.1
	Hostname string `yaml:"hostname"`

	// Ports on the broker. Defaults: 5561, 5562, 5560, 5559.
	ListenerPort     int `yaml:"listener_port"`
	PublisherPort    int `yaml:"publisher_port"`
	SyncSenderPort   int `yaml:"sync_sender_port"`
	SyncReceiverPort int `yaml:"sync_receiver_port"`

	// TransferDir is where a session stages layer snapshots for peers
	// that join late. Supports ${HOME} and ${TMPDIR} expansion.
	// Default: ${TMPDIR:-/tmp}/liveshare
	TransferDir string `yaml:"transfer_dir"`

	// Compression is the snapshot codec for staged transfers: none,
	// lz4, or zstd.
	// Default: zstd
	Compression string `yaml:"compression"`

	// DialTimeout bounds the handshake of each connection attempt.
	// Default: 2s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// CatchUpTimeout bounds the content catch-up exchange at start.
	// Default: 2s
	CatchUpTimeout time.Duration `yaml:"catch_up_timeout"`

	// TaskQueueSize bounds incoming batches waiting to be applied.
	// Default: 1024
	TaskQueueSize int `yaml:"task_queue_size"`
}

// BrokerConfig configures the forwarding broker.
type BrokerConfig struct {
	// Host is the bind address. "*" binds all interfaces.
	// Default: *
	Host string `yaml:"host"`

	// Ports to bind. Defaults: 5561, 5562, 5560, 5559.
	ListenerPort     int `yaml:"listener_port"`
	PublisherPort    int `yaml:"publisher_port"`
	SyncSenderPort   int `yaml:"sync_sender_port"`
	SyncReceiverPort int `yaml:"sync_receiver_port"`

	// SubscriberQueue is the number of messages buffered per
	// subscriber before messages for it are dropped.
	// Default: 1024
	SubscriberQueue int `yaml:"subscriber_queue"`

	// StatsInterval is how often forwarding counters are logged.
	// Zero disables the report.
	// Default: 1m
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// LoggingConfig configures diagnostics.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info (development), warn (production)
	Level string `yaml:"level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		LiveShare: LiveShareConfig{
			Hostname:         "127.0.0.1",
			ListenerPort:     5561,
			PublisherPort:    5562,
			SyncSenderPort:   5560,
			SyncReceiverPort: 5559,
			TransferDir:      "${TMPDIR:-/tmp}/liveshare",
			Compression:      "zstd",
			DialTimeout:      2 * time.Second,
			CatchUpTimeout:   2 * time.Second,
			TaskQueueSize:    1024,
		},
		Broker: BrokerConfig{
			Host:             "*",
			ListenerPort:     5561,
			PublisherPort:    5562,
			SyncSenderPort:   5560,
			SyncReceiverPort: 5559,
			SubscriberQueue:  1024,
			StatsInterval:    time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the LIVESHARE_CONFIG environment
// variable. If the variable is not set, Load returns the expanded
// defaults: every live-share binary runs against a local broker with no
// configuration file at all.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${HOME}, ${TMPDIR} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if o := overrides.LiveShare; o != nil {
		overrideString(&c.LiveShare.Hostname, o.Hostname)
		overrideInt(&c.LiveShare.ListenerPort, o.ListenerPort)
		overrideInt(&c.LiveShare.PublisherPort, o.PublisherPort)
		overrideInt(&c.LiveShare.SyncSenderPort, o.SyncSenderPort)
		overrideInt(&c.LiveShare.SyncReceiverPort, o.SyncReceiverPort)
		overrideString(&c.LiveShare.TransferDir, o.TransferDir)
		overrideString(&c.LiveShare.Compression, o.Compression)
		overrideDuration(&c.LiveShare.DialTimeout, o.DialTimeout)
		overrideDuration(&c.LiveShare.CatchUpTimeout, o.CatchUpTimeout)
		overrideInt(&c.LiveShare.TaskQueueSize, o.TaskQueueSize)
	}

	if o := overrides.Broker; o != nil {
		overrideString(&c.Broker.Host, o.Host)
		overrideInt(&c.Broker.ListenerPort, o.ListenerPort)
		overrideInt(&c.Broker.PublisherPort, o.PublisherPort)
		overrideInt(&c.Broker.SyncSenderPort, o.SyncSenderPort)
		overrideInt(&c.Broker.SyncReceiverPort, o.SyncReceiverPort)
		overrideInt(&c.Broker.SubscriberQueue, o.SubscriberQueue)
		overrideDuration(&c.Broker.StatsInterval, o.StatsInterval)
	}

	if o := overrides.Logging; o != nil {
		overrideString(&c.Logging.Level, o.Level)
	}
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func overrideInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func overrideDuration(dst *time.Duration, value time.Duration) {
	if value != 0 {
		*dst = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":   os.Getenv("HOME"),
		"TMPDIR": os.Getenv("TMPDIR"),
	}
	c.LiveShare.TransferDir = filepath.Clean(expandVars(c.LiveShare.TransferDir, vars))
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.LiveShare.Hostname == "" {
		errs = append(errs, fmt.Errorf("live_share.hostname is required"))
	}
	for name, port := range map[string]int{
		"live_share.listener_port":      c.LiveShare.ListenerPort,
		"live_share.publisher_port":     c.LiveShare.PublisherPort,
		"live_share.sync_sender_port":   c.LiveShare.SyncSenderPort,
		"live_share.sync_receiver_port": c.LiveShare.SyncReceiverPort,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s must be in 1..65535, got %d", name, port))
		}
	}
	// Port 0 asks the kernel for an ephemeral port.
	for name, port := range map[string]int{
		"broker.listener_port":      c.Broker.ListenerPort,
		"broker.publisher_port":     c.Broker.PublisherPort,
		"broker.sync_sender_port":   c.Broker.SyncSenderPort,
		"broker.sync_receiver_port": c.Broker.SyncReceiverPort,
	} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s must be in 0..65535, got %d", name, port))
		}
	}
	if len(c.LiveShare.TransferDir) > 255 {
		errs = append(errs, fmt.Errorf("live_share.transfer_dir is longer than 255 bytes"))
	}
	if c.LiveShare.Compression != "" && !contains([]string{"none", "lz4", "zstd"}, c.LiveShare.Compression) {
		errs = append(errs, fmt.Errorf("live_share.compression must be none, lz4, or zstd, got %q", c.LiveShare.Compression))
	}
	if c.LiveShare.TaskQueueSize < 0 {
		errs = append(errs, fmt.Errorf("live_share.task_queue_size must not be negative"))
	}
	if c.Broker.SubscriberQueue < 0 {
		errs = append(errs, fmt.Errorf("broker.subscriber_queue must not be negative"))
	}
	if c.Broker.StatsInterval < 0 {
		errs = append(errs, fmt.Errorf("broker.stats_interval must not be negative"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
