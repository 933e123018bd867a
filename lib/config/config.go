// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the AgentProof
// service.
//
// Configuration is loaded from a single YAML file specified by:
//   - AGENTPROOF_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is
// the single source of truth; environment variables never override
// file values. This keeps configuration deterministic and auditable.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the AgentProof service.
type Config struct {
	// SocketPath is the Unix socket the service listens on.
	SocketPath string `yaml:"socket_path"`

	// Store configures the persistence backend.
	Store StoreConfig `yaml:"store"`

	// Challenge configures the challenge lifecycle.
	Challenge ChallengeConfig `yaml:"challenge"`

	// Trust configures the automatic trust promotion thresholds.
	Trust TrustConfig `yaml:"trust"`

	// Anchor configures external ledger anchoring.
	Anchor AnchorConfig `yaml:"anchor"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file. Required when Backend is
	// "sqlite", ignored otherwise.
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size. Default: 4.
	PoolSize int `yaml:"pool_size"`
}

// ChallengeConfig configures challenge issuance and expiry. Durations
// use Go syntax ("5m", "90s").
type ChallengeConfig struct {
	// TTL is how long a challenge stays redeemable. Default: 5m.
	TTL string `yaml:"ttl"`

	// SweepInterval is how often expired challenges are purged.
	// Default: 1m.
	SweepInterval string `yaml:"sweep_interval"`
}

// TrustConfig holds the promotion thresholds. A tier requires both
// its age and its activity count.
type TrustConfig struct {
	// ActiveDays and ActiveActivities gate the confirmed → active
	// promotion. Defaults: 7 days, 10 activities.
	ActiveDays       int   `yaml:"active_days"`
	ActiveActivities int64 `yaml:"active_activities"`

	// TrustedDays and TrustedActivities gate the active → trusted
	// promotion. Defaults: 30 days, 30 activities.
	TrustedDays       int   `yaml:"trusted_days"`
	TrustedActivities int64 `yaml:"trusted_activities"`
}

// AnchorConfig configures external ledger anchoring.
type AnchorConfig struct {
	// Mode is "off" (no anchoring), "memory" (in-process, for
	// development), or "solana".
	Mode string `yaml:"mode"`

	// RPCURL is the cluster JSON-RPC endpoint. Required for mode
	// "solana".
	RPCURL string `yaml:"rpc_url"`

	// Commitment is the confirmation level for blockhash fetches and
	// transaction lookups. Default: confirmed.
	Commitment string `yaml:"commitment"`

	// KeypairPath is the file holding the base58-encoded Ed25519
	// private key that signs and funds anchor transactions. Required
	// for mode "solana".
	KeypairPath string `yaml:"keypair_path"`

	// QueueSize bounds the pending anchor jobs. Default: 256.
	QueueSize int `yaml:"queue_size"`
}

// Default returns the default configuration. These defaults are the
// base that the config file is merged over; the file itself is still
// required for Load.
func Default() *Config {
	return &Config{
		SocketPath: "/run/agentproof/agentproof.sock",
		Store: StoreConfig{
			Backend:  "memory",
			PoolSize: 4,
		},
		Challenge: ChallengeConfig{
			TTL:           "5m",
			SweepInterval: "1m",
		},
		Trust: TrustConfig{
			ActiveDays:        7,
			ActiveActivities:  10,
			TrustedDays:       30,
			TrustedActivities: 30,
		},
		Anchor: AnchorConfig{
			Mode:       "off",
			Commitment: "confirmed",
			QueueSize:  256,
		},
	}
}

// Load loads configuration from the AGENTPROOF_CONFIG environment
// variable. There are no fallbacks: if the variable is unset, Load
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("AGENTPROOF_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("AGENTPROOF_CONFIG environment variable not set; " +
			"set it to the path of your agentproof.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be memory or sqlite, got %q", c.Store.Backend))
	}

	if _, err := time.ParseDuration(c.Challenge.TTL); err != nil {
		errs = append(errs, fmt.Errorf("challenge.ttl: %w", err))
	}
	if _, err := time.ParseDuration(c.Challenge.SweepInterval); err != nil {
		errs = append(errs, fmt.Errorf("challenge.sweep_interval: %w", err))
	}

	if c.Trust.ActiveDays <= 0 || c.Trust.TrustedDays <= 0 {
		errs = append(errs, fmt.Errorf("trust day thresholds must be positive"))
	}
	if c.Trust.ActiveActivities <= 0 || c.Trust.TrustedActivities <= 0 {
		errs = append(errs, fmt.Errorf("trust activity thresholds must be positive"))
	}

	switch c.Anchor.Mode {
	case "off", "memory":
	case "solana":
		if c.Anchor.RPCURL == "" {
			errs = append(errs, fmt.Errorf("anchor.rpc_url is required for the solana mode"))
		}
		if c.Anchor.KeypairPath == "" {
			errs = append(errs, fmt.Errorf("anchor.keypair_path is required for the solana mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("anchor.mode must be off, memory, or solana, got %q", c.Anchor.Mode))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ChallengeTTL returns the parsed challenge TTL. Call Validate first;
// a malformed duration here falls back to the default.
func (c *Config) ChallengeTTL() time.Duration {
	ttl, err := time.ParseDuration(c.Challenge.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return ttl
}

// SweepInterval returns the parsed expiry sweep interval.
func (c *Config) SweepInterval() time.Duration {
	interval, err := time.ParseDuration(c.Challenge.SweepInterval)
	if err != nil {
		return time.Minute
	}
	return interval
}
