// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/anchor"
	"github.com/agentproof-foundation/agentproof/lib/attest/ledger"
	"github.com/agentproof-foundation/agentproof/lib/attest/store"
	"github.com/agentproof-foundation/agentproof/lib/attest/verify"
	"github.com/agentproof-foundation/agentproof/lib/clock"
	"github.com/agentproof-foundation/agentproof/lib/config"
	"github.com/agentproof-foundation/agentproof/lib/identity"
	"github.com/agentproof-foundation/agentproof/lib/service"
	"github.com/agentproof-foundation/agentproof/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to the YAML config file (overrides AGENTPROOF_CONFIG)")
	flag.Parse()

	if showVersion {
		fmt.Printf("agentproof-service %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := service.NewLogger()
	clk := clock.Real()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence backend.
	var backend store.Store
	switch cfg.Store.Backend {
	case "sqlite":
		backend, err = store.OpenSQLite(store.SQLiteConfig{
			Path:     cfg.Store.Path,
			PoolSize: cfg.Store.PoolSize,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
	default:
		backend = store.NewMemory()
		logger.Warn("using the in-memory store, state will not survive a restart")
	}
	defer backend.Close()

	// Anchor service.
	var anchorService anchor.Service
	switch cfg.Anchor.Mode {
	case "solana":
		payer, err := identity.ReadKeyFile(cfg.Anchor.KeypairPath)
		if err != nil {
			return fmt.Errorf("loading anchor keypair: %w", err)
		}
		solana, err := anchor.NewSolana(anchor.SolanaConfig{
			Endpoint:   cfg.Anchor.RPCURL,
			Payer:      payer,
			Commitment: cfg.Anchor.Commitment,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		anchorService = solana
		logger.Info("anchoring to solana",
			"endpoint", cfg.Anchor.RPCURL,
			"payer", solana.PayerAddress())
	case "memory":
		anchorService = anchor.NewMemory()
		logger.Warn("using the in-memory anchor, references are not durable")
	default:
		logger.Info("anchoring disabled")
	}

	engine, err := verify.NewEngine(verify.EngineConfig{
		Store:  backend,
		Clock:  clk,
		Logger: logger,
		Policy: verify.TrustPolicy{
			ActiveAge:         time.Duration(cfg.Trust.ActiveDays) * 24 * time.Hour,
			ActiveActivities:  cfg.Trust.ActiveActivities,
			TrustedAge:        time.Duration(cfg.Trust.TrustedDays) * 24 * time.Hour,
			TrustedActivities: cfg.Trust.TrustedActivities,
		},
		ChallengeTTL: cfg.ChallengeTTL(),
	})
	if err != nil {
		return err
	}

	activityLedger, err := ledger.New(ledger.Config{
		Store:     backend,
		Clock:     clk,
		Logger:    logger,
		Evaluator: engine,
		Anchor:    anchorService,
		QueueSize: cfg.Anchor.QueueSize,
	})
	if err != nil {
		return err
	}

	go engine.RunExpirySweep(ctx, cfg.SweepInterval())
	go activityLedger.RunAnchorWorker(ctx)

	attestService := &AttestService{
		engine: engine,
		ledger: activityLedger,
		logger: logger,
	}

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- attestService.serve(ctx, cfg.SocketPath)
	}()

	logger.Info("agentproof service running",
		"socket", cfg.SocketPath,
		"store", cfg.Store.Backend,
		"anchor", cfg.Anchor.Mode,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-socketDone; err != nil {
		logger.Error("socket listener error", "error", err)
	}
	return nil
}
