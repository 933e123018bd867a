// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/attest"
)

// Store is the repository contract: pure data access over agents,
// challenges, and activity traces. Implementations must be safe for
// concurrent use, with each operation atomic for the entity it
// touches.
type Store interface {
	// CreateAgent inserts a new agent. Returns
	// [attest.ErrAgentExists] if the agent ID or the wallet address
	// is already taken (each admits at most one agent).
	CreateAgent(ctx context.Context, agent attest.Agent) error

	// GetAgent returns the agent with the given ID, or
	// [attest.ErrNotFound].
	GetAgent(ctx context.Context, agentID string) (attest.Agent, error)

	// GetAgentByWallet returns the agent owning the given wallet
	// address, or [attest.ErrNotFound].
	GetAgentByWallet(ctx context.Context, walletAddress string) (attest.Agent, error)

	// UpdateAgent atomically applies mutate to the stored agent and
	// persists the result. The callback sees the current stored state;
	// concurrent UpdateAgent calls for the same agent never observe
	// stale snapshots, so counter increments are never lost. The
	// AgentID field must not be changed by the callback. Returns the
	// updated agent, or [attest.ErrNotFound].
	UpdateAgent(ctx context.Context, agentID string, mutate func(*attest.Agent) error) (attest.Agent, error)

	// CreateChallenge inserts a challenge. The caller is responsible
	// for having removed any prior live challenge for the same agent.
	CreateChallenge(ctx context.Context, challenge attest.Challenge) error

	// GetChallenge returns the challenge with the given ID, or
	// [attest.ErrNotFound].
	GetChallenge(ctx context.Context, challengeID string) (attest.Challenge, error)

	// GetChallengeByAgent returns the live challenge owned by the
	// given agent, or [attest.ErrNotFound].
	GetChallengeByAgent(ctx context.Context, agentID string) (attest.Challenge, error)

	// DeleteChallenge removes a challenge. Idempotent: deleting a
	// challenge that does not exist is not an error, because
	// redemption and the expiry sweep may race to delete the same
	// challenge.
	DeleteChallenge(ctx context.Context, challengeID string) error

	// DeleteExpiredChallenges removes every challenge whose ExpiresAt
	// is at or before now. Returns the number removed.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int, error)

	// AppendTrace inserts an activity trace.
	AppendTrace(ctx context.Context, trace attest.ActivityTrace) error

	// ListTraces returns up to limit traces for the agent, most
	// recent first. limit must be positive.
	ListTraces(ctx context.Context, agentID string, limit int) ([]attest.ActivityTrace, error)

	// GetTraceByHash returns the trace with the given action hash, or
	// [attest.ErrNotFound].
	GetTraceByHash(ctx context.Context, actionHash string) (attest.ActivityTrace, error)

	// SetTraceAnchor records the anchor transaction reference on a
	// trace. This is the only permitted post-creation mutation and it
	// sticks: once a trace carries a reference, later calls are
	// no-ops. Returns [attest.ErrNotFound] if no such trace exists.
	SetTraceAnchor(ctx context.Context, traceID, txHash string) error

	// CountAgents returns the total number of agents.
	CountAgents(ctx context.Context) (int64, error)

	// CountTraces returns the total number of activity traces.
	CountTraces(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
