// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package attest

import "errors"

// Error taxonomy shared across the engine, ledger, and store. All of
// these are caller errors surfaced through structured results at the
// API boundary; none indicate an internal fault.
var (
	// ErrNotFound: unknown agent, challenge, or trace. For challenges
	// this deliberately covers both "never issued" and "already
	// consumed"; keeping the two indistinguishable prevents probing
	// for which challenge IDs ever existed.
	ErrNotFound = errors.New("not found")

	// ErrExpired: the challenge TTL elapsed before redemption. The
	// challenge is consumed; the caller must request a new one.
	ErrExpired = errors.New("challenge expired")

	// ErrInvalidSignature: cryptographic verification failed. The
	// challenge is consumed; retrying requires a new challenge.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrAgentNotFound: activity logged for an unregistered agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentExists: agent creation collided on agent ID or wallet
	// address (each admits at most one agent).
	ErrAgentExists = errors.New("agent already exists")
)
