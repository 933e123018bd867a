// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify implements the identity verification engine: nonce
// challenge issuance, one-shot challenge redemption against Ed25519
// signatures, agent status reads, trust level evaluation, and the
// background sweep that removes expired challenges.
//
// The engine owns the challenge lifecycle end to end. A challenge is
// consumed on its first redemption attempt regardless of outcome, so
// a captured signature can never be replayed and a failed attempt
// cannot be retried against the same nonce.
package verify
