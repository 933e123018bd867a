// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package store holds AgentProof's persistence contract and its two
// backends: a volatile in-memory reference implementation and a
// durable SQLite implementation. Both satisfy [Store]; the engine and
// ledger are written against the interface and never see which
// backend is underneath.
//
// Every Store operation is atomic with respect to a single entity.
// Multi-entity atomicity (a trace write plus the owning agent's
// counter update, or replace-the-live-challenge) is composed by the
// callers in attest/verify and attest/ledger under their per-agent
// serialization, not here.
package store
