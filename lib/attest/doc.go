// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package attest defines the AgentProof domain model: agents with
// escalating trust levels, one-time verification challenges, and
// immutable activity traces. It also carries the error taxonomy
// shared by the verification engine and the activity ledger.
//
// The package holds data shapes and pure helpers only. Business logic
// lives in attest/verify (challenge lifecycle, trust transitions) and
// attest/ledger (activity logging, anchoring); storage lives in
// attest/store.
package attest
