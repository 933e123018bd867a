// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package anchor abstracts the external ledger that activity traces
// are anchored to. The ledger package submits opaque payloads and
// stores the returned reference; what the reference means (a Solana
// transaction signature, an in-memory handle in tests) is an
// implementation detail of the Service.
package anchor
