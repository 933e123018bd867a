// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger implements the hash-addressed activity ledger:
// logging attested actions as immutable traces, reading them back,
// verifying a trace by its content hash, and anchoring traces to an
// external ledger through a background worker.
//
// Anchoring is strictly best-effort and fully decoupled from the
// logging path. LogActivity returns as soon as the trace and the
// owner's counters are persisted; the anchor reference lands on the
// trace later, or never. A trace without an anchor reference is still
// locally valid.
package ledger
