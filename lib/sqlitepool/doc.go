// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a fixed-size SQLite connection pool
// with AgentProof-standard pragmas (WAL journaling, NORMAL
// synchronous, busy timeout). The durable Repository backend in
// attest/store is built on it.
package sqlitepool
