// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() and advance it explicitly.
//
// The verification engine's challenge TTLs, the expiry sweep, and the
// trust-level age thresholds all read time through a Clock, so the
// multi-day trust promotion scenarios run deterministically in tests.
package clock
