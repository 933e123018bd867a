// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by AgentProof tests:
// channel operations with timeout safety valves so a broken
// synchronization path fails the test instead of hanging it.
package testutil
