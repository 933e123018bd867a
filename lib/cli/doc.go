// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind the
// agentproof binary: named commands with pflag flag sets, nested
// subcommands, and generated help output.
package cli
