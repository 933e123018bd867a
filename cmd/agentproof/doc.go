// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Command agentproof is the client CLI for the AgentProof service:
// keypair generation, challenge issuance and redemption, activity
// logging, and trace verification over the service socket.
package main
