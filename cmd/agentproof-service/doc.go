// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Command agentproof-service runs the AgentProof daemon: the identity
// verification engine and the activity ledger behind a CBOR Unix
// socket protocol.
//
// Configuration comes from a YAML file named by AGENTPROOF_CONFIG or
// --config. Alongside the socket listener, the process runs two
// background loops: the challenge expiry sweep and the anchor worker
// that binds logged traces to the external ledger.
package main
