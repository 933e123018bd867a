// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the CBOR-over-Unix-socket request protocol
// shared by the AgentProof service and its clients, plus the shared
// logger setup.
//
// The protocol is one request per connection: the client writes a
// single CBOR map containing an "action" field plus action-specific
// fields, the server writes a single Response, and the connection
// closes. CBOR is self-delimiting, so no framing is needed.
package service
