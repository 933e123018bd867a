// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides AgentProof's standard CBOR encoding.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// logical value always produces the same bytes. This matters twice in
// AgentProof: the action hash is computed over the encoded action
// payload (equal payloads must hash identically, because the hash is
// the verification lookup key), and the socket protocol carries CBOR
// request/response values.
//
// All components marshal through this package rather than importing
// fxamacker/cbor directly, so the encoding configuration has a single
// owner.
package codec
