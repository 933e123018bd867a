// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity provides AgentProof's cryptographic primitives:
// challenge nonces, the canonical challenge message, Ed25519
// signature verification, action content hashing, and opaque ID
// generation.
//
// Wire encodings follow the target ledger's conventions: public keys,
// wallet addresses, and signatures are base58; nonces and hashes are
// hex. Verification fails closed: malformed signatures or keys
// verify as false, never as an error.
package identity
