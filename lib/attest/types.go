// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package attest

import "time"

// Agent is the identity record for one attested actor. Created on the
// first challenge request for an unseen agent ID / wallet pair, never
// deleted.
type Agent struct {
	// AgentID is the caller-chosen opaque identifier. Unique.
	AgentID string `cbor:"agent_id" json:"agent_id"`

	// WalletAddress is the base58 public-key-derived ledger address.
	// Unique across agents.
	WalletAddress string `cbor:"wallet_address" json:"wallet_address"`

	// PublicKey is the base58 Ed25519 verification key of record. It
	// equals WalletAddress at registration; each successful challenge
	// redemption adopts the key the signature verified under.
	PublicKey string `cbor:"public_key" json:"public_key"`

	// TrustLevel never decreases except across the registered/
	// confirmed boundary, which it only crosses upward via challenge
	// redemption.
	TrustLevel TrustLevel `cbor:"trust_level" json:"trust_level"`

	// TotalActivities counts successful LogActivity calls. Monotonic.
	TotalActivities int64 `cbor:"total_activities" json:"total_activities"`

	CreatedAt    time.Time `cbor:"created_at" json:"created_at"`
	LastActivity time.Time `cbor:"last_activity" json:"last_activity"`
}

// Challenge is a short-lived proof-of-possession request. At most one
// live Challenge exists per agent; issuing a new one replaces the
// prior one. A challenge is consumed (deleted) on its first
// redemption attempt, whatever the outcome.
type Challenge struct {
	ChallengeID string `cbor:"challenge_id" json:"challenge_id"`
	AgentID     string `cbor:"agent_id" json:"agent_id"`

	// Nonce is a single-use 256-bit random value, hex-encoded.
	Nonce string `cbor:"nonce" json:"nonce"`

	// Message is the exact canonical string the agent must sign.
	Message string `cbor:"message" json:"message"`

	ExpiresAt time.Time `cbor:"expires_at" json:"expires_at"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// ActivityTrace is the immutable record of one attested action. All
// fields except OnChainTxHash are fixed at creation; OnChainTxHash is
// written at most once, asynchronously, when anchoring completes.
type ActivityTrace struct {
	TraceID string `cbor:"trace_id" json:"trace_id"`
	AgentID string `cbor:"agent_id" json:"agent_id"`

	// ActionHash is the hex SHA-256 content hash of the action
	// envelope {agent_id, action_type, action_data, timestamp}. It is
	// the trace's verification lookup key.
	ActionHash string `cbor:"action_hash" json:"action_hash"`

	ActionType string    `cbor:"action_type" json:"action_type"`
	Timestamp  time.Time `cbor:"timestamp" json:"timestamp"`

	// Signature is the caller-supplied signature over the action.
	// Opaque to this system; it is recorded, not re-verified.
	Signature string `cbor:"signature" json:"signature"`

	// OnChainTxHash is the anchor reference (transaction signature),
	// empty until anchoring completes. Traces that never anchor stay
	// empty permanently.
	OnChainTxHash string `cbor:"on_chain_tx_hash,omitempty" json:"on_chain_tx_hash,omitempty"`
}

// VerificationResult is the outcome of a challenge redemption.
// Redemption never faults: failures are reported through Verified and
// Message so the caller cannot distinguish consumed challenges from
// ones that never existed.
type VerificationResult struct {
	Verified bool `cbor:"verified" json:"verified"`

	// CredentialID is a fresh opaque bearer reference for a
	// successful verification event. The engine keeps no session
	// table; each verification is a discrete event.
	CredentialID string `cbor:"credential_id,omitempty" json:"credential_id,omitempty"`

	TrustLevel TrustLevel `cbor:"trust_level" json:"trust_level"`
	Message    string     `cbor:"message" json:"message"`
}

// Status is an agent's read-only verification status.
type Status struct {
	Verified   bool       `cbor:"verified" json:"verified"`
	TrustLevel TrustLevel `cbor:"trust_level" json:"trust_level"`
	Agent      *Agent     `cbor:"agent,omitempty" json:"agent,omitempty"`
}

// TraceVerification is the outcome of a trace lookup by action hash.
// Local validity and on-chain confirmation are independent booleans:
// an anchored trace whose anchor cannot be confirmed right now is
// still locally valid.
type TraceVerification struct {
	Valid   bool           `cbor:"valid" json:"valid"`
	OnChain bool           `cbor:"on_chain" json:"on_chain"`
	Trace   *ActivityTrace `cbor:"trace,omitempty" json:"trace,omitempty"`
	Message string         `cbor:"message" json:"message"`
}

// Stats are aggregate ledger counts.
type Stats struct {
	TotalAgents     int64 `cbor:"total_agents" json:"total_agents"`
	TotalActivities int64 `cbor:"total_activities" json:"total_activities"`
}
