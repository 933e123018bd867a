// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/agentproof-foundation/agentproof/lib/codec"
)

// nonceSize is the challenge nonce width in bytes. 256 bits makes
// nonce collision probability negligible without any uniqueness
// bookkeeping.
const nonceSize = 32

// idRandomSize is the random suffix width of generated IDs in bytes.
const idRandomSize = 8

// GenerateNonce returns a cryptographically random hex-encoded nonce.
func GenerateNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ChallengeMessage builds the canonical string an agent must sign to
// redeem a challenge. It binds the agent ID, the nonce, and the issue
// time, so a signature cannot be replayed for another agent or
// another challenge.
//
// The format is part of the protocol: clients reproduce the exact
// bytes they are asked to sign, so any change here is a breaking
// protocol change.
func ChallengeMessage(agentID, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf("AgentProof Challenge\nAgent: %s\nNonce: %s\nTimestamp: %d",
		agentID, nonce, issuedAt.UnixMilli())
}

// VerifySignature reports whether signature is a valid Ed25519
// signature of message under publicKey. Signature and public key are
// base58-encoded.
//
// Fails closed: malformed base58, wrong-length keys or signatures,
// and verification failures all return false. No error is exposed,
// so a caller cannot distinguish "garbage input" from "wrong key".
func VerifySignature(message, signature, publicKey string) bool {
	signatureBytes, err := base58.Decode(signature)
	if err != nil || len(signatureBytes) != ed25519.SignatureSize {
		return false
	}
	publicKeyBytes, err := base58.Decode(publicKey)
	if err != nil || len(publicKeyBytes) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKeyBytes), []byte(message), signatureBytes)
}

// Sign returns the base58-encoded Ed25519 signature of message. Used
// by the CLI's redeem flow and by tests; the service itself only
// verifies.
func Sign(message string, private ed25519.PrivateKey) string {
	return base58.Encode(ed25519.Sign(private, []byte(message)))
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// EncodeKey returns the base58 wire encoding of an Ed25519 public
// key. This is also the agent's wallet address on the target ledger.
func EncodeKey(public ed25519.PublicKey) string {
	return base58.Encode(public)
}

// actionEnvelope is the canonical shape hashed by HashAction. Field
// names are part of the hash input via CBOR map keys.
type actionEnvelope struct {
	ActionData any    `cbor:"action_data"`
	ActionType string `cbor:"action_type"`
	AgentID    string `cbor:"agent_id"`
	Timestamp  int64  `cbor:"timestamp"`
}

// HashAction computes the hex SHA-256 content hash of an action. The
// envelope is encoded with deterministic CBOR (sorted map keys,
// canonical integer widths), so equal logical payloads always hash
// identically regardless of how the caller ordered its fields. The
// hash is the trace's verification lookup key; determinism here is a
// correctness requirement, not a performance nicety.
func HashAction(agentID, actionType string, actionData any, timestamp time.Time) (string, error) {
	encoded, err := codec.Marshal(actionEnvelope{
		ActionData: actionData,
		ActionType: actionType,
		AgentID:    agentID,
		Timestamp:  timestamp.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding action for hashing: %w", err)
	}
	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:]), nil
}

// GenerateID returns an opaque identifier of the form
// <prefix>_<unix-millis>_<random-hex>. Collision-resistant through
// the random suffix; the timestamp component keeps IDs roughly
// sortable by creation time. Not required to be unpredictable.
func GenerateID(prefix string, now time.Time) (string, error) {
	buf := make([]byte, idRandomSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), hex.EncodeToString(buf)), nil
}
