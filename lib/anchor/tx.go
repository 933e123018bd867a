// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// MemoProgramID is the on-chain address of the memo program that
// anchored payloads are written through.
const MemoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

var memoProgramKey = mustDecodeKey(MemoProgramID)

func mustDecodeKey(encoded string) []byte {
	key, err := base58.Decode(encoded)
	if err != nil || len(key) != 32 {
		panic("anchor: invalid program address constant")
	}
	return key
}

// appendCompactU16 appends n in the transaction wire format's
// compact-u16 encoding: little-endian, 7 bits per byte, continuation
// bit in the high bit.
func appendCompactU16(buf []byte, n int) []byte {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// buildMemoTransaction serializes and signs a single-instruction
// legacy transaction that invokes the memo program with memo as the
// instruction data. The payer is the sole signer and fee payer.
func buildMemoTransaction(payer ed25519.PrivateKey, recentBlockhash [32]byte, memo []byte) []byte {
	payerKey := payer.Public().(ed25519.PublicKey)

	// Message header: one required signature, no read-only signed
	// accounts, one read-only unsigned account (the program).
	message := []byte{1, 0, 1}

	message = appendCompactU16(message, 2)
	message = append(message, payerKey...)
	message = append(message, memoProgramKey...)

	message = append(message, recentBlockhash[:]...)

	// One instruction: program index 1, no account references, the
	// memo bytes as data.
	message = appendCompactU16(message, 1)
	message = append(message, 1)
	message = appendCompactU16(message, 0)
	message = appendCompactU16(message, len(memo))
	message = append(message, memo...)

	signature := ed25519.Sign(payer, message)

	transaction := appendCompactU16(nil, 1)
	transaction = append(transaction, signature...)
	return append(transaction, message...)
}
