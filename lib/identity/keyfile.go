// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
)

// WriteKeyFile stores an Ed25519 private key at path as a single
// base58 line, readable only by the owner.
func WriteKeyFile(path string, private ed25519.PrivateKey) error {
	if len(private) != ed25519.PrivateKeySize {
		return fmt.Errorf("writing key file: key is %d bytes, want %d", len(private), ed25519.PrivateKeySize)
	}
	encoded := base58.Encode(private) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// ReadKeyFile loads an Ed25519 private key written by WriteKeyFile.
func ReadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	decoded, err := base58.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("reading key file %s: malformed base58: %w", path, err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("reading key file %s: key is %d bytes, want %d", path, len(decoded), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(decoded), nil
}
