// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import "context"

// Service binds payloads to an external ledger.
type Service interface {
	// Submit durably records payload and returns an opaque reference
	// that can later be passed to Resolve. Blocking; callers run it
	// off the request path.
	Submit(ctx context.Context, payload []byte) (string, error)

	// Resolve looks up a previously submitted reference. found is
	// false when the ledger has no record of it; err is reserved for
	// transport faults, not for missing references.
	Resolve(ctx context.Context, reference string) (found bool, payload []byte, err error)
}
