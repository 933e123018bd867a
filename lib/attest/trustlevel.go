// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package attest

import "fmt"

// TrustLevel is the ordinal trust tier of an agent:
// registered < confirmed < active < trusted.
//
// Transitions only ever raise the level. Registered → Confirmed
// happens exclusively through successful challenge redemption;
// Confirmed → Active → Trusted happen exclusively through trust
// re-evaluation after logged activity.
type TrustLevel int

const (
	// TrustRegistered is the initial, unverified level.
	TrustRegistered TrustLevel = 0
	// TrustConfirmed means the agent has proven key possession once.
	TrustConfirmed TrustLevel = 1
	// TrustActive means a confirmed agent with sustained activity.
	TrustActive TrustLevel = 2
	// TrustTrusted is the highest tier: long-lived and highly active.
	TrustTrusted TrustLevel = 3
)

var trustLevelNames = map[TrustLevel]string{
	TrustRegistered: "registered",
	TrustConfirmed:  "confirmed",
	TrustActive:     "active",
	TrustTrusted:    "trusted",
}

// String returns the wire name of the level, or "unknown(n)" for
// out-of-range values.
func (l TrustLevel) String() string {
	if name, ok := trustLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(l))
}
