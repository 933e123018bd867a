// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the expiry sweep runs.
const DefaultSweepInterval = time.Minute

// RunExpirySweep periodically deletes expired challenges until ctx is
// cancelled. Expired challenges are already unredeemable (redemption
// checks the deadline itself); the sweep only reclaims their storage,
// so a failed pass is logged and retried on the next tick.
func (e *Engine) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := e.store.DeleteExpiredChallenges(ctx, e.clock.Now())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Warn("challenge expiry sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				e.logger.Info("expired challenges removed", "count", removed)
			}
		}
	}
}
