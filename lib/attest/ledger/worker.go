// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import "context"

// anchorJob is one queued anchoring request: the payload to write to
// the external ledger and the trace the returned reference belongs
// to.
type anchorJob struct {
	traceID string
	payload []byte
}

// RunAnchorWorker drains the anchor queue until ctx is cancelled,
// submitting each payload and writing the returned reference back to
// its trace. Runs in its own goroutine next to the socket server.
//
// Failures are logged and the job is dropped; the trace stays
// unanchored and locally valid. Submission is at-most-once per job,
// and the write-back is write-once in the store, so a trace never
// flips between anchor references.
func (l *Ledger) RunAnchorWorker(ctx context.Context) {
	if l.anchor == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-l.jobs:
			reference, err := l.anchor.Submit(ctx, job.payload)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("anchoring trace failed",
					"trace_id", job.traceID,
					"error", err)
				continue
			}

			if err := l.store.SetTraceAnchor(ctx, job.traceID, reference); err != nil {
				l.logger.Warn("recording anchor reference failed",
					"trace_id", job.traceID,
					"reference", reference,
					"error", err)
				continue
			}

			l.logger.Info("trace anchored",
				"trace_id", job.traceID,
				"reference", reference)
		}
	}
}
