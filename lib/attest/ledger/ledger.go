// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/anchor"
	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/attest/store"
	"github.com/agentproof-foundation/agentproof/lib/clock"
	"github.com/agentproof-foundation/agentproof/lib/identity"
)

// DefaultActivityLimit is how many traces GetActivities returns when
// the caller does not specify a limit.
const DefaultActivityLimit = 50

// DefaultQueueSize is the anchor job queue capacity.
const DefaultQueueSize = 256

// TrustEvaluator decides the trust level an agent qualifies for after
// new activity. The verification engine implements this; the ledger
// deliberately knows nothing about the promotion thresholds.
type TrustEvaluator interface {
	Evaluate(agent attest.Agent, now time.Time) attest.TrustLevel
}

// Ledger records and verifies activity traces. Safe for concurrent
// use; operations on the same agent are serialized so the trace
// append and the owner's counter update form one atomic unit.
type Ledger struct {
	store     store.Store
	clock     clock.Clock
	logger    *slog.Logger
	evaluator TrustEvaluator
	anchor    anchor.Service
	jobs      chan anchorJob
	locks     *attest.KeyedMutex
}

// Config configures a Ledger.
type Config struct {
	// Store is the persistence backend. Required.
	Store store.Store

	// Clock provides time. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives structured ledger events. Required.
	Logger *slog.Logger

	// Evaluator re-evaluates trust after each logged activity.
	// Optional; without one, trust levels never change through the
	// ledger.
	Evaluator TrustEvaluator

	// Anchor is the external ledger traces are anchored to. Optional;
	// without one, traces are never anchored and stay locally valid
	// only.
	Anchor anchor.Service

	// QueueSize bounds the pending anchor jobs. When the queue is
	// full, new traces simply go unanchored. Defaults to
	// DefaultQueueSize.
	QueueSize int
}

// New constructs a Ledger from cfg.
func New(cfg Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, errors.New("ledger: Store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("ledger: Logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Ledger{
		store:     cfg.Store,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		evaluator: cfg.Evaluator,
		anchor:    cfg.Anchor,
		jobs:      make(chan anchorJob, cfg.QueueSize),
		locks:     attest.NewKeyedMutex(),
	}, nil
}

// anchorPayload is the JSON document written to the external ledger
// for one trace. The action hash inside it is what VerifyTrace checks
// against the local trace when confirming an anchor.
type anchorPayload struct {
	Type       string `json:"type"`
	Wallet     string `json:"wallet"`
	ActionHash string `json:"action_hash"`
	ActionType string `json:"action_type"`
	Index      int64  `json:"index"`
	Timestamp  int64  `json:"timestamp"`
}

// LogActivity records one attested action for a registered agent. The
// trace and the agent's counters are persisted synchronously; the
// trust level is re-evaluated with the new counts; anchoring is
// queued for the background worker and never blocks or fails the
// call.
//
// Returns [attest.ErrAgentNotFound] for unregistered agents. The
// signature is recorded as supplied, not verified.
func (l *Ledger) LogActivity(ctx context.Context, agentID, actionType string, actionData any, signature string) (attest.ActivityTrace, error) {
	if agentID == "" || actionType == "" {
		return attest.ActivityTrace{}, errors.New("ledger: agent ID and action type are required")
	}

	unlock := l.locks.Lock(agentID)
	defer unlock()

	agent, err := l.store.GetAgent(ctx, agentID)
	if errors.Is(err, attest.ErrNotFound) {
		return attest.ActivityTrace{}, attest.ErrAgentNotFound
	}
	if err != nil {
		return attest.ActivityTrace{}, fmt.Errorf("looking up agent: %w", err)
	}

	now := l.clock.Now()
	actionHash, err := identity.HashAction(agentID, actionType, actionData, now)
	if err != nil {
		return attest.ActivityTrace{}, err
	}
	traceID, err := identity.GenerateID("trace", now)
	if err != nil {
		return attest.ActivityTrace{}, err
	}

	trace := attest.ActivityTrace{
		TraceID:    traceID,
		AgentID:    agentID,
		ActionHash: actionHash,
		ActionType: actionType,
		Timestamp:  now,
		Signature:  signature,
	}
	if err := l.store.AppendTrace(ctx, trace); err != nil {
		return attest.ActivityTrace{}, fmt.Errorf("appending trace: %w", err)
	}

	previousLevel := agent.TrustLevel
	updated, err := l.store.UpdateAgent(ctx, agentID, func(a *attest.Agent) error {
		a.TotalActivities++
		a.LastActivity = now
		if l.evaluator != nil {
			a.TrustLevel = l.evaluator.Evaluate(*a, now)
		}
		return nil
	})
	if err != nil {
		return attest.ActivityTrace{}, fmt.Errorf("updating agent counters: %w", err)
	}

	if updated.TrustLevel != previousLevel {
		l.logger.Info("trust level promoted",
			"agent_id", agentID,
			"from", previousLevel.String(),
			"to", updated.TrustLevel.String())
	}

	l.logger.Info("activity logged",
		"agent_id", agentID,
		"trace_id", traceID,
		"action_type", actionType,
		"action_hash", actionHash)

	l.enqueueAnchor(trace, updated)
	return trace, nil
}

// enqueueAnchor hands the trace to the anchor worker without
// blocking. A full queue means the trace stays unanchored; that is an
// accepted loss, not an error.
func (l *Ledger) enqueueAnchor(trace attest.ActivityTrace, owner attest.Agent) {
	if l.anchor == nil {
		return
	}

	payload, err := json.Marshal(anchorPayload{
		Type:       "activity_log",
		Wallet:     owner.WalletAddress,
		ActionHash: trace.ActionHash,
		ActionType: trace.ActionType,
		Index:      owner.TotalActivities - 1,
		Timestamp:  trace.Timestamp.UnixMilli(),
	})
	if err != nil {
		l.logger.Warn("encoding anchor payload failed",
			"trace_id", trace.TraceID,
			"error", err)
		return
	}

	select {
	case l.jobs <- anchorJob{traceID: trace.TraceID, payload: payload}:
	default:
		l.logger.Warn("anchor queue full, trace will not be anchored",
			"trace_id", trace.TraceID)
	}
}

// GetActivities returns the agent's most recent traces, newest first.
// limit <= 0 means DefaultActivityLimit. Returns
// [attest.ErrAgentNotFound] for unregistered agents.
func (l *Ledger) GetActivities(ctx context.Context, agentID string, limit int) ([]attest.ActivityTrace, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	if _, err := l.store.GetAgent(ctx, agentID); err != nil {
		if errors.Is(err, attest.ErrNotFound) {
			return nil, attest.ErrAgentNotFound
		}
		return nil, fmt.Errorf("looking up agent: %w", err)
	}

	traces, err := l.store.ListTraces(ctx, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	return traces, nil
}

// VerifyTrace looks up a trace by its action hash and reports local
// validity and on-chain confirmation independently. A trace is
// locally valid the moment it exists; it is on-chain only when its
// anchor reference resolves and the anchored payload carries the same
// action hash. Anchor lookup failures degrade to on_chain=false
// rather than failing the call.
func (l *Ledger) VerifyTrace(ctx context.Context, actionHash string) (attest.TraceVerification, error) {
	trace, err := l.store.GetTraceByHash(ctx, actionHash)
	if errors.Is(err, attest.ErrNotFound) {
		return attest.TraceVerification{
			Valid:   false,
			Message: "no trace with this action hash",
		}, nil
	}
	if err != nil {
		return attest.TraceVerification{}, fmt.Errorf("looking up trace: %w", err)
	}

	result := attest.TraceVerification{
		Valid: true,
		Trace: &trace,
	}
	if trace.OnChainTxHash == "" || l.anchor == nil {
		result.Message = "trace valid, not anchored"
		return result, nil
	}

	found, payload, err := l.anchor.Resolve(ctx, trace.OnChainTxHash)
	if err != nil {
		l.logger.Warn("anchor lookup failed",
			"trace_id", trace.TraceID,
			"reference", trace.OnChainTxHash,
			"error", err)
		result.Message = "trace valid, anchor lookup unavailable"
		return result, nil
	}
	if !found {
		result.Message = "trace valid, anchor not found on chain"
		return result, nil
	}

	var anchored anchorPayload
	if err := json.Unmarshal(payload, &anchored); err != nil || anchored.ActionHash != trace.ActionHash {
		result.Message = "trace valid, anchored payload does not match"
		return result, nil
	}

	result.OnChain = true
	result.Message = "trace valid and anchored"
	return result, nil
}

// GetStats returns aggregate ledger counts.
func (l *Ledger) GetStats(ctx context.Context) (attest.Stats, error) {
	agents, err := l.store.CountAgents(ctx)
	if err != nil {
		return attest.Stats{}, fmt.Errorf("counting agents: %w", err)
	}
	traces, err := l.store.CountTraces(ctx)
	if err != nil {
		return attest.Stats{}, fmt.Errorf("counting traces: %w", err)
	}
	return attest.Stats{
		TotalAgents:     agents,
		TotalActivities: traces,
	}, nil
}
