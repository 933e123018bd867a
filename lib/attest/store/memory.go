// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/attest"
)

// Memory is the volatile in-memory reference backend. A single
// RWMutex guards all collections; secondary indexes (wallet → agent,
// agent → live challenge, action hash → trace) keep lookups O(1).
//
// State is lost on process exit. Use the SQLite backend for anything
// that must survive a restart.
type Memory struct {
	mu sync.RWMutex

	agents  map[string]*attest.Agent // agent ID → agent
	wallets map[string]string        // wallet address → agent ID

	challenges      map[string]attest.Challenge // challenge ID → challenge
	agentChallenges map[string]string           // agent ID → live challenge ID

	traces      map[string][]*attest.ActivityTrace // agent ID → traces, oldest first
	traceByID   map[string]*attest.ActivityTrace   // trace ID → trace
	traceByHash map[string]*attest.ActivityTrace   // action hash → trace
	traceCount  int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:          make(map[string]*attest.Agent),
		wallets:         make(map[string]string),
		challenges:      make(map[string]attest.Challenge),
		agentChallenges: make(map[string]string),
		traces:          make(map[string][]*attest.ActivityTrace),
		traceByID:       make(map[string]*attest.ActivityTrace),
		traceByHash:     make(map[string]*attest.ActivityTrace),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateAgent(ctx context.Context, agent attest.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[agent.AgentID]; exists {
		return attest.ErrAgentExists
	}
	if _, exists := m.wallets[agent.WalletAddress]; exists {
		return attest.ErrAgentExists
	}

	stored := agent
	m.agents[agent.AgentID] = &stored
	m.wallets[agent.WalletAddress] = agent.AgentID
	return nil
}

func (m *Memory) GetAgent(ctx context.Context, agentID string) (attest.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, exists := m.agents[agentID]
	if !exists {
		return attest.Agent{}, attest.ErrNotFound
	}
	return *agent, nil
}

func (m *Memory) GetAgentByWallet(ctx context.Context, walletAddress string) (attest.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agentID, exists := m.wallets[walletAddress]
	if !exists {
		return attest.Agent{}, attest.ErrNotFound
	}
	return *m.agents[agentID], nil
}

func (m *Memory) UpdateAgent(ctx context.Context, agentID string, mutate func(*attest.Agent) error) (attest.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, exists := m.agents[agentID]
	if !exists {
		return attest.Agent{}, attest.ErrNotFound
	}

	updated := *agent
	if err := mutate(&updated); err != nil {
		return attest.Agent{}, err
	}
	updated.AgentID = agent.AgentID

	*agent = updated
	return updated, nil
}

func (m *Memory) CreateChallenge(ctx context.Context, challenge attest.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.challenges[challenge.ChallengeID] = challenge
	m.agentChallenges[challenge.AgentID] = challenge.ChallengeID
	return nil
}

func (m *Memory) GetChallenge(ctx context.Context, challengeID string) (attest.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, exists := m.challenges[challengeID]
	if !exists {
		return attest.Challenge{}, attest.ErrNotFound
	}
	return challenge, nil
}

func (m *Memory) GetChallengeByAgent(ctx context.Context, agentID string) (attest.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challengeID, exists := m.agentChallenges[agentID]
	if !exists {
		return attest.Challenge{}, attest.ErrNotFound
	}
	return m.challenges[challengeID], nil
}

func (m *Memory) DeleteChallenge(ctx context.Context, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteChallengeLocked(challengeID)
	return nil
}

func (m *Memory) deleteChallengeLocked(challengeID string) {
	challenge, exists := m.challenges[challengeID]
	if !exists {
		return
	}
	delete(m.challenges, challengeID)
	// Only clear the agent index if it still points at this
	// challenge; a replacement may already have been issued.
	if m.agentChallenges[challenge.AgentID] == challengeID {
		delete(m.agentChallenges, challenge.AgentID)
	}
}

func (m *Memory) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for challengeID, challenge := range m.challenges {
		if !challenge.ExpiresAt.After(now) {
			m.deleteChallengeLocked(challengeID)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) AppendTrace(ctx context.Context, trace attest.ActivityTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := trace
	m.traces[trace.AgentID] = append(m.traces[trace.AgentID], &stored)
	m.traceByID[trace.TraceID] = &stored
	if _, exists := m.traceByHash[trace.ActionHash]; !exists {
		m.traceByHash[trace.ActionHash] = &stored
	}
	m.traceCount++
	return nil
}

func (m *Memory) ListTraces(ctx context.Context, agentID string, limit int) ([]attest.ActivityTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.traces[agentID]
	count := limit
	if count > len(all) {
		count = len(all)
	}

	// Newest first: walk the per-agent slice backwards.
	result := make([]attest.ActivityTrace, 0, count)
	for i := len(all) - 1; i >= 0 && len(result) < count; i-- {
		result = append(result, *all[i])
	}
	return result, nil
}

func (m *Memory) GetTraceByHash(ctx context.Context, actionHash string) (attest.ActivityTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trace, exists := m.traceByHash[actionHash]
	if !exists {
		return attest.ActivityTrace{}, attest.ErrNotFound
	}
	return *trace, nil
}

func (m *Memory) SetTraceAnchor(ctx context.Context, traceID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trace, exists := m.traceByID[traceID]
	if !exists {
		return attest.ErrNotFound
	}
	if trace.OnChainTxHash != "" {
		return nil
	}
	trace.OnChainTxHash = txHash
	return nil
}

func (m *Memory) CountAgents(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.agents)), nil
}

func (m *Memory) CountTraces(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.traceCount, nil
}

func (m *Memory) Close() error { return nil }
