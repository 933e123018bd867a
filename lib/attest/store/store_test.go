// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/attest"
)

// runBackends executes the test once per backend so both
// implementations satisfy the same behavioral contract.
func runBackends(t *testing.T, test func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemory()
		defer s.Close()
		test(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "attest.db"),
		})
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		defer s.Close()
		test(t, s)
	})
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testAgent(n int) attest.Agent {
	return attest.Agent{
		AgentID:       fmt.Sprintf("agent_%d", n),
		WalletAddress: fmt.Sprintf("wallet%d", n),
		PublicKey:     fmt.Sprintf("pubkey%d", n),
		TrustLevel:    attest.TrustRegistered,
		CreatedAt:     baseTime,
		LastActivity:  baseTime,
	}
}

func testChallenge(agentID, challengeID string, expiresAt time.Time) attest.Challenge {
	return attest.Challenge{
		ChallengeID: challengeID,
		AgentID:     agentID,
		Nonce:       "nonce-" + challengeID,
		Message:     "message-" + challengeID,
		ExpiresAt:   expiresAt,
		CreatedAt:   baseTime,
	}
}

func testTrace(agentID string, n int) attest.ActivityTrace {
	return attest.ActivityTrace{
		TraceID:    fmt.Sprintf("trace_%s_%d", agentID, n),
		AgentID:    agentID,
		ActionHash: fmt.Sprintf("hash_%s_%d", agentID, n),
		ActionType: "api_call",
		Timestamp:  baseTime.Add(time.Duration(n) * time.Second),
		Signature:  "sig",
	}
}

func TestAgentLifecycle(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		agent := testAgent(1)

		if err := s.CreateAgent(ctx, agent); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}

		got, err := s.GetAgent(ctx, agent.AgentID)
		if err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
		if got.WalletAddress != agent.WalletAddress || got.PublicKey != agent.PublicKey {
			t.Fatalf("GetAgent returned %+v, want %+v", got, agent)
		}
		if !got.CreatedAt.Equal(agent.CreatedAt) {
			t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, agent.CreatedAt)
		}

		byWallet, err := s.GetAgentByWallet(ctx, agent.WalletAddress)
		if err != nil {
			t.Fatalf("GetAgentByWallet: %v", err)
		}
		if byWallet.AgentID != agent.AgentID {
			t.Fatalf("GetAgentByWallet returned agent %q, want %q", byWallet.AgentID, agent.AgentID)
		}

		if _, err := s.GetAgent(ctx, "missing"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("GetAgent(missing) = %v, want ErrNotFound", err)
		}
		if _, err := s.GetAgentByWallet(ctx, "missing"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("GetAgentByWallet(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestCreateAgentRejectsDuplicates(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.CreateAgent(ctx, testAgent(1)); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}

		sameID := testAgent(2)
		sameID.AgentID = "agent_1"
		if err := s.CreateAgent(ctx, sameID); !errors.Is(err, attest.ErrAgentExists) {
			t.Fatalf("duplicate agent ID: got %v, want ErrAgentExists", err)
		}

		sameWallet := testAgent(3)
		sameWallet.WalletAddress = "wallet1"
		if err := s.CreateAgent(ctx, sameWallet); !errors.Is(err, attest.ErrAgentExists) {
			t.Fatalf("duplicate wallet: got %v, want ErrAgentExists", err)
		}
	})
}

func TestUpdateAgent(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		agent := testAgent(1)
		if err := s.CreateAgent(ctx, agent); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}

		later := baseTime.Add(time.Hour)
		updated, err := s.UpdateAgent(ctx, agent.AgentID, func(a *attest.Agent) error {
			a.TotalActivities++
			a.TrustLevel = attest.TrustConfirmed
			a.LastActivity = later
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateAgent: %v", err)
		}
		if updated.TotalActivities != 1 || updated.TrustLevel != attest.TrustConfirmed {
			t.Fatalf("UpdateAgent returned %+v", updated)
		}

		got, err := s.GetAgent(ctx, agent.AgentID)
		if err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
		if got.TotalActivities != 1 || !got.LastActivity.Equal(later) {
			t.Fatalf("update not persisted: %+v", got)
		}

		if _, err := s.UpdateAgent(ctx, "missing", func(a *attest.Agent) error { return nil }); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("UpdateAgent(missing) = %v, want ErrNotFound", err)
		}

		boom := errors.New("boom")
		if _, err := s.UpdateAgent(ctx, agent.AgentID, func(a *attest.Agent) error {
			a.TotalActivities = 999
			return boom
		}); !errors.Is(err, boom) {
			t.Fatalf("UpdateAgent mutate error = %v, want boom", err)
		}
		got, err = s.GetAgent(ctx, agent.AgentID)
		if err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
		if got.TotalActivities != 1 {
			t.Fatalf("failed mutate was persisted: TotalActivities = %d", got.TotalActivities)
		}
	})
}

func TestUpdateAgentConcurrentIncrements(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		agent := testAgent(1)
		if err := s.CreateAgent(ctx, agent); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}

		const workers = 8
		const perWorker = 5
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, err := s.UpdateAgent(ctx, agent.AgentID, func(a *attest.Agent) error {
						a.TotalActivities++
						return nil
					})
					if err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("UpdateAgent: %v", err)
		}

		got, err := s.GetAgent(ctx, agent.AgentID)
		if err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
		if got.TotalActivities != workers*perWorker {
			t.Fatalf("TotalActivities = %d, want %d", got.TotalActivities, workers*perWorker)
		}
	})
}

func TestChallengeLifecycle(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		challenge := testChallenge("agent_1", "ch_1", baseTime.Add(5*time.Minute))

		if err := s.CreateChallenge(ctx, challenge); err != nil {
			t.Fatalf("CreateChallenge: %v", err)
		}

		got, err := s.GetChallenge(ctx, challenge.ChallengeID)
		if err != nil {
			t.Fatalf("GetChallenge: %v", err)
		}
		if got.Nonce != challenge.Nonce || got.Message != challenge.Message {
			t.Fatalf("GetChallenge returned %+v", got)
		}
		if !got.ExpiresAt.Equal(challenge.ExpiresAt) {
			t.Fatalf("ExpiresAt = %v, want %v", got.ExpiresAt, challenge.ExpiresAt)
		}

		byAgent, err := s.GetChallengeByAgent(ctx, "agent_1")
		if err != nil {
			t.Fatalf("GetChallengeByAgent: %v", err)
		}
		if byAgent.ChallengeID != challenge.ChallengeID {
			t.Fatalf("GetChallengeByAgent returned %q", byAgent.ChallengeID)
		}

		if err := s.DeleteChallenge(ctx, challenge.ChallengeID); err != nil {
			t.Fatalf("DeleteChallenge: %v", err)
		}
		if _, err := s.GetChallenge(ctx, challenge.ChallengeID); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("GetChallenge after delete = %v, want ErrNotFound", err)
		}
		if _, err := s.GetChallengeByAgent(ctx, "agent_1"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("GetChallengeByAgent after delete = %v, want ErrNotFound", err)
		}

		// Deleting again is a no-op, not an error.
		if err := s.DeleteChallenge(ctx, challenge.ChallengeID); err != nil {
			t.Fatalf("DeleteChallenge (repeat): %v", err)
		}
	})
}

func TestCreateChallengeReplacesLiveChallenge(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := testChallenge("agent_1", "ch_1", baseTime.Add(5*time.Minute))
		second := testChallenge("agent_1", "ch_2", baseTime.Add(10*time.Minute))

		if err := s.CreateChallenge(ctx, first); err != nil {
			t.Fatalf("CreateChallenge: %v", err)
		}
		if err := s.CreateChallenge(ctx, second); err != nil {
			t.Fatalf("CreateChallenge (replacement): %v", err)
		}

		byAgent, err := s.GetChallengeByAgent(ctx, "agent_1")
		if err != nil {
			t.Fatalf("GetChallengeByAgent: %v", err)
		}
		if byAgent.ChallengeID != "ch_2" {
			t.Fatalf("live challenge = %q, want ch_2", byAgent.ChallengeID)
		}
	})
}

func TestDeleteExpiredChallenges(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := baseTime.Add(5 * time.Minute)

		expired := testChallenge("agent_1", "ch_old", baseTime.Add(time.Minute))
		atBoundary := testChallenge("agent_2", "ch_edge", now)
		live := testChallenge("agent_3", "ch_live", now.Add(time.Minute))
		for _, c := range []attest.Challenge{expired, atBoundary, live} {
			if err := s.CreateChallenge(ctx, c); err != nil {
				t.Fatalf("CreateChallenge(%s): %v", c.ChallengeID, err)
			}
		}

		removed, err := s.DeleteExpiredChallenges(ctx, now)
		if err != nil {
			t.Fatalf("DeleteExpiredChallenges: %v", err)
		}
		if removed != 2 {
			t.Fatalf("removed = %d, want 2", removed)
		}
		if _, err := s.GetChallenge(ctx, "ch_live"); err != nil {
			t.Fatalf("live challenge was removed: %v", err)
		}
		if _, err := s.GetChallenge(ctx, "ch_old"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("expired challenge survived: %v", err)
		}
	})
}

func TestTraceAppendAndList(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			if err := s.AppendTrace(ctx, testTrace("agent_1", i)); err != nil {
				t.Fatalf("AppendTrace(%d): %v", i, err)
			}
		}
		if err := s.AppendTrace(ctx, testTrace("agent_2", 0)); err != nil {
			t.Fatalf("AppendTrace(other agent): %v", err)
		}

		traces, err := s.ListTraces(ctx, "agent_1", 3)
		if err != nil {
			t.Fatalf("ListTraces: %v", err)
		}
		if len(traces) != 3 {
			t.Fatalf("len(traces) = %d, want 3", len(traces))
		}
		// Most recent first.
		for i, want := range []string{"trace_agent_1_4", "trace_agent_1_3", "trace_agent_1_2"} {
			if traces[i].TraceID != want {
				t.Fatalf("traces[%d].TraceID = %q, want %q", i, traces[i].TraceID, want)
			}
		}

		all, err := s.ListTraces(ctx, "agent_1", 100)
		if err != nil {
			t.Fatalf("ListTraces: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("len(all) = %d, want 5", len(all))
		}

		none, err := s.ListTraces(ctx, "agent_unknown", 10)
		if err != nil {
			t.Fatalf("ListTraces(unknown): %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("len(none) = %d, want 0", len(none))
		}
	})
}

func TestGetTraceByHash(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		trace := testTrace("agent_1", 0)
		if err := s.AppendTrace(ctx, trace); err != nil {
			t.Fatalf("AppendTrace: %v", err)
		}

		got, err := s.GetTraceByHash(ctx, trace.ActionHash)
		if err != nil {
			t.Fatalf("GetTraceByHash: %v", err)
		}
		if got.TraceID != trace.TraceID {
			t.Fatalf("TraceID = %q, want %q", got.TraceID, trace.TraceID)
		}
		if !got.Timestamp.Equal(trace.Timestamp) {
			t.Fatalf("Timestamp = %v, want %v", got.Timestamp, trace.Timestamp)
		}

		if _, err := s.GetTraceByHash(ctx, "nope"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("GetTraceByHash(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestSetTraceAnchorSticks(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		trace := testTrace("agent_1", 0)
		if err := s.AppendTrace(ctx, trace); err != nil {
			t.Fatalf("AppendTrace: %v", err)
		}

		if err := s.SetTraceAnchor(ctx, trace.TraceID, "tx_first"); err != nil {
			t.Fatalf("SetTraceAnchor: %v", err)
		}
		if err := s.SetTraceAnchor(ctx, trace.TraceID, "tx_second"); err != nil {
			t.Fatalf("SetTraceAnchor (repeat): %v", err)
		}

		got, err := s.GetTraceByHash(ctx, trace.ActionHash)
		if err != nil {
			t.Fatalf("GetTraceByHash: %v", err)
		}
		if got.OnChainTxHash != "tx_first" {
			t.Fatalf("OnChainTxHash = %q, want tx_first", got.OnChainTxHash)
		}

		if err := s.SetTraceAnchor(ctx, "missing", "tx"); !errors.Is(err, attest.ErrNotFound) {
			t.Fatalf("SetTraceAnchor(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestCounts(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		agents, err := s.CountAgents(ctx)
		if err != nil {
			t.Fatalf("CountAgents: %v", err)
		}
		if agents != 0 {
			t.Fatalf("CountAgents = %d, want 0", agents)
		}

		for i := 0; i < 3; i++ {
			if err := s.CreateAgent(ctx, testAgent(i)); err != nil {
				t.Fatalf("CreateAgent(%d): %v", i, err)
			}
		}
		for i := 0; i < 4; i++ {
			if err := s.AppendTrace(ctx, testTrace("agent_0", i)); err != nil {
				t.Fatalf("AppendTrace(%d): %v", i, err)
			}
		}

		agents, err = s.CountAgents(ctx)
		if err != nil {
			t.Fatalf("CountAgents: %v", err)
		}
		if agents != 3 {
			t.Fatalf("CountAgents = %d, want 3", agents)
		}
		traces, err := s.CountTraces(ctx)
		if err != nil {
			t.Fatalf("CountTraces: %v", err)
		}
		if traces != 4 {
			t.Fatalf("CountTraces = %d, want 4", traces)
		}
	})
}
