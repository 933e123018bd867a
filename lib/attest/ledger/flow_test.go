// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/anchor"
	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/attest/store"
	"github.com/agentproof-foundation/agentproof/lib/attest/verify"
	"github.com/agentproof-foundation/agentproof/lib/clock"
	"github.com/agentproof-foundation/agentproof/lib/identity"
	"github.com/agentproof-foundation/agentproof/lib/testutil"
)

// TestFullAgentLifecycle drives one agent through the complete flow:
// registration via challenge, redemption, activity accumulation, and
// the time-and-count gated trust promotions, with the anchor worker
// running throughout.
func TestFullAgentLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	memory := store.NewMemory()
	fakeClock := clock.Fake(testStart)
	memAnchor := anchor.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := verify.NewEngine(verify.EngineConfig{
		Store:  memory,
		Clock:  fakeClock,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	activityLedger, err := New(Config{
		Store:     memory,
		Clock:     fakeClock,
		Logger:    logger,
		Evaluator: engine,
		Anchor:    memAnchor,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		activityLedger.RunAnchorWorker(ctx)
	}()

	public, private, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	wallet := identity.EncodeKey(public)

	// Register and verify.
	challenge, err := engine.CreateChallenge(ctx, "agent_e2e", wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	result, err := engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, private), wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if !result.Verified || result.TrustLevel != attest.TrustConfirmed {
		t.Fatalf("redemption result = %+v", result)
	}

	// Nine activities within the first week: enough count for the
	// active tier but not enough age, so the level holds at confirmed.
	for i := 0; i < 9; i++ {
		fakeClock.Advance(time.Hour)
		if _, err := activityLedger.LogActivity(ctx, "agent_e2e", "api_call", fmt.Sprintf("action-%d", i), "sig"); err != nil {
			t.Fatalf("LogActivity(%d): %v", i, err)
		}
	}
	status, err := engine.GetStatus(ctx, "agent_e2e")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.TrustLevel != attest.TrustConfirmed {
		t.Fatalf("TrustLevel after 9 activities = %v, want confirmed", status.TrustLevel)
	}

	// Cross the age threshold; the tenth activity satisfies both
	// active conditions.
	fakeClock.Advance(7 * 24 * time.Hour)
	if _, err := activityLedger.LogActivity(ctx, "agent_e2e", "api_call", "action-9", "sig"); err != nil {
		t.Fatalf("LogActivity(10th): %v", err)
	}
	status, err = engine.GetStatus(ctx, "agent_e2e")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.TrustLevel != attest.TrustActive {
		t.Fatalf("TrustLevel after 10 activities and 7 days = %v, want active", status.TrustLevel)
	}

	// Push past the trusted thresholds: 30 days of age and 30
	// activities.
	fakeClock.Advance(30 * 24 * time.Hour)
	var lastTrace attest.ActivityTrace
	for i := 10; i < 30; i++ {
		fakeClock.Advance(time.Minute)
		lastTrace, err = activityLedger.LogActivity(ctx, "agent_e2e", "api_call", fmt.Sprintf("action-%d", i), "sig")
		if err != nil {
			t.Fatalf("LogActivity(%d): %v", i, err)
		}
	}
	status, err = engine.GetStatus(ctx, "agent_e2e")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.TrustLevel != attest.TrustTrusted {
		t.Fatalf("TrustLevel after 30 activities and 30 days = %v, want trusted", status.TrustLevel)
	}
	if status.Agent.TotalActivities != 30 {
		t.Fatalf("TotalActivities = %d, want 30", status.Agent.TotalActivities)
	}

	// The worker has been anchoring in the background; the last trace
	// ends up valid and on chain.
	testutil.Eventually(t, func() bool {
		verification, err := activityLedger.VerifyTrace(ctx, lastTrace.ActionHash)
		return err == nil && verification.Valid && verification.OnChain
	}, 5*time.Second, 10*time.Millisecond, "waiting for last trace to anchor")

	// An expired challenge for a second agent is rejected and
	// consumed.
	public2, private2, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	challenge2, err := engine.CreateChallenge(ctx, "agent_late", identity.EncodeKey(public2))
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	fakeClock.Advance(verify.DefaultChallengeTTL)
	late, err := engine.RedeemChallenge(ctx, challenge2.ChallengeID, identity.Sign(challenge2.Message, private2), identity.EncodeKey(public2))
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if late.Verified || late.Message != "challenge expired" {
		t.Fatalf("expired redemption result = %+v", late)
	}

	cancel()
	testutil.RequireClosed(t, workerDone, 5*time.Second, "waiting for worker to stop")
}
