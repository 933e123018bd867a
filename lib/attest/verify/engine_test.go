// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/attest/store"
	"github.com/agentproof-foundation/agentproof/lib/clock"
	"github.com/agentproof-foundation/agentproof/lib/identity"
	"github.com/agentproof-foundation/agentproof/lib/testutil"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testHarness struct {
	engine  *Engine
	store   *store.Memory
	clock   *clock.FakeClock
	public  ed25519.PublicKey
	private ed25519.PrivateKey
	wallet  string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	public, private, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	memory := store.NewMemory()
	fakeClock := clock.Fake(testStart)
	engine, err := NewEngine(EngineConfig{
		Store:  memory,
		Clock:  fakeClock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	return &testHarness{
		engine:  engine,
		store:   memory,
		clock:   fakeClock,
		public:  public,
		private: private,
		wallet:  identity.EncodeKey(public),
	}
}

func TestCreateChallengeRegistersAgent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	if challenge.AgentID != "agent_1" {
		t.Fatalf("AgentID = %q", challenge.AgentID)
	}
	if len(challenge.Nonce) != 64 {
		t.Fatalf("nonce length = %d, want 64 hex chars", len(challenge.Nonce))
	}
	want := identity.ChallengeMessage("agent_1", challenge.Nonce, testStart)
	if challenge.Message != want {
		t.Fatalf("Message = %q, want %q", challenge.Message, want)
	}
	if !challenge.ExpiresAt.Equal(testStart.Add(DefaultChallengeTTL)) {
		t.Fatalf("ExpiresAt = %v", challenge.ExpiresAt)
	}

	agent, err := h.store.GetAgent(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.TrustLevel != attest.TrustRegistered {
		t.Fatalf("new agent TrustLevel = %v", agent.TrustLevel)
	}
	if agent.PublicKey != h.wallet || agent.WalletAddress != h.wallet {
		t.Fatalf("agent keys = %q/%q, want wallet %q", agent.PublicKey, agent.WalletAddress, h.wallet)
	}
}

func TestCreateChallengeReusedWalletResolvesExistingAgent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	// A known wallet under a fresh agent ID binds to the wallet's
	// original identity instead of registering a second agent.
	challenge, err := h.engine.CreateChallenge(ctx, "agent_2", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge (reused wallet): %v", err)
	}
	if challenge.AgentID != "agent_1" {
		t.Fatalf("challenge bound to %q, want agent_1", challenge.AgentID)
	}
	if _, err := h.store.GetAgent(ctx, "agent_2"); !errors.Is(err, attest.ErrNotFound) {
		t.Fatalf("GetAgent(agent_2) = %v, want ErrNotFound", err)
	}

	result, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, h.private), "")
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if !result.Verified {
		t.Fatalf("redemption failed: %s", result.Message)
	}
}

func TestCreateChallengeReplacesPrior(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	second, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge (second): %v", err)
	}
	if first.ChallengeID == second.ChallengeID {
		t.Fatal("second challenge reused the first challenge ID")
	}

	// The superseded challenge is gone, even with a valid signature.
	result, err := h.engine.RedeemChallenge(ctx, first.ChallengeID, identity.Sign(first.Message, h.private), h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if result.Verified {
		t.Fatal("superseded challenge was redeemable")
	}

	result, err = h.engine.RedeemChallenge(ctx, second.ChallengeID, identity.Sign(second.Message, h.private), h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge (live): %v", err)
	}
	if !result.Verified {
		t.Fatalf("live challenge not redeemable: %s", result.Message)
	}
}

func TestRedeemChallengeSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	// An omitted public key falls back to the key of record.
	result, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, h.private), "")
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if !result.Verified {
		t.Fatalf("not verified: %s", result.Message)
	}
	if result.TrustLevel != attest.TrustConfirmed {
		t.Fatalf("TrustLevel = %v, want confirmed", result.TrustLevel)
	}
	if !strings.HasPrefix(result.CredentialID, "credential_") {
		t.Fatalf("CredentialID = %q", result.CredentialID)
	}

	agent, err := h.store.GetAgent(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.TrustLevel != attest.TrustConfirmed {
		t.Fatalf("stored TrustLevel = %v", agent.TrustLevel)
	}
}

func TestRedeemChallengeIsOneShot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	signature := identity.Sign(challenge.Message, h.private)

	first, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, signature, h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if !first.Verified {
		t.Fatalf("first redemption failed: %s", first.Message)
	}

	second, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, signature, h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge (replay): %v", err)
	}
	if second.Verified {
		t.Fatal("replayed signature was accepted")
	}
	if second.Message != "challenge not found or already used" {
		t.Fatalf("replay message = %q", second.Message)
	}
}

func TestRedeemChallengeInvalidSignatureConsumes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	result, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign("wrong message", h.private), h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if result.Verified {
		t.Fatal("wrong-message signature was accepted")
	}
	if result.Message != "invalid signature" {
		t.Fatalf("Message = %q", result.Message)
	}

	// A failed attempt consumes the challenge: the real signature no
	// longer works either.
	retry, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, h.private), h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge (retry): %v", err)
	}
	if retry.Verified {
		t.Fatal("consumed challenge was redeemable")
	}
}

func TestRedeemChallengeAdoptsSuppliedKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rotatedPublic, rotatedPrivate, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	rotatedKey := identity.EncodeKey(rotatedPublic)

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	result, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, rotatedPrivate), rotatedKey)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if !result.Verified {
		t.Fatalf("redemption with supplied key failed: %s", result.Message)
	}

	agent, err := h.store.GetAgent(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.PublicKey != rotatedKey {
		t.Fatalf("PublicKey = %q, want adopted key %q", agent.PublicKey, rotatedKey)
	}
	if agent.WalletAddress != h.wallet {
		t.Fatalf("WalletAddress = %q, want %q", agent.WalletAddress, h.wallet)
	}

	// The adopted key is now the key of record for later redemptions
	// that omit public_key.
	next, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge (second): %v", err)
	}
	retry, err := h.engine.RedeemChallenge(ctx, next.ChallengeID, identity.Sign(next.Message, rotatedPrivate), "")
	if err != nil {
		t.Fatalf("RedeemChallenge (second): %v", err)
	}
	if !retry.Verified {
		t.Fatalf("redemption under adopted key failed: %s", retry.Message)
	}
}

func TestRedeemChallengeExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	h.clock.Advance(DefaultChallengeTTL)

	result, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, h.private), h.wallet)
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if result.Verified {
		t.Fatal("expired challenge was accepted")
	}
	if result.Message != "challenge expired" {
		t.Fatalf("Message = %q", result.Message)
	}
}

func TestRedeemUnknownChallenge(t *testing.T) {
	h := newHarness(t)

	result, err := h.engine.RedeemChallenge(context.Background(), "challenge_0_deadbeef", "sig", "")
	if err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}
	if result.Verified {
		t.Fatal("unknown challenge was accepted")
	}
	if result.Message != "challenge not found or already used" {
		t.Fatalf("Message = %q", result.Message)
	}
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	status, err := h.engine.GetStatus(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Verified || status.Agent != nil {
		t.Fatalf("unknown agent status = %+v", status)
	}

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	status, err = h.engine.GetStatus(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Verified {
		t.Fatal("registered agent reported verified before redemption")
	}
	if status.Agent == nil || status.Agent.AgentID != "agent_1" {
		t.Fatalf("status.Agent = %+v", status.Agent)
	}

	if _, err := h.engine.RedeemChallenge(ctx, challenge.ChallengeID, identity.Sign(challenge.Message, h.private), h.wallet); err != nil {
		t.Fatalf("RedeemChallenge: %v", err)
	}

	status, err = h.engine.GetStatus(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.Verified || status.TrustLevel != attest.TrustConfirmed {
		t.Fatalf("post-redemption status = %+v", status)
	}
}

func TestComputeTrustLevel(t *testing.T) {
	policy := DefaultTrustPolicy()
	now := testStart

	cases := []struct {
		name       string
		level      attest.TrustLevel
		age        time.Duration
		activities int64
		want       attest.TrustLevel
	}{
		{"registered stays registered", attest.TrustRegistered, 100 * 24 * time.Hour, 1000, attest.TrustRegistered},
		{"fresh confirmed stays confirmed", attest.TrustConfirmed, time.Hour, 5, attest.TrustConfirmed},
		{"old but idle stays confirmed", attest.TrustConfirmed, 10 * 24 * time.Hour, 9, attest.TrustConfirmed},
		{"busy but young stays confirmed", attest.TrustConfirmed, 6 * 24 * time.Hour, 100, attest.TrustConfirmed},
		{"active thresholds met", attest.TrustConfirmed, 7 * 24 * time.Hour, 10, attest.TrustActive},
		{"old but below trusted count", attest.TrustConfirmed, 40 * 24 * time.Hour, 10, attest.TrustActive},
		{"trusted thresholds met", attest.TrustConfirmed, 30 * 24 * time.Hour, 30, attest.TrustTrusted},
		{"trusted never demotes", attest.TrustTrusted, time.Hour, 0, attest.TrustTrusted},
		{"active never demotes", attest.TrustActive, time.Hour, 0, attest.TrustActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agent := attest.Agent{
				TrustLevel:      tc.level,
				TotalActivities: tc.activities,
				CreatedAt:       now.Add(-tc.age),
			}
			if got := ComputeTrustLevel(agent, policy, now); got != tc.want {
				t.Fatalf("ComputeTrustLevel = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRunExpirySweep(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	challenge, err := h.engine.CreateChallenge(ctx, "agent_1", h.wallet)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.engine.RunExpirySweep(ctx, DefaultSweepInterval)
	}()

	h.clock.WaitForTimers(1)
	h.clock.Advance(DefaultChallengeTTL + DefaultSweepInterval)

	testutil.Eventually(t, func() bool {
		_, err := h.store.GetChallenge(ctx, challenge.ChallengeID)
		return errors.Is(err, attest.ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond, "waiting for sweep to remove expired challenge")

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "waiting for sweep to stop")
}
