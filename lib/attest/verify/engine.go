// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/attest/store"
	"github.com/agentproof-foundation/agentproof/lib/clock"
	"github.com/agentproof-foundation/agentproof/lib/identity"
)

// DefaultChallengeTTL is how long an issued challenge stays
// redeemable.
const DefaultChallengeTTL = 5 * time.Minute

// TrustPolicy holds the thresholds for automatic trust promotion.
// Both conditions of a tier (age and activity count) must hold for
// promotion into it.
type TrustPolicy struct {
	// ActiveAge and ActiveActivities gate the confirmed → active
	// promotion.
	ActiveAge        time.Duration
	ActiveActivities int64

	// TrustedAge and TrustedActivities gate the active → trusted
	// promotion.
	TrustedAge        time.Duration
	TrustedActivities int64
}

// DefaultTrustPolicy returns the standard promotion thresholds:
// active after 7 days and 10 activities, trusted after 30 days and 30
// activities.
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		ActiveAge:         7 * 24 * time.Hour,
		ActiveActivities:  10,
		TrustedAge:        30 * 24 * time.Hour,
		TrustedActivities: 30,
	}
}

// ComputeTrustLevel evaluates the trust level agent qualifies for at
// time now under policy. The result is never below the agent's
// current level, and a registered agent stays registered: only
// challenge redemption crosses the registered/confirmed boundary.
func ComputeTrustLevel(agent attest.Agent, policy TrustPolicy, now time.Time) attest.TrustLevel {
	level := agent.TrustLevel
	if level < attest.TrustConfirmed {
		return level
	}

	age := now.Sub(agent.CreatedAt)
	switch {
	case age >= policy.TrustedAge && agent.TotalActivities >= policy.TrustedActivities:
		if level < attest.TrustTrusted {
			level = attest.TrustTrusted
		}
	case age >= policy.ActiveAge && agent.TotalActivities >= policy.ActiveActivities:
		if level < attest.TrustActive {
			level = attest.TrustActive
		}
	}
	return level
}

// Engine is the identity verification core. Safe for concurrent use;
// operations touching the same agent are serialized on a per-agent
// lock so challenge replacement and redemption compose atomically
// over individual store calls.
type Engine struct {
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger
	policy TrustPolicy
	ttl    time.Duration
	locks  *attest.KeyedMutex
}

// EngineConfig configures a verification Engine.
type EngineConfig struct {
	// Store is the persistence backend. Required.
	Store store.Store

	// Clock provides time. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives structured engine events. Required.
	Logger *slog.Logger

	// Policy holds the trust promotion thresholds. Zero value means
	// DefaultTrustPolicy().
	Policy TrustPolicy

	// ChallengeTTL is the challenge validity window. Defaults to
	// DefaultChallengeTTL.
	ChallengeTTL time.Duration
}

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("verify: Store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("verify: Logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Policy == (TrustPolicy{}) {
		cfg.Policy = DefaultTrustPolicy()
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	return &Engine{
		store:  cfg.Store,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		policy: cfg.Policy,
		ttl:    cfg.ChallengeTTL,
		locks:  attest.NewKeyedMutex(),
	}, nil
}

// Policy returns the engine's trust promotion thresholds.
func (e *Engine) Policy() TrustPolicy { return e.policy }

// Evaluate reports the trust level agent qualifies for at time now
// under the engine's policy. Implements the ledger's trust evaluator
// contract.
func (e *Engine) Evaluate(agent attest.Agent, now time.Time) attest.TrustLevel {
	return ComputeTrustLevel(agent, e.policy, now)
}

// CreateChallenge issues a fresh challenge, registering the agent on
// first contact. An unknown agent ID whose wallet is already
// registered resolves to the wallet's existing agent, so one keypair
// never splits into two identities. Any prior live challenge for the
// agent is discarded; only the newest challenge is ever redeemable.
func (e *Engine) CreateChallenge(ctx context.Context, agentID, walletAddress string) (attest.Challenge, error) {
	if agentID == "" || walletAddress == "" {
		return attest.Challenge{}, errors.New("verify: agent ID and wallet address are required")
	}

	owner, err := e.resolveOwner(ctx, agentID, walletAddress)
	if err != nil {
		return attest.Challenge{}, err
	}

	unlock := e.locks.Lock(owner)
	defer unlock()

	now := e.clock.Now()

	_, err = e.store.GetAgent(ctx, owner)
	switch {
	case errors.Is(err, attest.ErrNotFound):
		err = e.store.CreateAgent(ctx, attest.Agent{
			AgentID:       owner,
			WalletAddress: walletAddress,
			PublicKey:     walletAddress,
			TrustLevel:    attest.TrustRegistered,
			CreatedAt:     now,
			LastActivity:  now,
		})
		if err != nil {
			return attest.Challenge{}, fmt.Errorf("registering agent: %w", err)
		}
		e.logger.Info("agent registered",
			"agent_id", owner,
			"wallet_address", walletAddress)
	case err != nil:
		return attest.Challenge{}, fmt.Errorf("looking up agent: %w", err)
	}

	if prior, err := e.store.GetChallengeByAgent(ctx, owner); err == nil {
		if err := e.store.DeleteChallenge(ctx, prior.ChallengeID); err != nil {
			return attest.Challenge{}, fmt.Errorf("discarding prior challenge: %w", err)
		}
	} else if !errors.Is(err, attest.ErrNotFound) {
		return attest.Challenge{}, fmt.Errorf("looking up prior challenge: %w", err)
	}

	nonce, err := identity.GenerateNonce()
	if err != nil {
		return attest.Challenge{}, err
	}
	challengeID, err := identity.GenerateID("challenge", now)
	if err != nil {
		return attest.Challenge{}, err
	}

	challenge := attest.Challenge{
		ChallengeID: challengeID,
		AgentID:     owner,
		Nonce:       nonce,
		Message:     identity.ChallengeMessage(owner, nonce, now),
		ExpiresAt:   now.Add(e.ttl),
		CreatedAt:   now,
	}
	if err := e.store.CreateChallenge(ctx, challenge); err != nil {
		return attest.Challenge{}, fmt.Errorf("storing challenge: %w", err)
	}

	e.logger.Info("challenge issued",
		"agent_id", owner,
		"challenge_id", challengeID,
		"expires_at", challenge.ExpiresAt)
	return challenge, nil
}

// resolveOwner maps a challenge request to the agent it belongs to:
// the agent ID when that agent is known, otherwise the wallet's
// existing agent. A registered wallet presented under a new agent ID
// binds to its original identity rather than colliding on the wallet
// uniqueness constraint.
func (e *Engine) resolveOwner(ctx context.Context, agentID, walletAddress string) (string, error) {
	_, err := e.store.GetAgent(ctx, agentID)
	if err == nil {
		return agentID, nil
	}
	if !errors.Is(err, attest.ErrNotFound) {
		return "", fmt.Errorf("looking up agent: %w", err)
	}

	existing, err := e.store.GetAgentByWallet(ctx, walletAddress)
	if err == nil {
		return existing.AgentID, nil
	}
	if !errors.Is(err, attest.ErrNotFound) {
		return "", fmt.Errorf("looking up agent by wallet: %w", err)
	}
	return agentID, nil
}

// RedeemChallenge attempts to redeem a challenge with an Ed25519
// signature over its message. publicKey is the base58 key the
// signature was made with; when empty, the agent's key of record is
// used. A successful redemption adopts the key the signature verified
// under as the agent's key of record. The challenge is consumed
// whatever the outcome. Failures come back as an unverified result,
// not an error; an unknown challenge ID and an already-consumed one
// produce the same result so callers cannot probe which IDs ever
// existed. The error return is reserved for internal faults.
func (e *Engine) RedeemChallenge(ctx context.Context, challengeID, signature, publicKey string) (attest.VerificationResult, error) {
	challenge, err := e.store.GetChallenge(ctx, challengeID)
	if errors.Is(err, attest.ErrNotFound) {
		return attest.VerificationResult{
			Verified: false,
			Message:  "challenge not found or already used",
		}, nil
	}
	if err != nil {
		return attest.VerificationResult{}, fmt.Errorf("looking up challenge: %w", err)
	}

	unlock := e.locks.Lock(challenge.AgentID)
	defer unlock()

	// Re-read under the agent lock: a concurrent redemption or a
	// replacement issued between the lookup and the lock may have
	// consumed this challenge already.
	challenge, err = e.store.GetChallenge(ctx, challengeID)
	if errors.Is(err, attest.ErrNotFound) {
		return attest.VerificationResult{
			Verified: false,
			Message:  "challenge not found or already used",
		}, nil
	}
	if err != nil {
		return attest.VerificationResult{}, fmt.Errorf("looking up challenge: %w", err)
	}

	// One-shot: consume before judging the attempt.
	if err := e.store.DeleteChallenge(ctx, challengeID); err != nil {
		return attest.VerificationResult{}, fmt.Errorf("consuming challenge: %w", err)
	}

	now := e.clock.Now()
	if !now.Before(challenge.ExpiresAt) {
		e.logger.Info("challenge redemption rejected",
			"agent_id", challenge.AgentID,
			"challenge_id", challengeID,
			"reason", "expired")
		return attest.VerificationResult{
			Verified: false,
			Message:  "challenge expired",
		}, nil
	}

	agent, err := e.store.GetAgent(ctx, challenge.AgentID)
	if err != nil {
		return attest.VerificationResult{}, fmt.Errorf("looking up agent: %w", err)
	}

	verificationKey := publicKey
	if verificationKey == "" {
		verificationKey = agent.PublicKey
	}

	if !identity.VerifySignature(challenge.Message, signature, verificationKey) {
		e.logger.Info("challenge redemption rejected",
			"agent_id", challenge.AgentID,
			"challenge_id", challengeID,
			"reason", "invalid signature")
		return attest.VerificationResult{
			Verified:   false,
			TrustLevel: agent.TrustLevel,
			Message:    "invalid signature",
		}, nil
	}

	updated, err := e.store.UpdateAgent(ctx, agent.AgentID, func(a *attest.Agent) error {
		if a.TrustLevel < attest.TrustConfirmed {
			a.TrustLevel = attest.TrustConfirmed
		}
		a.PublicKey = verificationKey
		a.LastActivity = now
		return nil
	})
	if err != nil {
		return attest.VerificationResult{}, fmt.Errorf("updating agent: %w", err)
	}

	credentialID, err := identity.GenerateID("credential", now)
	if err != nil {
		return attest.VerificationResult{}, err
	}

	e.logger.Info("agent verified",
		"agent_id", agent.AgentID,
		"challenge_id", challengeID,
		"trust_level", updated.TrustLevel.String())
	return attest.VerificationResult{
		Verified:     true,
		CredentialID: credentialID,
		TrustLevel:   updated.TrustLevel,
		Message:      "verification successful",
	}, nil
}

// GetStatus returns the agent's verification status. Unknown agents
// get an unverified zero status rather than an error.
func (e *Engine) GetStatus(ctx context.Context, agentID string) (attest.Status, error) {
	agent, err := e.store.GetAgent(ctx, agentID)
	if errors.Is(err, attest.ErrNotFound) {
		return attest.Status{Verified: false, TrustLevel: attest.TrustRegistered}, nil
	}
	if err != nil {
		return attest.Status{}, fmt.Errorf("looking up agent: %w", err)
	}
	return attest.Status{
		Verified:   agent.TrustLevel >= attest.TrustConfirmed,
		TrustLevel: agent.TrustLevel,
		Agent:      &agent,
	}, nil
}
