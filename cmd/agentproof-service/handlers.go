// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/attest/ledger"
	"github.com/agentproof-foundation/agentproof/lib/attest/verify"
	"github.com/agentproof-foundation/agentproof/lib/codec"
	"github.com/agentproof-foundation/agentproof/lib/service"
)

// AttestService is the socket-facing surface over the verification
// engine and the activity ledger.
type AttestService struct {
	engine *verify.Engine
	ledger *ledger.Ledger
	logger *slog.Logger
}

// serve registers the action handlers and runs the socket server
// until ctx is cancelled.
func (s *AttestService) serve(ctx context.Context, socketPath string) error {
	server := service.NewSocketServer(socketPath, s.logger)

	server.Handle("challenge", s.handleChallenge)
	server.Handle("redeem", s.handleRedeem)
	server.Handle("status", s.handleStatus)
	server.Handle("log-activity", s.handleLogActivity)
	server.Handle("activities", s.handleActivities)
	server.Handle("verify-trace", s.handleVerifyTrace)
	server.Handle("stats", s.handleStats)

	return server.Serve(ctx)
}

func (s *AttestService) handleChallenge(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		AgentID       string `cbor:"agent_id"`
		WalletAddress string `cbor:"wallet_address"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.AgentID == "" {
		return nil, fmt.Errorf("missing required field: agent_id")
	}
	if request.WalletAddress == "" {
		return nil, fmt.Errorf("missing required field: wallet_address")
	}

	challenge, err := s.engine.CreateChallenge(ctx, request.AgentID, request.WalletAddress)
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *AttestService) handleRedeem(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		ChallengeID string `cbor:"challenge_id"`
		Signature   string `cbor:"signature"`
		PublicKey   string `cbor:"public_key"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.ChallengeID == "" {
		return nil, fmt.Errorf("missing required field: challenge_id")
	}
	if request.Signature == "" {
		return nil, fmt.Errorf("missing required field: signature")
	}

	// public_key is optional; when absent the engine verifies against
	// the agent's key of record. Rejections travel inside the result,
	// not as protocol errors: the caller gets
	// {verified: false, message: ...} with ok=true.
	result, err := s.engine.RedeemChallenge(ctx, request.ChallengeID, request.Signature, request.PublicKey)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AttestService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		AgentID string `cbor:"agent_id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.AgentID == "" {
		return nil, fmt.Errorf("missing required field: agent_id")
	}

	status, err := s.engine.GetStatus(ctx, request.AgentID)
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *AttestService) handleLogActivity(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		AgentID    string           `cbor:"agent_id"`
		ActionType string           `cbor:"action_type"`
		ActionData codec.RawMessage `cbor:"action_data"`
		Signature  string           `cbor:"signature"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.AgentID == "" {
		return nil, fmt.Errorf("missing required field: agent_id")
	}
	if request.ActionType == "" {
		return nil, fmt.Errorf("missing required field: action_type")
	}

	// Decode the action data into its generic form so hashing sees
	// the logical value, not the client's CBOR byte layout.
	var actionData any
	if len(request.ActionData) > 0 {
		if err := codec.Unmarshal(request.ActionData, &actionData); err != nil {
			return nil, fmt.Errorf("invalid action_data: %w", err)
		}
	}

	trace, err := s.ledger.LogActivity(ctx, request.AgentID, request.ActionType, actionData, request.Signature)
	if err != nil {
		return nil, err
	}
	return trace, nil
}

func (s *AttestService) handleActivities(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		AgentID string `cbor:"agent_id"`
		Limit   int    `cbor:"limit"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.AgentID == "" {
		return nil, fmt.Errorf("missing required field: agent_id")
	}

	traces, err := s.ledger.GetActivities(ctx, request.AgentID, request.Limit)
	if err != nil {
		return nil, err
	}
	return struct {
		Traces []attest.ActivityTrace `cbor:"traces"`
	}{Traces: traces}, nil
}

func (s *AttestService) handleVerifyTrace(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		ActionHash string `cbor:"action_hash"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.ActionHash == "" {
		return nil, fmt.Errorf("missing required field: action_hash")
	}

	verification, err := s.ledger.VerifyTrace(ctx, request.ActionHash)
	if err != nil {
		return nil, err
	}
	return verification, nil
}

func (s *AttestService) handleStats(ctx context.Context, raw []byte) (any, error) {
	stats, err := s.ledger.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
