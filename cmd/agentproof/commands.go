// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/agentproof-foundation/agentproof/lib/attest"
	"github.com/agentproof-foundation/agentproof/lib/cli"
	"github.com/agentproof-foundation/agentproof/lib/identity"
)

func keygenCommand() *cli.Command {
	var outPath string
	return &cli.Command{
		Name:    "keygen",
		Summary: "generate an Ed25519 keypair",
		Usage:   "agentproof keygen --out <path>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&outPath, "out", "", "file to write the private key to (required)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "generate a keypair and print the wallet address", Command: "agentproof keygen --out agent.key"},
		},
		Run: func(args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			public, private, err := identity.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := identity.WriteKeyFile(outPath, private); err != nil {
				return err
			}
			return printJSON(map[string]string{
				"wallet_address": identity.EncodeKey(public),
				"key_file":       outPath,
			})
		},
	}
}

// verifyCommand is the one-shot flow: request a challenge, sign its
// message with the local key, and redeem it.
func verifyCommand() *cli.Command {
	var keyPath string
	return &cli.Command{
		Name:    "verify",
		Summary: "verify an agent identity (challenge, sign, redeem)",
		Usage:   "agentproof verify <agent-id> --key <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := socketFlags("verify")
			flagSet.StringVar(&keyPath, "key", "", "private key file (required)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "prove key possession for an agent", Command: "agentproof verify my-agent --key agent.key"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <agent-id>")
			}
			if keyPath == "" {
				return fmt.Errorf("--key is required")
			}
			private, err := identity.ReadKeyFile(keyPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			client := newClient()

			var challenge attest.Challenge
			err = client.Call(ctx, "challenge", map[string]any{
				"agent_id":       args[0],
				"wallet_address": identity.EncodeKey(publicKey(private)),
			}, &challenge)
			if err != nil {
				return err
			}

			var result attest.VerificationResult
			err = client.Call(ctx, "redeem", map[string]any{
				"challenge_id": challenge.ChallengeID,
				"signature":    identity.Sign(challenge.Message, private),
				"public_key":   identity.EncodeKey(publicKey(private)),
			}, &result)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func challengeCommand() *cli.Command {
	var walletAddress, keyPath string
	return &cli.Command{
		Name:    "challenge",
		Summary: "request a verification challenge",
		Usage:   "agentproof challenge <agent-id> (--wallet <address> | --key <path>) [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := socketFlags("challenge")
			flagSet.StringVar(&walletAddress, "wallet", "", "agent wallet address")
			flagSet.StringVar(&keyPath, "key", "", "private key file to derive the wallet address from")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <agent-id>")
			}
			wallet, err := resolveWallet(walletAddress, keyPath)
			if err != nil {
				return err
			}

			var challenge attest.Challenge
			err = newClient().Call(context.Background(), "challenge", map[string]any{
				"agent_id":       args[0],
				"wallet_address": wallet,
			}, &challenge)
			if err != nil {
				return err
			}
			return printJSON(challenge)
		},
	}
}

func redeemCommand() *cli.Command {
	var signature, keyPath, message, publicKeyArg string
	return &cli.Command{
		Name:    "redeem",
		Summary: "redeem a challenge with a signature",
		Usage:   "agentproof redeem <challenge-id> (--signature <sig> | --key <path> --message <msg>) [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := socketFlags("redeem")
			flagSet.StringVar(&signature, "signature", "", "base58 Ed25519 signature over the challenge message")
			flagSet.StringVar(&keyPath, "key", "", "private key file used to sign --message")
			flagSet.StringVar(&message, "message", "", "challenge message to sign with --key")
			flagSet.StringVar(&publicKeyArg, "public-key", "", "base58 public key the signature verifies under (default: derived from --key, else the key of record)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <challenge-id>")
			}
			if signature == "" {
				if keyPath == "" || message == "" {
					return fmt.Errorf("either --signature or both --key and --message are required")
				}
				private, err := identity.ReadKeyFile(keyPath)
				if err != nil {
					return err
				}
				signature = identity.Sign(message, private)
				if publicKeyArg == "" {
					publicKeyArg = identity.EncodeKey(publicKey(private))
				}
			}

			var result attest.VerificationResult
			err := newClient().Call(context.Background(), "redeem", map[string]any{
				"challenge_id": args[0],
				"signature":    signature,
				"public_key":   publicKeyArg,
			}, &result)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Summary: "show an agent's verification status",
		Usage:   "agentproof status <agent-id> [flags]",
		Flags:   func() *pflag.FlagSet { return socketFlags("status") },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <agent-id>")
			}
			var status attest.Status
			err := newClient().Call(context.Background(), "status", map[string]any{
				"agent_id": args[0],
			}, &status)
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func logCommand() *cli.Command {
	var dataJSON, keyPath string
	return &cli.Command{
		Name:    "log",
		Summary: "log an attested activity",
		Usage:   "agentproof log <agent-id> <action-type> [--data <json>] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := socketFlags("log")
			flagSet.StringVar(&dataJSON, "data", "", "action data as a JSON document")
			flagSet.StringVar(&keyPath, "key", "", "private key file; when set, the action data is signed")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "log an API call with structured data", Command: `agentproof log my-agent api_call --data '{"endpoint":"/v1/things"}'`},
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected exactly two arguments: <agent-id> <action-type>")
			}

			var actionData any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &actionData); err != nil {
					return fmt.Errorf("parsing --data: %w", err)
				}
			}

			signature := ""
			if keyPath != "" {
				private, err := identity.ReadKeyFile(keyPath)
				if err != nil {
					return err
				}
				signature = identity.Sign(dataJSON, private)
			}

			var trace attest.ActivityTrace
			err := newClient().Call(context.Background(), "log-activity", map[string]any{
				"agent_id":    args[0],
				"action_type": args[1],
				"action_data": actionData,
				"signature":   signature,
			}, &trace)
			if err != nil {
				return err
			}
			return printJSON(trace)
		},
	}
}

func activitiesCommand() *cli.Command {
	var limit int
	return &cli.Command{
		Name:    "activities",
		Summary: "list an agent's recent activity traces",
		Usage:   "agentproof activities <agent-id> [--limit <n>] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := socketFlags("activities")
			flagSet.IntVar(&limit, "limit", 0, "maximum traces to return (default 50)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <agent-id>")
			}
			var response struct {
				Traces []attest.ActivityTrace `cbor:"traces" json:"traces"`
			}
			err := newClient().Call(context.Background(), "activities", map[string]any{
				"agent_id": args[0],
				"limit":    limit,
			}, &response)
			if err != nil {
				return err
			}
			return printJSON(response)
		},
	}
}

func verifyTraceCommand() *cli.Command {
	return &cli.Command{
		Name:    "verify-trace",
		Summary: "verify an activity trace by its action hash",
		Usage:   "agentproof verify-trace <action-hash> [flags]",
		Flags:   func() *pflag.FlagSet { return socketFlags("verify-trace") },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument: <action-hash>")
			}
			var verification attest.TraceVerification
			err := newClient().Call(context.Background(), "verify-trace", map[string]any{
				"action_hash": args[0],
			}, &verification)
			if err != nil {
				return err
			}
			return printJSON(verification)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:    "stats",
		Summary: "show aggregate service statistics",
		Usage:   "agentproof stats [flags]",
		Flags:   func() *pflag.FlagSet { return socketFlags("stats") },
		Run: func(args []string) error {
			var stats attest.Stats
			if err := newClient().Call(context.Background(), "stats", nil, &stats); err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

// publicKey extracts the public half of an Ed25519 private key.
func publicKey(private ed25519.PrivateKey) ed25519.PublicKey {
	return private.Public().(ed25519.PublicKey)
}

// resolveWallet returns the wallet address from --wallet or derives
// it from the key file.
func resolveWallet(walletAddress, keyPath string) (string, error) {
	if walletAddress != "" {
		return walletAddress, nil
	}
	if keyPath == "" {
		return "", fmt.Errorf("either --wallet or --key is required")
	}
	private, err := identity.ReadKeyFile(keyPath)
	if err != nil {
		return "", err
	}
	return identity.EncodeKey(publicKey(private)), nil
}
