// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/agentproof-foundation/agentproof/lib/cli"
	"github.com/agentproof-foundation/agentproof/lib/service"
	"github.com/agentproof-foundation/agentproof/lib/version"
)

// defaultSocketPath is used when neither --socket nor
// AGENTPROOF_SOCKET is set.
const defaultSocketPath = "/run/agentproof/agentproof.sock"

// socketPath is shared by all subcommands via the persistent --socket
// flag.
var socketPath string

func main() {
	root := &cli.Command{
		Name:    "agentproof",
		Summary: "client for the AgentProof identity and activity service",
		Description: "agentproof talks to the AgentProof service socket: request and\n" +
			"redeem verification challenges, log attested activity, and verify\n" +
			"activity traces by their content hash.",
		Subcommands: []*cli.Command{
			keygenCommand(),
			verifyCommand(),
			challengeCommand(),
			redeemCommand(),
			statusCommand(),
			logCommand(),
			activitiesCommand(),
			verifyTraceCommand(),
			statsCommand(),
			versionCommand(),
		},
	}

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// socketFlags returns a flag set pre-populated with the shared
// --socket flag.
func socketFlags(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "service socket path (default $AGENTPROOF_SOCKET or "+defaultSocketPath+")")
	return flagSet
}

// newClient resolves the socket path and returns a service client.
func newClient() *service.Client {
	path := socketPath
	if path == "" {
		path = os.Getenv("AGENTPROOF_SOCKET")
	}
	if path == "" {
		path = defaultSocketPath
	}
	return service.NewClient(path)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Println("agentproof", version.Full())
			return nil
		},
	}
}
