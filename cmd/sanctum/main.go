// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Command sanctum is the command-line client for the Sanctum
// credential vault daemon.
package main

import (
	"fmt"
	"os"

	"github.com/jwgale/sanctum-go/cmd/sanctum/cli"
	"github.com/jwgale/sanctum-go/cmd/sanctum/credential"
	"github.com/jwgale/sanctum-go/cmd/sanctum/keys"
	"github.com/jwgale/sanctum-go/cmd/sanctum/leases"
)

func main() {
	root := &cli.Command{
		Name:    "sanctum",
		Summary: "Client for the Sanctum credential vault",
		Description: `sanctum talks to a local Sanctum vault daemon over its Unix socket
(or TCP), authenticating with the agent's Ed25519 signing key.`,
		Subcommands: []*cli.Command{
			credential.Command(),
			keys.Command(),
			leases.Command(),
		},
	}

	if err := root.Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
