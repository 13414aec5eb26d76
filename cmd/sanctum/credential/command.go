// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential implements the credential operations of the
// sanctum CLI: retrieve, list, use, and release.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/jwgale/sanctum-go/cmd/sanctum/cli"
)

// Command returns the "credential" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "credential",
		Summary: "Retrieve, list, use, and release credentials",
		Subcommands: []*cli.Command{
			retrieveCommand(),
			listCommand(),
			useCommand(),
			releaseCommand(),
		},
	}
}

func retrieveCommand() *cli.Command {
	var connect cli.ConnectOptions
	var ttlSeconds int

	return &cli.Command{
		Name:    "retrieve",
		Summary: "Retrieve a credential value",
		Description: `Retrieve a credential value and print it to stdout.

The server grants a lease for the retrieved value. The lease is released
when this command exits; prefer "credential use" when the consuming
operation can run server-side, so the secret never enters this process.`,
		Usage: "sanctum credential retrieve <path> [flags]",
		Examples: []cli.Example{
			{Description: "Retrieve an API key", Command: "sanctum credential retrieve openai/api_key --agent billing"},
			{Description: "Retrieve with a 60 second lease", Command: "sanctum credential retrieve db/password --agent billing --ttl 60"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("retrieve", pflag.ContinueOnError)
			connect.Register(flagSet)
			flagSet.IntVar(&ttlSeconds, "ttl", 0, "requested lease TTL in seconds (0 = server default)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one credential path is required")
			}

			ctx := context.Background()
			client, cleanup, err := connect.Connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			value, err := client.Retrieve(ctx, args[0], ttlSeconds)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	var connect cli.ConnectOptions
	var asJSON bool

	return &cli.Command{
		Name:    "list",
		Summary: "List accessible credentials",
		Usage:   "sanctum credential list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			connect.Register(flagSet)
			flagSet.BoolVar(&asJSON, "json", false, "print the full descriptors as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			ctx := context.Background()
			client, cleanup, err := connect.Connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			credentials, err := client.List(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(credentials)
			}
			for _, descriptor := range credentials {
				if path, ok := descriptor["path"].(string); ok {
					fmt.Println(path)
				}
			}
			return nil
		},
	}
}

func useCommand() *cli.Command {
	var connect cli.ConnectOptions
	var paramsJSON string

	return &cli.Command{
		Name:    "use",
		Summary: "Apply a credential server-side without retrieving it",
		Description: `Execute an operation with a credential inside the vault daemon.

The credential value never leaves the daemon; only the operation result
is returned. This is the preferred way to consume secrets.`,
		Usage: "sanctum credential use <path> <operation> [flags]",
		Examples: []cli.Example{
			{Description: "Have the daemon build an Authorization header", Command: `sanctum credential use openai/api_key http_header --agent billing --params '{"header":"Authorization"}'`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("use", pflag.ContinueOnError)
			connect.Register(flagSet)
			flagSet.StringVar(&paramsJSON, "params", "", "operation parameters as a JSON object")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("a credential path and an operation are required")
			}

			var params map[string]any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parsing --params: %w", err)
				}
			}

			ctx := context.Background()
			client, cleanup, err := connect.Connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := client.Use(ctx, args[0], args[1], params)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}
}

func releaseCommand() *cli.Command {
	var connect cli.ConnectOptions

	return &cli.Command{
		Name:    "release",
		Summary: "Release a credential lease early",
		Usage:   "sanctum credential release <lease-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("release", pflag.ContinueOnError)
			connect.Register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one lease id is required")
			}

			ctx := context.Background()
			client, cleanup, err := connect.Connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return client.ReleaseLease(ctx, args[0])
		},
	}
}
