// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package leases implements inspection and cleanup of the local lease
// journal for the sanctum CLI.
package leases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/jwgale/sanctum-go/cmd/sanctum/cli"
	"github.com/jwgale/sanctum-go/lib/config"
	"github.com/jwgale/sanctum-go/lib/leasestate"
	"github.com/jwgale/sanctum-go/lib/vaulterror"
)

// Command returns the "leases" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "leases",
		Summary: "Inspect and clean up the local lease journal",
		Subcommands: []*cli.Command{
			listCommand(),
			releaseOrphansCommand(),
		},
	}
}

func listCommand() *cli.Command {
	var configPath string
	var stateDir string
	var agentName string

	return &cli.Command{
		Name:    "list",
		Summary: "List journaled lease ids for an agent",
		Description: `List the lease ids recorded in the local journal.

Entries normally disappear when the client releases its leases on
close. Entries that remain while no client is running are orphans from
a crashed process; release them with "leases release-orphans".`,
		Usage: "sanctum leases list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to the configuration file")
			flagSet.StringVar(&agentName, "agent", "", "agent whose journal to read (required)")
			flagSet.StringVar(&stateDir, "state-dir", "", "directory holding lease journals")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			journal, err := openJournal(configPath, stateDir, agentName)
			if err != nil {
				return err
			}

			leaseIDs, err := journal.Load()
			if err != nil {
				return err
			}
			for _, leaseID := range leaseIDs {
				fmt.Println(leaseID)
			}
			return nil
		},
	}
}

func releaseOrphansCommand() *cli.Command {
	var connect cli.ConnectOptions
	var stateDir string

	return &cli.Command{
		Name:    "release-orphans",
		Summary: "Release leases left behind by a crashed client",
		Description: `Connect to the vault daemon and release every lease recorded in the
local journal. Leases the server no longer knows about (already
expired) are dropped from the journal without error.`,
		Usage: "sanctum leases release-orphans [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("release-orphans", pflag.ContinueOnError)
			connect.Register(flagSet)
			flagSet.StringVar(&stateDir, "state-dir", "", "directory holding lease journals")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			journal, err := openJournal(connect.ConfigPath, stateDir, connect.Agent)
			if err != nil {
				return err
			}

			leaseIDs, err := journal.Load()
			if err != nil {
				return err
			}
			if len(leaseIDs) == 0 {
				return nil
			}

			ctx := context.Background()
			client, cleanup, err := connect.Connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var failed int
			for _, leaseID := range leaseIDs {
				err := client.ReleaseLease(ctx, leaseID)
				switch {
				case err == nil:
					if removeErr := journal.Remove(leaseID); removeErr != nil {
						return removeErr
					}
					fmt.Fprintf(os.Stderr, "released %s\n", leaseID)
				case vaulterror.KindOf(err) == vaulterror.KindLeaseExpired:
					if removeErr := journal.Remove(leaseID); removeErr != nil {
						return removeErr
					}
					fmt.Fprintf(os.Stderr, "dropped expired %s\n", leaseID)
				default:
					failed++
					fmt.Fprintf(os.Stderr, "error releasing %s: %v\n", leaseID, err)
				}
			}
			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// openJournal resolves the state directory from the flag, the config
// file, or the built-in default, and opens the agent's journal.
func openJournal(configPath, stateDir, agentName string) (*leasestate.Journal, error) {
	if agentName == "" {
		return nil, fmt.Errorf("--agent is required")
	}
	if stateDir == "" {
		if configPath == "" {
			configPath = config.DefaultPath()
		}
		configuration, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		stateDir = configuration.StateDir
	}
	return leasestate.New(expandHome(stateDir), agentName), nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[0] == '~' && path[1] == '/') {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
