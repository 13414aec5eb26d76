// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package keys implements signing key provisioning for the sanctum CLI.
package keys

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/jwgale/sanctum-go/cmd/sanctum/cli"
	"github.com/jwgale/sanctum-go/lib/config"
	"github.com/jwgale/sanctum-go/lib/keyring"
)

// Command returns the "keys" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "keys",
		Summary: "Generate and inspect agent signing keys",
		Subcommands: []*cli.Command{
			generateCommand(),
			showCommand(),
		},
	}
}

func generateCommand() *cli.Command {
	var configPath string
	var keyDir string
	var passphraseFile string
	var encrypt bool
	var escrowRecipients []string

	return &cli.Command{
		Name:    "generate",
		Summary: "Generate a signing key for an agent",
		Description: `Generate an Ed25519 signing key and write it to the key directory.

With --encrypt the seed is written passphrase-encrypted as
<agent>.key.enc; otherwise it is written in plaintext as <agent>.key.
Each --escrow-recipient adds an age recipient to an escrow copy written
alongside the key, so the key can be recovered if the passphrase is
lost.

The public key is printed to stdout. Register it with the vault daemon
to authorize the agent.`,
		Usage: "sanctum keys generate <agent> [flags]",
		Examples: []cli.Example{
			{Description: "Generate a plaintext key", Command: "sanctum keys generate billing"},
			{Description: "Generate an encrypted key with escrow", Command: "sanctum keys generate billing --encrypt --escrow-recipient age1..."},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("generate", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to the configuration file")
			flagSet.StringVar(&keyDir, "key-dir", "", "directory to write the key into")
			flagSet.BoolVar(&encrypt, "encrypt", false, "encrypt the seed with a passphrase")
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the passphrase from this file instead of prompting")
			flagSet.StringSliceVar(&escrowRecipients, "escrow-recipient", nil, "age recipient for an escrow copy of the key (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one agent name is required")
			}
			agentName := args[0]

			directory, err := resolveKeyDir(configPath, keyDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(directory, 0o700); err != nil {
				return fmt.Errorf("creating key directory: %w", err)
			}

			seed, err := keyring.GenerateSeed()
			if err != nil {
				return err
			}
			defer seed.Close()

			if encrypt {
				passphrase, err := cli.ReadPassphrase(passphraseFile, "Passphrase for new key")
				if err != nil {
					return err
				}
				defer passphrase.Close()
				path := filepath.Join(directory, agentName+".key.enc")
				if err := keyring.SaveEncryptedSeed(path, seed, passphrase); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", path)
			} else {
				path := filepath.Join(directory, agentName+".key")
				if err := keyring.SaveSeed(path, seed); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", path)
			}

			if len(escrowRecipients) > 0 {
				path := filepath.Join(directory, agentName+".key.age")
				if err := keyring.EscrowSeed(path, seed, escrowRecipients); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote escrow copy %s\n", path)
			}

			fmt.Println(keyring.PublicKeyHex(seed))
			return nil
		},
	}
}

func showCommand() *cli.Command {
	var configPath string
	var keyDir string
	var keyPath string
	var passphraseFile string

	return &cli.Command{
		Name:    "show",
		Summary: "Print the public key for an agent",
		Usage:   "sanctum keys show <agent> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to the configuration file")
			flagSet.StringVar(&keyDir, "key-dir", "", "directory to look for the key in")
			flagSet.StringVar(&keyPath, "key", "", "explicit path to the key file")
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the passphrase from this file instead of prompting")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one agent name is required")
			}
			agentName := args[0]

			directory, err := resolveKeyDir(configPath, keyDir)
			if err != nil {
				return err
			}

			options := keyring.Options{KeyDir: directory, KeyPath: keyPath}
			encryptedPath := filepath.Join(directory, agentName+".key.enc")
			if keyPath == "" {
				if _, err := os.Stat(encryptedPath); err == nil {
					passphrase, err := cli.ReadPassphrase(passphraseFile, "Key passphrase")
					if err != nil {
						return err
					}
					defer passphrase.Close()
					options.Passphrase = passphrase
				}
			}

			seed, err := keyring.ResolveSigningSeed(agentName, options)
			if err != nil {
				return err
			}
			defer seed.Close()

			fmt.Println(keyring.PublicKeyHex(seed))
			return nil
		},
	}
}

// resolveKeyDir picks the key directory from the flag, the config file,
// or the built-in default, in that order.
func resolveKeyDir(configPath, flagValue string) (string, error) {
	if flagValue != "" {
		return expandHome(flagValue), nil
	}
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return expandHome(cfg.KeyDir), nil
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
