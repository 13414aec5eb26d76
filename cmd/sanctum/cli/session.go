// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/jwgale/sanctum-go/lib/config"
	"github.com/jwgale/sanctum-go/lib/vault"
)

// ConnectOptions carries the flags shared by every command that talks
// to the vault daemon. Flag values override the config file, which
// overrides built-in defaults.
type ConnectOptions struct {
	ConfigPath     string
	Agent          string
	Socket         string
	Host           string
	Port           int
	KeyPath        string
	PassphraseFile string
}

// Register adds the shared connection flags to flagSet.
func (o *ConnectOptions) Register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.ConfigPath, "config", "", "config file (default ~/.sanctum/config.yaml)")
	flagSet.StringVar(&o.Agent, "agent", "", "agent name to authenticate as (required)")
	flagSet.StringVar(&o.Socket, "socket", "", "vault daemon Unix socket path")
	flagSet.StringVar(&o.Host, "host", "", "vault daemon TCP host")
	flagSet.IntVar(&o.Port, "port", 0, "vault daemon TCP port")
	flagSet.StringVar(&o.KeyPath, "key", "", "explicit signing key file")
	flagSet.StringVar(&o.PassphraseFile, "passphrase-file", "",
		"passphrase for an encrypted key: a file path, or - to prompt")
}

// Connect builds a vault client from the flags and config file,
// connects, and authenticates. The returned cleanup closes the client
// and any passphrase buffer; call it even when Connect's later use
// fails.
func (o *ConnectOptions) Connect(ctx context.Context) (*vault.Client, func(), error) {
	if o.Agent == "" {
		return nil, nil, fmt.Errorf("--agent is required")
	}

	configPath := o.ConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	configuration, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	options := vault.Options{
		SocketPath: configuration.SocketPath,
		Host:       configuration.Host,
		Port:       configuration.Port,
		KeyDir:     configuration.KeyDir,
		KeyPath:    o.KeyPath,
		StateDir:   configuration.StateDir,
	}
	if o.Socket != "" {
		options.SocketPath = o.Socket
		options.Host = ""
		options.Port = 0
	}
	if o.Host != "" {
		options.Host = o.Host
		options.Port = o.Port
	}

	cleanup := func() {}
	if o.PassphraseFile != "" {
		passphrase, err := ReadPassphrase(o.PassphraseFile, "Key passphrase")
		if err != nil {
			return nil, nil, err
		}
		options.Passphrase = passphrase
		cleanup = func() { passphrase.Close() }
	}

	client := vault.New(o.Agent, options)
	if err := client.Connect(ctx, nil); err != nil {
		cleanup()
		return nil, nil, err
	}

	previousCleanup := cleanup
	return client, func() {
		client.Close()
		previousCleanup()
	}, nil
}
