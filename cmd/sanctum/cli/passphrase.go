// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/jwgale/sanctum-go/lib/secret"
)

// ReadPassphrase obtains a passphrase for key decryption. With an
// empty source or "-", it prompts interactively with echo disabled
// when stdin is a terminal, and otherwise reads one line from stdin
// (for piped invocations). A non-empty source is a file path.
//
// The passphrase is returned in protected memory; the caller must
// close it.
func ReadPassphrase(source, prompt string) (*secret.Buffer, error) {
	if source != "" && source != "-" {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase file: %w", err)
		}
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			secret.Zero(data)
			return nil, fmt.Errorf("passphrase file %s is empty", source)
		}
		buffer, err := secret.NewFromBytes(trimmed)
		secret.Zero(data)
		return buffer, err
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%s: ", prompt)
		line, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		if len(line) == 0 {
			return nil, fmt.Errorf("empty passphrase")
		}
		return secret.NewFromBytes(line)
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading passphrase from stdin: %w", err)
		}
		return nil, fmt.Errorf("stdin is empty")
	}
	line := bytes.TrimSpace(scanner.Bytes())
	if len(line) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	return secret.NewFromBytes(line)
}
