// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault is the client for the Sanctum credential vault daemon.
//
// A Client connects over a Unix or TCP stream socket, authenticates
// with an Ed25519 challenge-response handshake, and then issues
// credential operations: Retrieve (with automatic lease tracking),
// List, Use (the use-not-retrieve pattern, where the credential is
// applied server-side and never enters this process), and
// ReleaseLease. Close releases every tracked lease best-effort before
// closing the transport.
//
// The protocol is strict half-duplex request/response: one request in
// flight at a time, responses correlated by ordering. A Client is not
// safe for concurrent use; callers sharing one across goroutines must
// serialize calls externally.
//
//	client := vault.New("billing-agent", vault.Options{})
//	if err := client.Connect(ctx, nil); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	apiKey, err := client.Retrieve(ctx, "openai/api_key", 0)
package vault
