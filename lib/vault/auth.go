// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"

	"github.com/jwgale/sanctum-go/lib/keyring"
	"github.com/jwgale/sanctum-go/lib/secret"
	"github.com/jwgale/sanctum-go/lib/vaulterror"
)

// authenticate runs the two-round challenge-response handshake. The
// server issues a fresh random challenge bound to this connection's
// session before any signature is produced, so a captured signature
// cannot be replayed against a different session; the private key
// itself never crosses the wire.
//
// The signing seed exists only for the duration of this call — it is
// resolved here and closed before returning, success or failure.
func (c *Client) authenticate(ctx context.Context) error {
	seed, err := keyring.ResolveSigningSeed(c.agentName, keyring.Options{
		KeyDir:     c.options.KeyDir,
		KeyPath:    c.options.KeyPath,
		Passphrase: c.options.Passphrase,
	})
	if err != nil {
		return err
	}
	defer seed.Close()

	result, err := c.call(ctx, "authenticate", map[string]any{
		"agent_name": c.agentName,
	})
	if err != nil {
		return err
	}

	sessionID, ok := result["session_id"].(string)
	if !ok || sessionID == "" {
		return vaulterror.AuthFailed("server returned no session_id")
	}
	challengeHex, ok := result["challenge"].(string)
	if !ok {
		return vaulterror.AuthFailed("server returned no challenge")
	}
	challenge, err := hex.DecodeString(challengeHex)
	if err != nil {
		return vaulterror.AuthFailed("server challenge is not valid hex")
	}
	c.sessionID = sessionID

	privateKey := ed25519.NewKeyFromSeed(seed.Bytes())
	signature := ed25519.Sign(privateKey, challenge)
	secret.Zero(privateKey)

	result, err = c.call(ctx, "challenge_response", map[string]any{
		"session_id": sessionID,
		"signature":  hex.EncodeToString(signature),
	})
	if err != nil {
		return err
	}

	if authenticated, _ := result["authenticated"].(bool); !authenticated {
		return vaulterror.AuthFailed("authentication not confirmed")
	}
	return nil
}
