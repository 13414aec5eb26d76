// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/jwgale/sanctum-go/lib/vaulterror"
)

// Retrieve fetches a credential value as a UTF-8 string. Invalid byte
// sequences are replaced rather than failing, so a binary credential
// never makes Retrieve error on decode — callers needing raw lease
// metadata should use RetrieveRaw. ttlSeconds, when positive, requests
// a lease of that duration; zero or negative leaves the TTL to server
// policy.
//
// The returned credential's lease is tracked and released
// automatically on Close.
func (c *Client) Retrieve(ctx context.Context, path string, ttlSeconds int) (string, error) {
	result, err := c.RetrieveRaw(ctx, path, ttlSeconds)
	if err != nil {
		return "", err
	}

	valueHex, _ := result["value"].(string)
	value, err := hex.DecodeString(valueHex)
	if err != nil {
		return "", vaulterror.New("credential value is not valid hex")
	}
	return strings.ToValidUTF8(string(value), "�"), nil
}

// RetrieveRaw is Retrieve without value decoding: it returns the full
// result mapping (lease_id, value, ttl, and any server-side extras)
// unmodified. The lease is tracked the same way.
func (c *Client) RetrieveRaw(ctx context.Context, path string, ttlSeconds int) (map[string]any, error) {
	if c.state != StateAuthenticated {
		return nil, ErrNotConnected
	}

	params := map[string]any{
		"session_id": c.sessionID,
		"path":       path,
	}
	if ttlSeconds > 0 {
		params["ttl"] = ttlSeconds
	}

	result, err := c.call(ctx, "retrieve", params)
	if err != nil {
		return nil, err
	}

	if leaseID, ok := result["lease_id"].(string); ok && leaseID != "" {
		c.trackLease(leaseID)
	}
	return result, nil
}

// List returns the credential descriptors this agent has access to, or
// an empty slice when the server reports none.
func (c *Client) List(ctx context.Context) ([]map[string]any, error) {
	if c.state != StateAuthenticated {
		return nil, ErrNotConnected
	}

	result, err := c.call(ctx, "list", map[string]any{
		"session_id": c.sessionID,
	})
	if err != nil {
		return nil, err
	}

	entries, _ := result["credentials"].([]any)
	credentials := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if descriptor, ok := entry.(map[string]any); ok {
			credentials = append(credentials, descriptor)
		}
	}
	return credentials, nil
}

// Use executes an operation with a credential server-side without the
// credential value ever being returned to this process (for example
// operation "http_header" to have the daemon inject an API key). The
// result mapping is returned verbatim. Use never produces a lease.
func (c *Client) Use(ctx context.Context, path, operation string, params map[string]any) (map[string]any, error) {
	if c.state != StateAuthenticated {
		return nil, ErrNotConnected
	}

	rpcParams := map[string]any{
		"session_id": c.sessionID,
		"path":       path,
		"operation":  operation,
	}
	if len(params) > 0 {
		rpcParams["params"] = params
	}

	return c.call(ctx, "use", rpcParams)
}

// ReleaseLease releases a credential lease early. The RPC is always
// issued; any server error is surfaced to the caller and the lease
// stays tracked. On success the id is removed from the tracked set if
// present — releasing an id this client never tracked is not an error.
func (c *Client) ReleaseLease(ctx context.Context, leaseID string) error {
	if c.state != StateAuthenticated {
		return ErrNotConnected
	}

	if _, err := c.call(ctx, "release_lease", map[string]any{
		"lease_id": leaseID,
	}); err != nil {
		return err
	}

	c.untrackLease(leaseID)
	return nil
}
