// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package vaulterror defines the typed failure surface of the Sanctum
// wire protocol. Every RPC error the daemon returns is mapped to a Kind
// so callers can make programmatic decisions (retry after rate limiting,
// request access after denial, re-authenticate after session expiry)
// without parsing message text.
package vaulterror

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a vault failure for programmatic handling.
type Kind string

const (
	// KindVault is the generic failure kind: legacy bare-string errors
	// and wire codes this client does not know. Unknown codes degrade
	// here rather than failing decode, so the daemon can grow its
	// taxonomy without breaking deployed agents.
	KindVault Kind = "vault"

	// KindAuth indicates authentication failed: bad key material,
	// rejected signature, or an unconfirmed handshake. Fatal to the
	// connection attempt.
	KindAuth Kind = "auth"

	// KindAccessDenied indicates policy denied the operation. The agent
	// should request access rather than retry.
	KindAccessDenied Kind = "access_denied"

	// KindCredentialNotFound indicates the credential path does not
	// exist. Retrying with the same path will not help.
	KindCredentialNotFound Kind = "credential_not_found"

	// KindVaultLocked indicates the vault is sealed and must be
	// unlocked by an operator before any credential operation succeeds.
	KindVaultLocked Kind = "vault_locked"

	// KindLeaseExpired indicates the referenced lease no longer exists
	// server-side.
	KindLeaseExpired Kind = "lease_expired"

	// KindRateLimited indicates the agent exceeded its request budget.
	// The caller should back off and retry.
	KindRateLimited Kind = "rate_limited"

	// KindSessionExpired indicates the server invalidated the session.
	// The caller must reconnect and re-authenticate.
	KindSessionExpired Kind = "session_expired"
)

// kindByCode maps wire error codes to kinds. Extending the taxonomy
// means adding a row here, never special-casing in callers.
var kindByCode = map[string]Kind{
	"AUTH_FAILED":          KindAuth,
	"ACCESS_DENIED":        KindAccessDenied,
	"CREDENTIAL_NOT_FOUND": KindCredentialNotFound,
	"VAULT_LOCKED":         KindVaultLocked,
	"LEASE_EXPIRED":        KindLeaseExpired,
	"RATE_LIMITED":         KindRateLimited,
	"SESSION_EXPIRED":      KindSessionExpired,
}

// Error is a structured vault failure. Code, Detail, Suggestion,
// DocsURL, and Context carry the daemon's diagnostic fields verbatim;
// once parsed they are never downgraded to a bare string.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Detail     string
	Suggestion string
	DocsURL    string
	Context    map[string]any
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a generic vault error with no wire code.
func New(format string, args ...any) *Error {
	return &Error{Kind: KindVault, Message: fmt.Sprintf(format, args...)}
}

// AuthFailed creates an authentication-kind error with the standard
// AUTH_FAILED code. Used for client-side auth failures (bad key files,
// decryption failures, unconfirmed handshakes) so the caller sees the
// same shape whether the refusal came from the daemon or from local key
// resolution.
func AuthFailed(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Code: "AUTH_FAILED", Message: fmt.Sprintf(format, args...)}
}

// wirePayload mirrors the structured error object on the wire.
type wirePayload struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Detail     string         `json:"detail,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	DocsURL    string         `json:"docs_url,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// FromPayload converts a response's raw "error" field into a typed
// *Error. A JSON string (the legacy shape) becomes a generic vault
// error carrying that string as message and no code. A JSON object is
// mapped through the code table; unknown codes fall back to KindVault
// with all structured fields preserved.
func FromPayload(raw json.RawMessage) *Error {
	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return &Error{Kind: KindVault, Message: legacy}
	}

	var payload wirePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return New("malformed error payload: %s", raw)
	}
	if payload.Code == "" {
		payload.Code = "INTERNAL_ERROR"
	}
	if payload.Message == "" {
		payload.Message = "unknown error"
	}

	kind, known := kindByCode[payload.Code]
	if !known {
		kind = KindVault
	}
	return &Error{
		Kind:       kind,
		Code:       payload.Code,
		Message:    payload.Message,
		Detail:     payload.Detail,
		Suggestion: payload.Suggestion,
		DocsURL:    payload.DocsURL,
		Context:    payload.Context,
	}
}

// KindOf returns the Kind of err if it is (or wraps) a vault *Error,
// and "" otherwise.
func KindOf(err error) Kind {
	var vaultError *Error
	if errors.As(err, &vaultError) {
		return vaultError.Kind
	}
	return ""
}
