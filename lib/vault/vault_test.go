// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jwgale/sanctum-go/lib/vaulterror"
)

func TestConnectAuthenticates(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if client.State() != StateDisconnected {
		t.Fatalf("initial state = %v", client.State())
	}

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if client.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", client.State())
	}
	if client.SessionID() == "" {
		t.Error("SessionID is empty after Connect")
	}
}

func TestConnectTCP(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	keyDir := t.TempDir()
	keyFile := filepath.Join(keyDir, "test-agent.key")
	if err := os.WriteFile(keyFile, []byte(hex.EncodeToString(privateKey.Seed())), 0600); err != nil {
		t.Fatalf("writing key: %v", err)
	}

	daemon := startFakeDaemonTCP(t, publicKey)
	host, port := daemon.tcpHostPort()

	client := New("test-agent", Options{KeyDir: keyDir, StateDir: t.TempDir()})
	if err := client.Connect(context.Background(), &Target{Host: host, Port: port}); err != nil {
		t.Fatalf("Connect over TCP: %v", err)
	}
	defer client.Close()

	if client.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", client.State())
	}
}

func TestConnectRejectedSignature(t *testing.T) {
	client, daemon := newTestClient(t)

	// Daemon trusts a different key than the one on disk.
	otherPublic, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	daemon.mu.Lock()
	daemon.publicKey = otherPublic
	daemon.mu.Unlock()

	err = client.Connect(context.Background(), nil)
	if vaulterror.KindOf(err) != vaulterror.KindAuth {
		t.Fatalf("Connect with rejected signature: got %v, want auth kind", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("state after failed handshake = %v, want disconnected", client.State())
	}
	if client.SessionID() != "" {
		t.Errorf("SessionID = %q after failed handshake", client.SessionID())
	}
}

func TestConnectMissingKeyFile(t *testing.T) {
	daemon := startFakeDaemon(t, nil)
	client := New("absent-agent", Options{
		SocketPath: daemon.socketPath(),
		KeyDir:     t.TempDir(),
		StateDir:   t.TempDir(),
	})

	err := client.Connect(context.Background(), nil)
	if err == nil {
		t.Fatal("Connect succeeded without a key file")
	}
	if client.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", client.State())
	}
}

func TestOperationsBeforeConnect(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Retrieve(ctx, "a/b", 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Retrieve: got %v, want ErrNotConnected", err)
	}
	if _, err := client.List(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("List: got %v, want ErrNotConnected", err)
	}
	if _, err := client.Use(ctx, "a/b", "http_header", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Use: got %v, want ErrNotConnected", err)
	}
	if err := client.ReleaseLease(ctx, "lease-1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReleaseLease: got %v, want ErrNotConnected", err)
	}
}

func TestRetrieveTracksLease(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["openai/api_key"] = "sk-sanctum-test"
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	value, err := client.Retrieve(ctx, "openai/api_key", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if value != "sk-sanctum-test" {
		t.Errorf("value = %q", value)
	}

	leases := client.Leases()
	if len(leases) != 1 || leases[0] != "lease-1" {
		t.Errorf("Leases = %v, want [lease-1]", leases)
	}
}

func TestRetrieveLossyUTF8(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["binary/blob"] = "ok\xff\xfe"
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	value, err := client.Retrieve(ctx, "binary/blob", 0)
	if err != nil {
		t.Fatalf("Retrieve of invalid UTF-8: %v", err)
	}
	if value != "ok�" {
		t.Errorf("value = %q, want replacement-decoded string", value)
	}
}

func TestRetrieveRawIncludesLeaseMetadata(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["db/password"] = "p"
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	result, err := client.RetrieveRaw(ctx, "db/password", 300)
	if err != nil {
		t.Fatalf("RetrieveRaw: %v", err)
	}
	if result["lease_id"] != "lease-1" {
		t.Errorf("lease_id = %v", result["lease_id"])
	}
	if result["ttl"] != float64(300) {
		t.Errorf("ttl = %v, want 300", result["ttl"])
	}
	if len(client.Leases()) != 1 {
		t.Errorf("Leases = %v", client.Leases())
	}
}

func TestRetrieveNotFound(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	_, err := client.Retrieve(ctx, "missing/path", 0)
	if vaulterror.KindOf(err) != vaulterror.KindCredentialNotFound {
		t.Errorf("got %v, want credential-not-found kind", err)
	}
	if len(client.Leases()) != 0 {
		t.Errorf("failed retrieve tracked a lease: %v", client.Leases())
	}
}

func TestErrorFieldsPreserved(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.releaseErrors = map[string]any{
		"lease-x": map[string]any{
			"code":       "ACCESS_DENIED",
			"message":    "m",
			"detail":     "d",
			"suggestion": "s",
		},
	}
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	err := client.ReleaseLease(ctx, "lease-x")
	var vaultError *vaulterror.Error
	if !errors.As(err, &vaultError) {
		t.Fatalf("got %v, want *vaulterror.Error", err)
	}
	if vaultError.Kind != vaulterror.KindAccessDenied || vaultError.Detail != "d" || vaultError.Suggestion != "s" {
		t.Errorf("structured fields lost: %+v", vaultError)
	}
}

func TestListDefaultsToEmpty(t *testing.T) {
	client, daemon := newTestClient(t)
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	credentials, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(credentials) != 0 {
		t.Errorf("List = %v, want empty", credentials)
	}

	daemon.mu.Lock()
	daemon.listPayload = []any{
		map[string]any{"path": "openai/api_key", "description": "OpenAI key"},
	}
	daemon.mu.Unlock()

	credentials, err = client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(credentials) != 1 || credentials[0]["path"] != "openai/api_key" {
		t.Errorf("List = %v", credentials)
	}
}

func TestUseProducesNoLease(t *testing.T) {
	client, daemon := newTestClient(t)
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	result, err := client.Use(ctx, "openai/api_key", "http_header", map[string]any{"header": "Authorization"})
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if result["applied"] != true {
		t.Errorf("result = %v", result)
	}
	if len(client.Leases()) != 0 {
		t.Errorf("Use tracked a lease: %v", client.Leases())
	}

	daemon.mu.Lock()
	call := daemon.useCalls[0]
	daemon.mu.Unlock()
	if call["operation"] != "http_header" {
		t.Errorf("operation = %v", call["operation"])
	}
	if params, ok := call["params"].(map[string]any); !ok || params["header"] != "Authorization" {
		t.Errorf("params = %v", call["params"])
	}
}

func TestReleaseLease(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["a/b"] = "v"
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if _, err := client.Retrieve(ctx, "a/b", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if err := client.ReleaseLease(ctx, "lease-1"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	if len(client.Leases()) != 0 {
		t.Errorf("Leases = %v after release", client.Leases())
	}

	// Releasing an id the client never tracked issues the RPC but is
	// not a tracking error.
	if err := client.ReleaseLease(ctx, "lease-unknown"); err != nil {
		t.Fatalf("ReleaseLease of untracked id: %v", err)
	}
}

func TestCloseDrainsAllLeasesDespiteFailure(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["a/b"] = "1"
	daemon.credentials["c/d"] = "2"
	daemon.releaseErrors = map[string]any{"lease-1": "temporarily unavailable"}
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := client.Retrieve(ctx, "a/b", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := client.Retrieve(ctx, "c/d", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The first release failed, but the second was still attempted.
	if got := daemon.releasedLeases(); !reflect.DeepEqual(got, []string{"lease-2"}) {
		t.Errorf("released = %v, want [lease-2]", got)
	}
	if client.State() != StateDisconnected {
		t.Errorf("state = %v after Close", client.State())
	}
	if client.SessionID() != "" {
		t.Errorf("SessionID = %q after Close", client.SessionID())
	}

	// Idempotent: a second Close is a no-op.
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRequestIDsSequentialFromOne(t *testing.T) {
	client, daemon := newTestClient(t)
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := client.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	client.Close()

	// authenticate, challenge_response, list.
	if got := daemon.observedRequestIDs(); !reflect.DeepEqual(got, []uint64{1, 2, 3}) {
		t.Errorf("request ids = %v, want [1 2 3]", got)
	}
}

func TestReconnectRestartsSequence(t *testing.T) {
	client, daemon := newTestClient(t)
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	firstSession := client.SessionID()

	// Connect while connected closes the old connection first.
	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer client.Close()

	if client.SessionID() == firstSession {
		t.Errorf("reconnect kept session %q", firstSession)
	}

	ids := daemon.observedRequestIDs()
	// Two handshakes of two calls each; the second restarts at 1.
	if !reflect.DeepEqual(ids, []uint64{1, 2, 1, 2}) {
		t.Errorf("request ids = %v, want [1 2 1 2]", ids)
	}
}

func TestLeaseJournalLifecycle(t *testing.T) {
	client, daemon := newTestClient(t)
	daemon.credentials["a/b"] = "v"
	ctx := context.Background()

	if err := client.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := client.Retrieve(ctx, "a/b", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	journaled, err := client.journal.Load()
	if err != nil {
		t.Fatalf("journal Load: %v", err)
	}
	if !reflect.DeepEqual(journaled, []string{"lease-1"}) {
		t.Errorf("journal = %v, want [lease-1]", journaled)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Clean shutdown leaves no journal behind.
	if _, err := os.Stat(client.journal.Path()); !os.IsNotExist(err) {
		t.Errorf("journal file remains after clean Close")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:  "disconnected",
		StateConnecting:    "connecting",
		StateAuthenticated: "authenticated",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
