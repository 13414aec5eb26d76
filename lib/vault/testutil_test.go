// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jwgale/sanctum-go/lib/wire"
)

// fakeDaemon is a minimal in-process vault daemon speaking the real
// wire protocol over a Unix or TCP socket. It implements the handshake
// with genuine Ed25519 verification and scriptable credential
// operations.
type fakeDaemon struct {
	t        *testing.T
	listener net.Listener

	mu           sync.Mutex
	publicKey    ed25519.PublicKey
	challenges   map[string][]byte // session id -> issued challenge
	leaseCounter int

	// Scriptable behavior.
	credentials   map[string]string // path -> plaintext value
	listPayload   []any
	usePayload    map[string]any
	releaseErrors map[string]any // lease id -> error payload to return

	// Observed traffic.
	requestIDs []uint64
	released   []string
	useCalls   []map[string]any
}

// startFakeDaemon listens on a Unix socket under dir and serves
// connections until the test ends.
func startFakeDaemon(t *testing.T, publicKey ed25519.PublicKey) *fakeDaemon {
	t.Helper()

	listener, err := net.Listen("unix", filepath.Join(t.TempDir(), "vault.sock"))
	if err != nil {
		t.Fatalf("listening on unix socket: %v", err)
	}
	return serveFakeDaemon(t, listener, publicKey)
}

// startFakeDaemonTCP is startFakeDaemon on a loopback TCP port.
func startFakeDaemonTCP(t *testing.T, publicKey ed25519.PublicKey) *fakeDaemon {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on tcp: %v", err)
	}
	return serveFakeDaemon(t, listener, publicKey)
}

func serveFakeDaemon(t *testing.T, listener net.Listener, publicKey ed25519.PublicKey) *fakeDaemon {
	daemon := &fakeDaemon{
		t:           t,
		listener:    listener,
		publicKey:   publicKey,
		challenges:  map[string][]byte{},
		credentials: map[string]string{},
		usePayload:  map[string]any{"applied": true},
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go daemon.serveConn(conn)
		}
	}()
	return daemon
}

func (d *fakeDaemon) socketPath() string {
	return d.listener.Addr().String()
}

func (d *fakeDaemon) tcpHostPort() (string, int) {
	address := d.listener.Addr().(*net.TCPAddr)
	return address.IP.String(), address.Port
}

func (d *fakeDaemon) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		request, err := wire.ReadPayload(conn)
		if err != nil {
			return
		}

		id := request["id"]
		d.mu.Lock()
		if numeric, ok := id.(float64); ok {
			d.requestIDs = append(d.requestIDs, uint64(numeric))
		}
		d.mu.Unlock()

		method, _ := request["method"].(string)
		params, _ := request["params"].(map[string]any)

		result, errorPayload := d.dispatch(method, params)
		response := map[string]any{"id": id}
		if errorPayload != nil {
			response["error"] = errorPayload
		} else {
			response["result"] = result
		}
		if err := wire.WritePayload(conn, response); err != nil {
			return
		}
	}
}

func (d *fakeDaemon) dispatch(method string, params map[string]any) (map[string]any, any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch method {
	case "authenticate":
		sessionID := fmt.Sprintf("session-%d", len(d.challenges)+1)
		challenge := make([]byte, 32)
		rand.Read(challenge)
		d.challenges[sessionID] = challenge
		return map[string]any{
			"session_id": sessionID,
			"challenge":  hex.EncodeToString(challenge),
		}, nil

	case "challenge_response":
		sessionID, _ := params["session_id"].(string)
		signatureHex, _ := params["signature"].(string)
		signature, err := hex.DecodeString(signatureHex)
		challenge, known := d.challenges[sessionID]
		ok := known && err == nil && ed25519.Verify(d.publicKey, challenge, signature)
		return map[string]any{"authenticated": ok}, nil

	case "retrieve":
		path, _ := params["path"].(string)
		value, found := d.credentials[path]
		if !found {
			return nil, map[string]any{
				"code":    "CREDENTIAL_NOT_FOUND",
				"message": "no credential at " + path,
			}
		}
		d.leaseCounter++
		result := map[string]any{
			"lease_id": fmt.Sprintf("lease-%d", d.leaseCounter),
			"value":    hex.EncodeToString([]byte(value)),
		}
		if ttl, present := params["ttl"]; present {
			result["ttl"] = ttl
		}
		return result, nil

	case "list":
		if d.listPayload == nil {
			return map[string]any{}, nil
		}
		return map[string]any{"credentials": d.listPayload}, nil

	case "use":
		d.useCalls = append(d.useCalls, params)
		return d.usePayload, nil

	case "release_lease":
		leaseID, _ := params["lease_id"].(string)
		if payload, present := d.releaseErrors[leaseID]; present {
			return nil, payload
		}
		d.released = append(d.released, leaseID)
		return map[string]any{"released": true}, nil
	}

	return nil, map[string]any{"code": "INTERNAL_ERROR", "message": "unknown method " + method}
}

func (d *fakeDaemon) releasedLeases() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.released...)
}

func (d *fakeDaemon) observedRequestIDs() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.requestIDs...)
}

// newTestClient provisions an agent key on disk, starts a Unix-socket
// fake daemon that trusts it, and returns an unconnected client
// pointed at both.
func newTestClient(t *testing.T) (*Client, *fakeDaemon) {
	t.Helper()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating agent key: %v", err)
	}
	seed := privateKey.Seed()

	keyDir := t.TempDir()
	keyPath := filepath.Join(keyDir, "test-agent.key")
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(seed)), 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	daemon := startFakeDaemon(t, publicKey)
	client := New("test-agent", Options{
		SocketPath: daemon.socketPath(),
		KeyDir:     keyDir,
		StateDir:   t.TempDir(),
	})
	return client, daemon
}
