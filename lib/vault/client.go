// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jwgale/sanctum-go/lib/leasestate"
	"github.com/jwgale/sanctum-go/lib/secret"
)

// DefaultSocketPath is the conventional Unix socket of the vault
// daemon. The leading ~ is expanded at connect time.
const DefaultSocketPath = "~/.sanctum/vault.sock"

// DefaultStateDir is the conventional directory for the lease journal.
const DefaultStateDir = "~/.sanctum/state"

// ErrNotConnected is returned when an operation requires an
// authenticated connection and the client does not have one.
var ErrNotConnected = errors.New("vault: not connected")

// State is the client's connection state.
type State int

const (
	// StateDisconnected means no transport is open. The initial state,
	// and the terminal state after Close.
	StateDisconnected State = iota

	// StateConnecting means the transport is open but the handshake
	// has not completed. Credential operations are rejected.
	StateConnecting

	// StateAuthenticated means the handshake succeeded and the client
	// holds a valid session identifier.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Options configures a Client. The zero value uses the conventional
// defaults (Unix socket, default key and state directories).
type Options struct {
	// SocketPath overrides the Unix socket path. Ignored when Host and
	// Port are both set.
	SocketPath string

	// Host and Port select a TCP connection when both are set.
	Host string
	Port int

	// KeyDir overrides the signing-key directory.
	KeyDir string

	// KeyPath reads the signing key from this exact file, bypassing
	// the key directory.
	KeyPath string

	// Passphrase unlocks an encrypted key blob (<agent>.key.enc). The
	// client does not close it; ownership stays with the caller.
	Passphrase *secret.Buffer

	// StateDir overrides the lease journal directory.
	StateDir string

	// DisableLeaseJournal turns off the on-disk lease journal. Leases
	// are then tracked in memory only and cannot be recovered after a
	// crash.
	DisableLeaseJournal bool

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Target overrides the connection target for a single Connect call. A
// non-empty SocketPath selects Unix; Host and Port together select
// TCP. Setting both is invalid.
type Target struct {
	SocketPath string
	Host       string
	Port       int
}

// Client is a connection to the Sanctum vault daemon. Not safe for
// concurrent use; the wire protocol is one request in flight at a
// time, so callers must serialize.
type Client struct {
	agentName string
	options   Options
	logger    *slog.Logger

	state     State
	conn      net.Conn
	sessionID string
	requestID uint64
	leases    []string
	journal   *leasestate.Journal
}

// New creates a Client for the named agent. No connection is made
// until Connect.
func New(agentName string, options Options) *Client {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		agentName: agentName,
		options:   options,
		logger:    logger,
	}
	if !options.DisableLeaseJournal {
		stateDir := options.StateDir
		if stateDir == "" {
			stateDir = DefaultStateDir
		}
		client.journal = leasestate.New(expandHome(stateDir), agentName)
	}
	return client
}

// State returns the client's current connection state.
func (c *Client) State() State {
	return c.state
}

// SessionID returns the session identifier from the handshake, or ""
// when not authenticated.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Leases returns a copy of the lease ids currently tracked by this
// client.
func (c *Client) Leases() []string {
	return append([]string(nil), c.leases...)
}

// Connect opens the transport and runs the authentication handshake.
// target, when non-nil, overrides the constructor options for this
// connection. If the client is already connected, the existing
// connection is closed first (draining its leases) before dialing
// again. On handshake failure the transport is closed before the
// error is returned; the client never appears authenticated after a
// failed Connect.
func (c *Client) Connect(ctx context.Context, target *Target) error {
	if c.state != StateDisconnected {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing previous connection: %w", err)
		}
	}

	network, address := c.resolveTarget(target)
	c.state = StateConnecting
	c.requestID = 0

	conn, err := (&net.Dialer{}).DialContext(ctx, network, address)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	c.conn = conn
	c.logger.Debug("connected to vault daemon", "network", network, "address", address)

	if err := c.authenticate(ctx); err != nil {
		c.conn.Close()
		c.conn = nil
		c.sessionID = ""
		c.state = StateDisconnected
		return err
	}

	c.state = StateAuthenticated
	c.logger.Debug("authenticated", "agent", c.agentName, "session_id", c.sessionID)
	return nil
}

// resolveTarget decides the dial network and address. An explicit
// Target wins over constructor options; host+port selects TCP,
// otherwise the Unix socket path (defaulting to DefaultSocketPath).
func (c *Client) resolveTarget(target *Target) (network, address string) {
	socketPath := c.options.SocketPath
	host := c.options.Host
	port := c.options.Port

	if target != nil {
		if target.SocketPath != "" {
			socketPath = target.SocketPath
			host = ""
			port = 0
		} else if target.Host != "" {
			host = target.Host
			port = target.Port
			socketPath = ""
		}
	}

	if host != "" && port != 0 {
		return "tcp", net.JoinHostPort(host, strconv.Itoa(port))
	}
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return "unix", expandHome(socketPath)
}

// Close releases every tracked lease best-effort, closes the
// transport, and clears the session identifier. A failure to release
// one lease never prevents releasing the others or closing the
// transport; per-lease failures are logged at debug level and the
// failed ids stay in the journal for orphan recovery. Close is
// idempotent — subsequent calls are no-ops.
func (c *Client) Close() error {
	if c.state == StateDisconnected && c.conn == nil {
		return nil
	}

	for _, leaseID := range append([]string(nil), c.leases...) {
		if err := c.ReleaseLease(context.Background(), leaseID); err != nil {
			c.logger.Debug("releasing lease on close failed", "lease_id", leaseID, "error", err)
		}
	}
	c.leases = nil

	var closeError error
	if c.conn != nil {
		closeError = c.conn.Close()
		c.conn = nil
	}
	c.sessionID = ""
	c.state = StateDisconnected
	return closeError
}

// trackLease records a lease id in the in-memory set (exactly once)
// and the on-disk journal.
func (c *Client) trackLease(leaseID string) {
	for _, existing := range c.leases {
		if existing == leaseID {
			return
		}
	}
	c.leases = append(c.leases, leaseID)

	if c.journal != nil {
		if err := c.journal.Add(leaseID); err != nil {
			c.logger.Debug("journaling lease failed", "lease_id", leaseID, "error", err)
		}
	}
}

// untrackLease removes a lease id from the in-memory set and the
// journal. Absent ids are a no-op.
func (c *Client) untrackLease(leaseID string) {
	remaining := c.leases[:0]
	for _, existing := range c.leases {
		if existing != leaseID {
			remaining = append(remaining, existing)
		}
	}
	c.leases = remaining

	if c.journal != nil {
		if err := c.journal.Remove(leaseID); err != nil {
			c.logger.Debug("removing lease from journal failed", "lease_id", leaseID, "error", err)
		}
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
