// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring resolves and provisions the Ed25519 signing keys that
// identify an agent to the Sanctum daemon.
//
// An agent's key lives under the key directory (~/.sanctum/keys by
// default) as either a plaintext hex seed file <agent>.key or a
// passphrase-encrypted blob <agent>.key.enc. Resolution order: an
// explicit key path always wins; otherwise the encrypted blob is used
// when it exists and a passphrase was supplied; otherwise the plaintext
// file. Seeds are returned in secret.Buffer memory and must be closed
// by the caller as soon as the handshake completes.
//
// Decryption and key-length failures surface as AUTH_FAILED vault
// errors rather than I/O errors: from the caller's perspective the
// symptom is "cannot authenticate".
package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jwgale/sanctum-go/lib/secret"
	"github.com/jwgale/sanctum-go/lib/vaulterror"
)

// DefaultKeyDir is the conventional key directory. The leading ~ is
// expanded against the user's home directory at resolution time.
const DefaultKeyDir = "~/.sanctum/keys"

// Encrypted key blob layout: salt[16] || nonce[24] || ciphertext, hex
// encoded. The symmetric key is a PBKDF2-HMAC-SHA256 stretch of the
// passphrase. These parameters are a wire contract with the Sanctum
// provisioning tools — do not change them.
const (
	saltSize         = 16
	nonceSize        = 24
	pbkdf2Iterations = 100000
	symmetricKeySize = 32
)

// Options configures signing-key resolution.
type Options struct {
	// KeyDir is the directory holding <agent>.key and <agent>.key.enc
	// files. Empty means DefaultKeyDir.
	KeyDir string

	// KeyPath, when set, bypasses the key directory entirely and reads
	// the seed from this exact file.
	KeyPath string

	// Passphrase unlocks the encrypted key blob. When nil, only the
	// plaintext key file is considered. The keyring does not close it;
	// ownership stays with the caller.
	Passphrase *secret.Buffer
}

// ResolveSigningSeed produces the agent's 32-byte Ed25519 seed. The
// returned buffer must be closed by the caller; it should live only as
// long as one handshake.
func ResolveSigningSeed(agentName string, options Options) (*secret.Buffer, error) {
	if options.KeyPath != "" {
		return loadSeedFile(expandHome(options.KeyPath))
	}

	keyDir := options.KeyDir
	if keyDir == "" {
		keyDir = DefaultKeyDir
	}
	keyDir = expandHome(keyDir)

	encryptedPath := filepath.Join(keyDir, agentName+".key.enc")
	if options.Passphrase != nil {
		if _, err := os.Stat(encryptedPath); err == nil {
			return loadEncryptedSeed(encryptedPath, options.Passphrase)
		}
	}

	return loadSeedFile(filepath.Join(keyDir, agentName+".key"))
}

// loadSeedFile reads a hex-encoded seed file. A seed of the wrong
// length is an authentication failure.
func loadSeedFile(path string) (*secret.Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	seed, err := secret.NewFromHex(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, vaulterror.AuthFailed("key file %s is not valid hex", path)
	}
	if seed.Len() != ed25519.SeedSize {
		seed.Close()
		return nil, vaulterror.AuthFailed("key file has %d bytes, expected %d", seed.Len(), ed25519.SeedSize)
	}
	return seed, nil
}

// loadEncryptedSeed decrypts a <agent>.key.enc blob with the given
// passphrase. Every malformation or decryption failure is an
// authentication failure.
func loadEncryptedSeed(path string, passphrase *secret.Buffer) (*secret.Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading encrypted key file: %w", err)
	}

	blob, err := secret.NewFromHex(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, vaulterror.AuthFailed("encrypted key file %s is not valid hex", path)
	}
	defer blob.Close()

	data := blob.Bytes()
	if len(data) <= saltSize+nonceSize+secretbox.Overhead {
		return nil, vaulterror.AuthFailed("encrypted key file %s is truncated", path)
	}

	salt := data[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])
	ciphertext := data[saltSize+nonceSize:]

	var key [symmetricKeySize]byte
	derived := pbkdf2.Key(passphrase.Bytes(), salt, pbkdf2Iterations, symmetricKeySize, sha256.New)
	copy(key[:], derived)
	secret.Zero(derived)
	defer secret.Zero(key[:])

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, vaulterror.AuthFailed("wrong passphrase or corrupted key blob")
	}
	if len(plaintext) != ed25519.SeedSize {
		secret.Zero(plaintext)
		return nil, vaulterror.AuthFailed("decrypted key has %d bytes, expected %d", len(plaintext), ed25519.SeedSize)
	}

	// NewFromBytes zeros the heap plaintext.
	return secret.NewFromBytes(plaintext)
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
