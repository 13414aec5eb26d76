// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jwgale/sanctum-go/lib/secret"
)

// GenerateSeed creates a new Ed25519 seed in protected memory. The
// caller must close the returned buffer.
func GenerateSeed() (*secret.Buffer, error) {
	seed, err := secret.New(ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(seed.Bytes()); err != nil {
		seed.Close()
		return nil, fmt.Errorf("generating Ed25519 seed: %w", err)
	}
	return seed, nil
}

// PublicKeyHex derives the hex-encoded Ed25519 public key for a seed.
// This is what gets registered with the daemon's agent policy.
func PublicKeyHex(seed *secret.Buffer) string {
	privateKey := ed25519.NewKeyFromSeed(seed.Bytes())
	publicKey := privateKey.Public().(ed25519.PublicKey)
	secret.Zero(privateKey)
	return hex.EncodeToString(publicKey)
}

// SaveSeed writes the seed as a hex key file with owner-only
// permissions, creating the key directory if needed.
func SaveSeed(path string, seed *secret.Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	encoded := make([]byte, hex.EncodedLen(seed.Len()))
	hex.Encode(encoded, seed.Bytes())
	err := os.WriteFile(path, encoded, 0600)
	secret.Zero(encoded)
	if err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// SaveEncryptedSeed writes the seed as a passphrase-encrypted
// <agent>.key.enc blob in the format loadEncryptedSeed reads:
// hex(salt[16] || nonce[24] || secretbox ciphertext).
func SaveEncryptedSeed(path string, seed *secret.Buffer, passphrase *secret.Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	var key [symmetricKeySize]byte
	derived := pbkdf2.Key(passphrase.Bytes(), salt[:], pbkdf2Iterations, symmetricKeySize, sha256.New)
	copy(key[:], derived)
	secret.Zero(derived)
	defer secret.Zero(key[:])

	blob := make([]byte, 0, saltSize+nonceSize+seed.Len()+secretbox.Overhead)
	blob = append(blob, salt[:]...)
	blob = append(blob, nonce[:]...)
	blob = secretbox.Seal(blob, seed.Bytes(), &nonce, &key)

	encoded := make([]byte, hex.EncodedLen(len(blob)))
	hex.Encode(encoded, blob)
	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return fmt.Errorf("writing encrypted key file: %w", err)
	}
	return nil
}

// EscrowSeed writes an age-encrypted copy of the seed for operator
// escrow. Recipients are age public key strings (age1... format). The
// escrow file lets an operator recover an agent's identity key without
// the agent's passphrase, using the escrow private key instead.
func EscrowSeed(path string, seed *secret.Buffer, recipientKeys []string) error {
	if len(recipientKeys) == 0 {
		return fmt.Errorf("at least one escrow recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return fmt.Errorf("parsing escrow recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	// Escrow the hex form so recovery produces a file byte-identical
	// to the plaintext key file.
	encoded := make([]byte, hex.EncodedLen(seed.Len()))
	hex.Encode(encoded, seed.Bytes())
	defer secret.Zero(encoded)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(encoded); err != nil {
		return fmt.Errorf("writing seed to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, ciphertext.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing escrow file: %w", err)
	}
	return nil
}
