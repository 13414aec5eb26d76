// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds sensitive material — Ed25519 seeds, passphrases,
// decrypted key blobs — in memory the Go runtime never manages.
//
// Buffer allocates via mmap(MAP_ANONYMOUS) outside the Go heap, locks
// the pages into RAM with mlock so they cannot be swapped, and marks
// them MADV_DONTDUMP so they are excluded from core dumps. Close zeros
// the contents before unmapping. Because the garbage collector never
// sees the region, it cannot copy or relocate the secret; closing the
// buffer is the single point at which the material ceases to exist.
package secret

import (
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data locked against swapping, excluded from
// core dumps, and zeroed on close.
//
// A Buffer must not be copied after creation. Accessing the contents
// after Close panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a protected buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies source into a protected buffer and zeros the
// source in place, so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// NewFromHex decodes a hex string into a protected buffer. The
// intermediate decode happens directly into the mmap region, so no
// heap copy of the decoded bytes is ever made. The input string itself
// is immutable Go memory and is the caller's concern.
func NewFromHex(encoded string) (*Buffer, error) {
	decodedLength := hex.DecodedLen(len(encoded))
	if decodedLength == 0 {
		return nil, fmt.Errorf("secret: empty hex input")
	}

	buffer, err := New(decodedLength)
	if err != nil {
		return nil, err
	}
	if _, err := hex.Decode(buffer.data, []byte(encoded)); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("secret: invalid hex: %w", err)
	}
	return buffer, nil
}

// Bytes returns the secret data. The slice points directly into the
// mmap region — do not retain it beyond the Buffer's lifetime. Panics
// if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Close zeros the contents and releases the memory. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	var firstError error
	if err := unix.Munlock(b.data); err != nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.data = nil
	return firstError
}

// Zero overwrites a byte slice with zeros. Use on transient heap copies
// of secret material as soon as they are no longer needed.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
