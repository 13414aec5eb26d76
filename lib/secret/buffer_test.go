// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"testing"
)

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("hunter2")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if !bytes.Equal(buffer.Bytes(), []byte("hunter2")) {
		t.Errorf("buffer contents = %q", buffer.Bytes())
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Errorf("source not zeroed: %q", source)
	}
}

func TestNewFromHex(t *testing.T) {
	buffer, err := NewFromHex("deadbeef")
	if err != nil {
		t.Fatalf("NewFromHex: %v", err)
	}
	defer buffer.Close()

	if !bytes.Equal(buffer.Bytes(), []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("decoded = %x", buffer.Bytes())
	}
	if buffer.Len() != 4 {
		t.Errorf("Len = %d, want 4", buffer.Len())
	}
}

func TestNewFromHexInvalid(t *testing.T) {
	if _, err := NewFromHex("not hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := NewFromHex(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestCloseIdempotent(t *testing.T) {
	buffer, err := NewFromBytes([]byte("secret"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}

	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBytesAfterClosePanics(t *testing.T) {
	buffer, err := NewFromBytes([]byte("secret"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	defer func() {
		if recovered := recover(); recovered == nil {
			t.Error("Bytes after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3}
	Zero(data)
	if !bytes.Equal(data, []byte{0, 0, 0}) {
		t.Errorf("Zero left %v", data)
	}
}
