// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// headerLength is the fixed size of the frame header: a 4-byte
// big-endian unsigned payload length.
const headerLength = 4

// MaxMessageSize is the maximum allowed payload size. 4 MiB is generous
// for credential metadata; anything larger indicates a malformed or
// hostile peer.
const MaxMessageSize = 4 * 1024 * 1024

// Sentinel errors for frame decoding. Callers distinguish these with
// errors.Is; all of them are fatal to the current operation.
var (
	// ErrIncompleteHeader indicates fewer than 4 bytes were available
	// for the length prefix.
	ErrIncompleteHeader = errors.New("wire: incomplete frame header")

	// ErrIncompleteBody indicates the buffer ends before the declared
	// payload length.
	ErrIncompleteBody = errors.New("wire: incomplete frame body")

	// ErrMessageTooLarge indicates the declared payload length exceeds
	// MaxMessageSize. The body is never read when this is returned.
	ErrMessageTooLarge = errors.New("wire: message exceeds maximum size")

	// ErrConnectionClosed indicates the stream ended before a complete
	// frame was read. End-of-stream mid-message is always an error,
	// never a valid terminator.
	ErrConnectionClosed = errors.New("wire: connection closed")
)

// Encode serializes payload as compact JSON and prefixes it with the
// 4-byte big-endian length.
func Encode(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding payload: %w", err)
	}
	if len(body) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	frame := make([]byte, headerLength+len(body))
	binary.BigEndian.PutUint32(frame[:headerLength], uint32(len(body)))
	copy(frame[headerLength:], body)
	return frame, nil
}

// Decode parses one frame from the front of data, returning the decoded
// payload and any trailing bytes left unconsumed. Fails with
// ErrIncompleteHeader, ErrMessageTooLarge, or ErrIncompleteBody without
// consuming anything. Performs no I/O.
func Decode(data []byte) (map[string]any, []byte, error) {
	if len(data) < headerLength {
		return nil, nil, ErrIncompleteHeader
	}
	length := binary.BigEndian.Uint32(data[:headerLength])
	if length > MaxMessageSize {
		return nil, nil, ErrMessageTooLarge
	}
	end := headerLength + int(length)
	if len(data) < end {
		return nil, nil, ErrIncompleteBody
	}
	var payload map[string]any
	if err := json.Unmarshal(data[headerLength:end], &payload); err != nil {
		return nil, nil, fmt.Errorf("wire: decoding payload: %w", err)
	}
	return payload, data[end:], nil
}

// WritePayload encodes payload and writes the complete frame to w.
func WritePayload(w io.Writer, payload any) error {
	frame, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("wire: writing frame: %w", err)
	}
	return nil
}

// ReadPayload reads exactly one frame from r and decodes its payload.
// The length prefix is validated against MaxMessageSize before the body
// is read. A stream that ends mid-frame yields ErrConnectionClosed.
func ReadPayload(r io.Reader) (map[string]any, error) {
	var header [headerLength]byte
	if err := readExact(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	body := make([]byte, length)
	if err := readExact(r, body); err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("wire: decoding payload: %w", err)
	}
	return payload, nil
}

// readExact fills buf completely or fails. Any end-of-stream condition,
// including a clean EOF at a frame boundary, maps to ErrConnectionClosed:
// the protocol is strict request/response, so the reader is only ever
// invoked when a full frame is owed.
func readExact(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrConnectionClosed
		}
		return fmt.Errorf("wire: reading frame: %w", err)
	}
	return nil
}
