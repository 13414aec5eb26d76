// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the Sanctum daemon's frame format: a 4-byte
// big-endian length prefix followed by a compact JSON object payload.
//
// Two decode surfaces are provided. The buffer variant (Decode) operates
// on in-memory bytes and returns any trailing unconsumed bytes, which
// supports concatenated multi-frame buffers and buffering transports.
// The streaming variants (WritePayload, ReadPayload) perform exact-length
// reads against an io.Reader and are what the client uses on a live
// socket.
//
// Frames larger than MaxMessageSize are rejected before the body is read
// so a misbehaving peer cannot force unbounded allocation.
package wire
