// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the SDK's standard CBOR encoding configuration.
//
// The wire protocol to the vault daemon is length-prefixed JSON and is
// handled by lib/wire; CBOR is used only for local on-disk state (the
// lease journal). The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2) so the same logical state always produces identical bytes,
// which keeps journal rewrites idempotent.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// String-keyed maps only; any-typed targets decode to
		// map[string]any for compatibility with encoding/json code.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored for
// forward compatibility with newer journal versions.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
