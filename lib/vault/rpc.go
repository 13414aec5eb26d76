// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwgale/sanctum-go/lib/vaulterror"
	"github.com/jwgale/sanctum-go/lib/wire"
)

// nextID assigns the next request id. Ids are monotonically increasing
// from 1 for the lifetime of one connection; Connect resets the
// sequence.
func (c *Client) nextID() uint64 {
	c.requestID++
	return c.requestID
}

// call performs one RPC round trip: write a single request frame, read
// a single response frame, map any error payload through the taxonomy,
// and return the result (an empty map when absent).
//
// The core contract has no timeout layer; a context deadline, when
// present, is imposed at the socket level for the duration of the
// round trip. Responses are correlated by strict receive-after-send
// ordering, so call must never be invoked concurrently.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	request := map[string]any{
		"id":     c.nextID(),
		"method": method,
		"params": params,
	}
	c.logger.Debug("rpc call", "method", method, "id", request["id"])

	if err := wire.WritePayload(c.conn, request); err != nil {
		return nil, err
	}
	response, err := wire.ReadPayload(c.conn)
	if err != nil {
		return nil, err
	}

	if errorValue, present := response["error"]; present && errorValue != nil {
		// Re-encode the decoded error field so the taxonomy parser can
		// distinguish the legacy string shape from the structured one.
		raw, err := json.Marshal(errorValue)
		if err != nil {
			return nil, vaulterror.New("unparseable error payload")
		}
		return nil, vaulterror.FromPayload(raw)
	}

	result, _ := response["result"].(map[string]any)
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
