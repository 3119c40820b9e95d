// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/ffutop/langji-ac/transport"
)

// Client hands frames to an in-process device instead of a network peer.
type Client struct {
	handler transport.FrameHandler
}

// NewClient creates a Client served by handler.
func NewClient(handler transport.FrameHandler) *Client {
	return &Client{handler: handler}
}

// Send passes the request to the handler. A silent handler yields an empty
// response, as a silent device would.
func (c *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := make([]byte, len(request))
	copy(frame, request)

	slog.Debug("send to local controller", "request", hex.EncodeToString(frame))
	response := c.handler(ctx, frame)
	slog.Debug("recv from local controller", "response", hex.EncodeToString(response))
	if response == nil {
		return []byte{}, nil
	}
	return response, nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
