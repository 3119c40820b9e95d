// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ffutop/langji-ac/modbus"
	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
)

const (
	tcpTimeout = 5 * time.Second
)

// Client sends RTU frames over a raw TCP stream. Every Send opens a fresh
// connection and closes it before returning.
type Client struct {
	Address string
	Timeout time.Duration

	dialer net.Dialer
}

// NewClient allocates a Client for host:port with the default timeout.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send performs one round trip: dial, write the whole frame, one read of
// at most 256 bytes, close. A read that times out or hits EOF before any
// byte arrives yields an empty response.
func (mb *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	timeout := mb.Timeout
	if timeout <= 0 {
		timeout = tcpTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := mb.dialer.DialContext(dialCtx, "tcp", mb.Address)
	if err != nil {
		return nil, modbus.NewConnectionError(mb.Address, err)
	}
	defer conn.Close()

	// Unblock pending I/O when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err = conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	slog.Debug("send to controller", "addr", mb.Address, "request", hex.EncodeToString(request))
	if _, err = conn.Write(request); err != nil {
		return nil, fmt.Errorf("failed to write to connection: %w", err)
	}

	buf := make([]byte, rtupacket.MaxSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return nil, context.DeadlineExceeded
		}
		if !isSilence(err) {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
	}
	slog.Debug("recv from controller", "addr", mb.Address, "response", hex.EncodeToString(buf[:n]))
	return buf[:n], nil
}

// Close is a no-op: connections never outlive a Send.
func (mb *Client) Close() error {
	return nil
}

func isSilence(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded)
}
