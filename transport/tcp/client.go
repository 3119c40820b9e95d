// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/ffutop/langji-ac/modbus"
)

const (
	tcpTimeout = 5 * time.Second
)

// Client reaches a controller through a Modbus TCP gateway, one connection
// per Send.
type Client struct {
	Address string
	Timeout time.Duration

	transactionID uint32
	dialer        net.Dialer
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send converts the RTU request to MBAP, performs the round trip and
// returns the answer as an RTU frame. A gateway that closes the connection
// or stays silent until the deadline yields an empty response.
func (mb *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	tid := uint16(atomic.AddUint32(&mb.transactionID, 1))
	adu, err := fromRTU(tid, request)
	if err != nil {
		return nil, fmt.Errorf("invalid request frame: %w", err)
	}
	aduBytes, err := adu.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode ADU: %w", err)
	}

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

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err = conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	respBytes, err := mb.sendAndRead(conn, aduBytes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return nil, context.DeadlineExceeded
		}
		if errors.Is(err, errSilent) {
			return []byte{}, nil
		}
		return nil, err
	}

	respAdu, err := Decode(respBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response ADU: %w", err)
	}
	if err := adu.Verify(respAdu); err != nil {
		return nil, err
	}
	return respAdu.toRTU()
}

var errSilent = errors.New("modbus: gateway sent no response")

func (mb *Client) sendAndRead(conn net.Conn, aduRequest []byte) ([]byte, error) {
	slog.Debug("send to modbus tcp gateway", "addr", mb.Address, "request", hex.EncodeToString(aduRequest))
	if _, err := conn.Write(aduRequest); err != nil {
		return nil, fmt.Errorf("failed to write to connection: %w", err)
	}

	header := make([]byte, headerSize)
	if n, err := io.ReadFull(conn, header); err != nil {
		if n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded)) {
			return nil, errSilent
		}
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}

	length := int(binary.BigEndian.Uint16(header[4:6]))
	if length < 2 || headerSize-1+length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: invalid mbap length '%v'", length)
	}

	response := make([]byte, headerSize-1+length)
	copy(response, header)
	if _, err := io.ReadFull(conn, response[headerSize:]); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("recv from modbus tcp gateway", "addr", mb.Address, "response", hex.EncodeToString(response))
	return response, nil
}

// Close is a no-op: connections never outlive a Send.
func (mb *Client) Close() error {
	return nil
}
