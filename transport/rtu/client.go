// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/langji-ac/internal/config"
	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
)

// Client sends RTU frames over a directly attached RS485 line, for
// controllers reached without the serial-to-Ethernet bridge.
type Client struct {
	serialPort
}

// NewClient allocates a serial Client. The port is opened on first use.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}
	client.Config = serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
		RS485: serial.RS485Config{
			Enabled:            cfg.RS485,
			DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
			DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
			RtsHighDuringSend:  cfg.RtsHighDuringSend,
			RtsHighAfterSend:   cfg.RtsHighAfterSend,
			RxDuringTx:         cfg.RxDuringTx,
		},
	}
	if client.Config.Timeout <= 0 {
		client.Config.Timeout = serialTimeout
	}
	client.IdleTimeout = serialIdleTimeout
	return client
}

// Send writes the request and reads one response frame. A device that stays
// silent until the timeout yields an empty response.
func (mb *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	if len(request) < rtupacket.MinSize {
		return nil, fmt.Errorf("modbus: request of %d bytes is not a frame", len(request))
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.connect(ctx); err != nil {
		return nil, err
	}
	mb.touch()

	slog.Debug("send to controller", "port", mb.Address, "request", hex.EncodeToString(request))
	if _, err := mb.port.Write(request); err != nil {
		mb.close()
		return nil, fmt.Errorf("failed to write to serial port: %w", err)
	}

	bytesToRead := rtupacket.CalculateResponseLength(request)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mb.calculateDelay(len(request) + bytesToRead)):
	}

	data, err := rtupacket.ReadResponse(request[0], request[1], mb.port, time.Now().Add(mb.Config.Timeout))
	if err != nil {
		if errors.Is(err, rtupacket.ErrRequestTimedOut) || errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		// The line may hold half a frame; start clean next time.
		mb.close()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("recv from controller", "port", mb.Address, "response", hex.EncodeToString(data))
	return data, nil
}

// calculateDelay returns the time needed on the wire for chars characters
// plus the 3.5 character inter-frame gap.
func (mb *Client) calculateDelay(chars int) time.Duration {
	var characterDelay, frameDelay int

	if mb.BaudRate <= 0 || mb.BaudRate > 19200 {
		characterDelay = 750
		frameDelay = 1750
	} else {
		characterDelay = 15000000 / mb.BaudRate
		frameDelay = 35000000 / mb.BaudRate
	}
	return time.Duration(characterDelay*chars+frameDelay) * time.Microsecond
}
