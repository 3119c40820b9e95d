// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/ffutop/langji-ac/internal/config"
	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
	"github.com/ffutop/langji-ac/transport"
	"github.com/grid-x/serial"
)

// Server answers RTU frames arriving on a serial line, standing in for a
// controller on the RS485 bus.
type Server struct {
	Config config.SerialConfig
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the serial port and serves frames until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.FrameHandler) error {
	port, err := serial.Open(&serial.Config{
		Address:  s.Config.Device,
		BaudRate: s.Config.BaudRate,
		DataBits: s.Config.DataBits,
		StopBits: s.Config.StopBits,
		Parity:   s.Config.Parity,
		Timeout:  s.Config.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	defer port.Close()
	slog.Info("RTU server listening", "device", s.Config.Device)

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

// scanLoop reads one request at a time and writes the handler's answer
// before reading the next, as the bus is half duplex.
func (s *Server) scanLoop(ctx context.Context, port io.ReadWriter, handler transport.FrameHandler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Block on the first byte, then collect enough header to size the
		// frame. Read timeouts between frames are expected.
		n, err := port.Read(buf[:1])
		if err != nil || n == 0 {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			if err != nil {
				slog.Debug("Serial read error", "err", err)
			}
			continue
		}

		current := 1
		need := 7
		for current < need {
			n, err := port.Read(buf[current:need])
			if err != nil || n == 0 {
				break
			}
			current += n
		}
		if current < 2 {
			continue
		}

		expectedLen, err := rtupacket.CalculateRequestLength(buf[1], buf[:current])
		if err != nil || expectedLen > len(buf) {
			slog.Debug("Discarding unframed bytes", "bytes", hex.EncodeToString(buf[:current]), "err", err)
			continue
		}

		for current < expectedLen {
			n, err := port.Read(buf[current:expectedLen])
			if err != nil || n == 0 {
				break
			}
			current += n
		}
		if current != expectedLen {
			slog.Debug("Incomplete frame", "want", expectedLen, "got", current)
			continue
		}

		request := make([]byte, expectedLen)
		copy(request, buf[:expectedLen])

		response := handler(ctx, request)
		if response == nil {
			continue
		}
		if _, err := port.Write(response); err != nil {
			slog.Error("Failed to write response", "err", err)
		}
	}
}

// Close is a no-op; the port is closed when Start's context ends.
func (s *Server) Close() error {
	return nil
}
