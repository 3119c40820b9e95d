// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
	"github.com/ffutop/langji-ac/transport"
)

// Server plays a Modbus TCP gateway in front of an RTU frame handler.
type Server struct {
	Address string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new TCP Server.
func NewServer(address string) *Server {
	return &Server{
		Address: address,
	}
}

// Start listens on Address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.FrameHandler) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler transport.FrameHandler) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	slog.Info("Modbus TCP server listening", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		go s.handleConnection(ctx, conn, handler)
	}
}

// Close closes the server listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, handler transport.FrameHandler) {
	defer conn.Close()
	slog.Debug("Modbus TCP client connected", "addr", conn.RemoteAddr())

	header := make([]byte, headerSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				slog.Debug("Connection read error", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}
		length := int(binary.BigEndian.Uint16(header[4:6]))
		if length < 2 || headerSize-1+length > tcpMaxSize {
			slog.Warn("Invalid MBAP length", "length", length)
			return
		}
		raw := make([]byte, headerSize-1+length)
		copy(raw, header)
		if _, err := io.ReadFull(conn, raw[headerSize:]); err != nil {
			return
		}

		req, err := Decode(raw)
		if err != nil {
			slog.Warn("Failed to decode TCP request", "err", err)
			return
		}
		frame, err := req.toRTU()
		if err != nil {
			slog.Warn("Request does not fit an RTU frame", "err", err)
			continue
		}

		response := handler(ctx, frame)
		if response == nil {
			continue
		}
		// A bad answer from the bus is dropped, as a gateway would.
		r, err := rtupacket.Decode(response)
		if err != nil {
			slog.Warn("Dropping invalid RTU response", "err", err)
			continue
		}

		respAdu := &ApplicationDataUnit{
			TransactionID: req.TransactionID,
			ProtocolID:    req.ProtocolID,
			SlaveID:       r.SlaveID,
			Pdu:           r.Pdu,
		}
		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode TCP response", "err", err)
			continue
		}
		if _, err := conn.Write(respRaw); err != nil {
			slog.Error("Failed to write response to connection", "err", err)
			return
		}
	}
}
