// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
	"github.com/ffutop/langji-ac/transport"
)

// Server accepts TCP connections and treats each one as a stream of RTU
// request frames, the way the controller's serial-to-Ethernet bridge does.
type Server struct {
	Address string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new RTU over TCP Server.
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
	slog.Info("RTU over TCP server listening", "addr", listener.Addr())

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

// Addr returns the listening address once the server is serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
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
	slog.Debug("RTU over TCP client connected", "addr", conn.RemoteAddr())

	buf := make([]byte, rtupacket.MaxSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Unit id and function code come first; the function code decides
		// how much more header is needed to size the frame.
		if _, err := io.ReadFull(conn, buf[:2]); err != nil {
			if err != io.EOF {
				slog.Debug("Connection read error", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}
		functionCode := buf[1]

		// Every supported request is at least 8 bytes long, and the
		// write-multiple byte count sits at offset 6.
		current := 2
		need := 7
		if _, err := io.ReadFull(conn, buf[current:need]); err != nil {
			return
		}
		current = need

		expectedLen, err := rtupacket.CalculateRequestLength(functionCode, buf[:current])
		if err != nil || expectedLen > len(buf) {
			slog.Warn("Invalid RTU frame header", "func", functionCode, "err", err)
			// The stream cannot be resynchronised without a length.
			return
		}

		if _, err := io.ReadFull(conn, buf[current:expectedLen]); err != nil {
			return
		}

		request := make([]byte, expectedLen)
		copy(request, buf[:expectedLen])

		response := handler(ctx, request)
		if response == nil {
			continue
		}
		if _, err := conn.Write(response); err != nil {
			slog.Error("Failed to write response", "err", err)
			return
		}
	}
}
