// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ffutop/langji-ac/modbus"
)

// fakeDevice accepts one connection per exchange and answers it with serve.
func fakeDevice(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				serve(conn)
			}()
		}
	}()
	return l.Addr().String()
}

func TestClient_Send(t *testing.T) {
	request := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	response := []byte{0x01, 0x03, 0x02, 0x00, 0xFA, 0x38, 0x07}

	received := make(chan []byte, 1)
	addr := fakeDevice(t, func(conn net.Conn) {
		buf := make([]byte, len(request))
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		received <- buf
		conn.Write(response)
	})

	client := NewClient(addr)
	got, err := client.Send(context.Background(), request)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, response) {
		t.Errorf("Send() = % X, want % X", got, response)
	}
	if sent := <-received; !bytes.Equal(sent, request) {
		t.Errorf("device received % X, want % X", sent, request)
	}
}

func TestClient_ConnectionPerCall(t *testing.T) {
	accepted := make(chan struct{}, 4)
	addr := fakeDevice(t, func(conn net.Conn) {
		accepted <- struct{}{}
		buf := make([]byte, 8)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write([]byte{0x01, 0x03, 0x02, 0x00, 0xFA, 0x38, 0x07})
	})

	client := NewClient(addr)
	request := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	for i := 0; i < 3; i++ {
		if _, err := client.Send(context.Background(), request); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}
	if len(accepted) != 3 {
		t.Errorf("device accepted %d connections, want 3", len(accepted))
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	client := NewClient(addr)
	_, err = client.Send(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A})

	var connErr *modbus.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Send() error = %v, want ConnectionError", err)
	}
	if connErr.Address != addr {
		t.Errorf("Address = %q, want %q", connErr.Address, addr)
	}
	if connErr.Message == "" {
		t.Error("Message is empty")
	}
}

func TestClient_SilentDevice(t *testing.T) {
	addr := fakeDevice(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	client := NewClient(addr)
	client.Timeout = 100 * time.Millisecond

	got, err := client.Send(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A})
	if err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Send() = % X, want empty", got)
	}
}

func TestClient_DeviceHangsUp(t *testing.T) {
	addr := fakeDevice(t, func(conn net.Conn) {
		buf := make([]byte, 8)
		io.ReadFull(conn, buf)
	})

	client := NewClient(addr)
	got, err := client.Send(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A})
	if err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Send() = % X, want empty", got)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	addr := fakeDevice(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	client := NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Send(ctx, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() took %v, context deadline was ignored", elapsed)
	}
}
