// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtuovertcp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
)

func TestServer_LifeCycle(t *testing.T) {
	// 1. Setup Server
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := NewServer("")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mock Handler
	handler := func(ctx context.Context, request []byte) []byte {
		adu, err := rtupacket.Decode(request)
		if err != nil {
			t.Errorf("Handler got undecodable frame % X: %v", request, err)
			return nil
		}
		if adu.SlaveID != 1 {
			t.Errorf("Handler expected slaveID 1, got %d", adu.SlaveID)
		}
		switch adu.Pdu.FunctionCode {
		case 0x03:
			resp, _ := rtupacket.BuildRequest(1, 0x03, []byte{0x02, 0xAA, 0xBB})
			return resp
		case 0x10:
			resp, _ := rtupacket.BuildRequest(1, 0x10, adu.Pdu.Data[:4])
			return resp
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Serve(ctx, l, handler); err != nil {
			t.Logf("Server stopped: %v", err)
		}
	}()

	// 2. Client Connection
	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// 3. Read Holding Registers, then a write-multiple frame on the same stream.
	reqBytes, _ := rtupacket.BuildRequest(1, 0x03, []byte{0x00, 0x00, 0x00, 0x01})
	if _, err := conn.Write(reqBytes); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	respBytes, err := rtupacket.ReadResponse(1, 0x03, conn, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	respADU, err := rtupacket.Decode(respBytes)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if respADU.Pdu.Data[1] != 0xAA {
		t.Errorf("Unexpected data: %X", respADU.Pdu.Data)
	}

	writeReq, _ := rtupacket.BuildRequest(1, 0x10, []byte{0x00, 0x08, 0x00, 0x02, 0x04, 0x01, 0x2C, 0x00, 0xF0})
	if _, err := conn.Write(writeReq); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	respBytes, err = rtupacket.ReadResponse(1, 0x10, conn, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	want, _ := rtupacket.BuildRequest(1, 0x10, []byte{0x00, 0x08, 0x00, 0x02})
	if !bytes.Equal(respBytes, want) {
		t.Errorf("write echo = % X, want % X", respBytes, want)
	}

	// 4. Cleanup
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Serve did not return after cancel")
	}
}
