// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestClient_Send(t *testing.T) {
	var seen []byte
	client := NewClient(func(ctx context.Context, request []byte) []byte {
		seen = request
		request[0] = 0xEE
		return []byte{0x01, 0x02, 0x03, 0x04}
	})

	request := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	got, err := client.Send(context.Background(), request)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("Send() = % X", got)
	}
	if request[0] != 0x01 {
		t.Error("handler mutated the caller's request")
	}
	if seen == nil {
		t.Error("handler was not called")
	}
}

func TestClient_SilentHandler(t *testing.T) {
	client := NewClient(func(context.Context, []byte) []byte { return nil })
	got, err := client.Send(context.Background(), []byte{0x01, 0x03, 0x40, 0x21})
	if err != nil || len(got) != 0 {
		t.Errorf("Send() = % X, %v; want empty, nil", got, err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	client := NewClient(func(context.Context, []byte) []byte {
		t.Error("handler called with a cancelled context")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Send(ctx, []byte{0x01, 0x03, 0x40, 0x21}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}
