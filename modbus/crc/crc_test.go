// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/sigurn/crc16"
)

func TestCRC(t *testing.T) {
	var crc CRC
	crc.Reset()
	crc.PushBytes([]byte{0x02, 0x07})

	if crc.Value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.Value())
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"Empty", nil, 0xFFFF},
		{"ReadOneRegister", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 0x0A84},
		{"ReadTenRegisters", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}, 0xCDC5},
		{"WriteCoilOn", []byte{0x01, 0x05, 0x00, 0x23, 0xFF, 0x00}, 0xF07D},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = %#04x, want %#04x", got, tt.want)
			}
		})
	}
}

func TestChecksum_Incremental(t *testing.T) {
	data := []byte{0x01, 0x10, 0x00, 0x23, 0x00, 0x01, 0x02, 0xFF, 0x00}
	var crc CRC
	crc.Reset().PushBytes(data[:4]).PushBytes(data[4:])
	if crc.Value() != Checksum(data) {
		t.Errorf("incremental %#04x != one-shot %#04x", crc.Value(), Checksum(data))
	}
}

func TestChecksum_MatchesReferenceTable(t *testing.T) {
	table := crc16.MakeTable(crc16.CRC16_MODBUS)
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, rnd.Intn(256))
		rnd.Read(data)
		if got, want := Checksum(data), crc16.Checksum(data, table); got != want {
			t.Fatalf("Checksum(% x) = %#04x, reference %#04x", data, got, want)
		}
	}
}

func TestAppend(t *testing.T) {
	got := Append([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01})
	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	if !bytes.Equal(got, want) {
		t.Errorf("Append() = % X, want % X", got, want)
	}
}
