// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ffutop/langji-ac/modbus"
	"github.com/ffutop/langji-ac/modbus/rtu"
)

func request(t *testing.T, unitID, fc byte, data ...byte) []byte {
	t.Helper()
	f, err := rtu.BuildRequest(unitID, fc, data)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDevice_Process(t *testing.T) {
	m := NewModel()
	m.SetRegister(0x00, 235)
	m.SetRegister(0x01, 0xFFCE)
	m.SetCoil(0x02, true)
	m.SetAlarm(0x09, true)
	d := NewDevice(1, m)

	tests := []struct {
		name string
		req  modbus.ProtocolDataUnit
		want modbus.ProtocolDataUnit
	}{
		{
			name: "ReadCoils",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x00, 0x00, 0x00, 0x0A}},
			want: modbus.ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x02, 0x04, 0x00}},
		},
		{
			name: "ReadAlarms",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x02, Data: []byte{0x00, 0x08, 0x00, 0x08}},
			want: modbus.ProtocolDataUnit{FunctionCode: 0x02, Data: []byte{0x01, 0x02}},
		},
		{
			name: "ReadRegisters",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x02}},
			want: modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x04, 0x00, 0xEB, 0xFF, 0xCE}},
		},
		{
			name: "ZeroQuantity",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x00}},
			want: modbus.Exception(0x03, modbus.ExceptionCodeIllegalDataValue),
		},
		{
			name: "RangePastEnd",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0xFF, 0xFF, 0x00, 0x02}},
			want: modbus.Exception(0x03, modbus.ExceptionCodeIllegalDataAddress),
		},
		{
			name: "InputRegistersUnsupported",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x04, Data: []byte{0x00, 0x00, 0x00, 0x01}},
			want: modbus.Exception(0x04, modbus.ExceptionCodeIllegalFunction),
		},
		{
			name: "BadCoilValue",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x01, 0x12, 0x34}},
			want: modbus.Exception(0x05, modbus.ExceptionCodeIllegalDataValue),
		},
		{
			name: "WriteMultipleBadByteCount",
			req:  modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x00, 0x08, 0x00, 0x02, 0x02, 0x01, 0x2C}},
			want: modbus.Exception(0x10, modbus.ExceptionCodeIllegalDataValue),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Process(tt.req)
			if got.FunctionCode != tt.want.FunctionCode || !bytes.Equal(got.Data, tt.want.Data) {
				t.Errorf("Process() = %02X % X, want %02X % X", got.FunctionCode, got.Data, tt.want.FunctionCode, tt.want.Data)
			}
		})
	}
}

func TestDevice_Writes(t *testing.T) {
	m := NewModel()
	d := NewDevice(1, m)

	coil := modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x03, 0xFF, 0x00}}
	if got := d.Process(coil); !bytes.Equal(got.Data, coil.Data) {
		t.Errorf("coil echo = % X", got.Data)
	}
	if !m.Coil(0x03) {
		t.Error("coil 3 not set")
	}

	single := modbus.ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x00, 0x08, 0x01, 0x2C}}
	d.Process(single)
	if m.Register(0x08) != 300 {
		t.Errorf("register 8 = %d, want 300", m.Register(0x08))
	}

	multi := modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x00, 0x09, 0x00, 0x02, 0x04, 0x00, 0xF0, 0xFF, 0x00}}
	got := d.Process(multi)
	if !bytes.Equal(got.Data, []byte{0x00, 0x09, 0x00, 0x02}) {
		t.Errorf("multiple write response = % X", got.Data)
	}
	if m.Register(0x09) != 240 || m.Register(0x0A) != 0xFF00 {
		t.Errorf("registers = %d, %#04x", m.Register(0x09), m.Register(0x0A))
	}
}

func TestDevice_HandleFrame(t *testing.T) {
	m := NewModel()
	m.SetRegister(0x00, 250)
	d := NewDevice(1, m)
	ctx := context.Background()

	resp := d.HandleFrame(ctx, request(t, 1, 0x03, 0x00, 0x00, 0x00, 0x01))
	frame, err := rtu.ValidateResponseFrom(1, resp)
	if err != nil {
		t.Fatalf("response invalid: %v", err)
	}
	if !bytes.Equal(frame[2:5], []byte{0x02, 0x00, 0xFA}) {
		t.Errorf("response = % X", frame)
	}

	if resp := d.HandleFrame(ctx, request(t, 2, 0x03, 0x00, 0x00, 0x00, 0x01)); resp != nil {
		t.Errorf("answered another unit: % X", resp)
	}

	bad := request(t, 1, 0x03, 0x00, 0x00, 0x00, 0x01)
	bad[len(bad)-1] ^= 0xFF
	if resp := d.HandleFrame(ctx, bad); resp != nil {
		t.Errorf("answered a frame with a bad crc: % X", resp)
	}

	if resp := d.HandleFrame(ctx, request(t, 0, 0x06, 0x00, 0x08, 0x00, 0x07)); resp != nil {
		t.Errorf("answered a broadcast: % X", resp)
	}
	if m.Register(0x08) != 7 {
		t.Errorf("broadcast write not applied, register 8 = %d", m.Register(0x08))
	}
}

func TestDevice_Faults(t *testing.T) {
	ctx := context.Background()
	read := func(t *testing.T) []byte { return request(t, 1, 0x03, 0x00, 0x00, 0x00, 0x01) }

	t.Run("Exception", func(t *testing.T) {
		d := NewDevice(1, NewModel())
		d.SetFaults(Faults{Exception: modbus.ExceptionCodeSlaveDeviceBusy})
		_, err := rtu.ValidateResponse(d.HandleFrame(ctx, read(t)))
		var exc *modbus.ExceptionError
		if !errors.As(err, &exc) || exc.Code != modbus.ExceptionCodeSlaveDeviceBusy {
			t.Errorf("error = %v, want slave device busy", err)
		}
	})

	t.Run("Silent", func(t *testing.T) {
		d := NewDevice(1, NewModel())
		d.SetFaults(Faults{Silent: true})
		if resp := d.HandleFrame(ctx, read(t)); resp != nil {
			t.Errorf("silent device answered % X", resp)
		}
	})

	t.Run("CorruptCRC", func(t *testing.T) {
		d := NewDevice(1, NewModel())
		d.SetFaults(Faults{CorruptCRC: true})
		_, err := rtu.ValidateResponse(d.HandleFrame(ctx, read(t)))
		var crcErr *modbus.CRCMismatchError
		if !errors.As(err, &crcErr) {
			t.Errorf("error = %v, want CRCMismatchError", err)
		}
	})

	t.Run("GarbleEcho", func(t *testing.T) {
		d := NewDevice(1, NewModel())
		d.SetFaults(Faults{GarbleEcho: true})
		req := request(t, 1, 0x06, 0x00, 0x08, 0x01, 0x2C)
		resp, err := rtu.ValidateResponse(d.HandleFrame(ctx, req))
		if err != nil {
			t.Fatalf("garbled echo should still be a valid frame: %v", err)
		}
		if bytes.Equal(resp, req) {
			t.Error("echo was not garbled")
		}
	})
}

func TestSeedDefaults(t *testing.T) {
	m := NewModel()
	SeedDefaults(m)
	if m.Register(0x00) != 235 || m.Register(0x23) != 0xFF00 {
		t.Errorf("seeded registers = %d, %#04x", m.Register(0x00), m.Register(0x23))
	}
	if !m.Coil(0x00) {
		t.Error("compressor coil not seeded")
	}
}
