// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator emulates a Langji controller for tests and for running
// the CLI without hardware.
package simulator

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/ffutop/langji-ac/controller"
	"github.com/ffutop/langji-ac/modbus"
	"github.com/ffutop/langji-ac/modbus/rtu"
)

// Faults makes the device misbehave in the ways a field unit does.
type Faults struct {
	// Exception, when set, answers every request with this code.
	Exception modbus.ExceptionCode
	// Silent drops every request.
	Silent bool
	// CorruptCRC flips the CRC of every response.
	CorruptCRC bool
	// GarbleEcho changes the last data byte of write responses.
	GarbleEcho bool
}

// Device answers RTU frames addressed to its unit id from a Model.
type Device struct {
	UnitID byte

	model *Model

	mu     sync.Mutex
	faults Faults
}

// NewDevice creates a device serving m.
func NewDevice(unitID byte, m *Model) *Device {
	return &Device{UnitID: unitID, model: m}
}

// Model returns the data model behind the device.
func (d *Device) Model() *Model {
	return d.model
}

// SetFaults replaces the active faults.
func (d *Device) SetFaults(f Faults) {
	d.mu.Lock()
	d.faults = f
	d.mu.Unlock()
}

func (d *Device) currentFaults() Faults {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faults
}

// HandleFrame serves one request frame. Frames with a bad CRC, for another
// unit or broadcast (unit 0) get no response, as on an RS485 bus.
func (d *Device) HandleFrame(ctx context.Context, request []byte) []byte {
	adu, err := rtu.Decode(request)
	if err != nil {
		slog.Warn("simulator: dropping invalid frame", "err", err)
		return nil
	}
	if adu.SlaveID != d.UnitID && adu.SlaveID != 0 {
		return nil
	}

	faults := d.currentFaults()
	if faults.Silent {
		return nil
	}

	var resp modbus.ProtocolDataUnit
	if faults.Exception != 0 {
		resp = modbus.Exception(adu.Pdu.FunctionCode, faults.Exception)
	} else {
		resp = d.Process(adu.Pdu)
	}
	if adu.SlaveID == 0 {
		return nil
	}

	if faults.GarbleEcho && !resp.IsException() && isWrite(resp.FunctionCode) && len(resp.Data) > 0 {
		data := append([]byte(nil), resp.Data...)
		data[len(data)-1] ^= 0x01
		resp.Data = data
	}

	out := &rtu.ApplicationDataUnit{SlaveID: d.UnitID, Pdu: resp}
	raw, err := out.Encode()
	if err != nil {
		slog.Error("simulator: failed to encode response", "err", err)
		return nil
	}
	if faults.CorruptCRC {
		raw[len(raw)-1] ^= 0xFF
	}
	return raw
}

func isWrite(functionCode byte) bool {
	switch functionCode {
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters:
		return true
	}
	return false
}

// Process executes a request PDU against the model.
func (d *Device) Process(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		return d.readBits(req, d.model.ReadCoils)
	case modbus.FuncCodeReadDiscreteInputs:
		return d.readBits(req, d.model.ReadAlarms)
	case modbus.FuncCodeReadHoldingRegisters:
		return d.readRegisters(req)
	case modbus.FuncCodeWriteSingleCoil:
		return d.writeSingleCoil(req)
	case modbus.FuncCodeWriteSingleRegister:
		return d.writeSingleRegister(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		return d.writeMultipleRegisters(req)
	default:
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
}

func (d *Device) readBits(req modbus.ProtocolDataUnit, read func(address, quantity uint16) ([]byte, error)) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > 2000 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	data, err := read(address, quantity)
	if err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	return byteCounted(req.FunctionCode, data)
}

func (d *Device) readRegisters(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > 125 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	data, err := d.model.ReadRegisters(address, quantity)
	if err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	return byteCounted(req.FunctionCode, data)
}

func byteCounted(functionCode byte, data []byte) modbus.ProtocolDataUnit {
	resp := make([]byte, 1+len(data))
	resp[0] = byte(len(data))
	copy(resp[1:], data)
	return modbus.ProtocolDataUnit{FunctionCode: functionCode, Data: resp}
}

func (d *Device) writeSingleCoil(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := d.model.WriteCoil(address, value); err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	return req
}

func (d *Device) writeSingleRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	d.model.SetRegister(address, binary.BigEndian.Uint16(req.Data[2:4]))
	return req
}

func (d *Device) writeMultipleRegisters(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) < 5 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := int(req.Data[4])

	if quantity < 1 || quantity > 123 || byteCount != int(quantity)*2 || len(req.Data) != 5+byteCount {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	if err := d.model.WriteRegisters(address, quantity, req.Data[5:]); err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	return modbus.ProtocolDataUnit{FunctionCode: req.FunctionCode, Data: req.Data[0:4]}
}

// SeedDefaults fills the model with the readings of a running cabinet unit:
// 23.5 degrees inside, -5.0 outside, 55% humidity, cooling between 30 and
// 24 degrees, controller on.
func SeedDefaults(m *Model) {
	m.SetRegister(0x00, 235)
	m.SetRegister(0x01, 0xFFCE)
	m.SetRegister(0x06, 550)
	m.SetRegister(0x08, 300)
	m.SetRegister(0x09, 240)
	m.SetRegister(0x0A, 50)
	m.SetRegister(0x0B, 100)
	m.SetRegister(0x0E, 450)
	m.SetRegister(0x0F, 0xFFCE)
	m.SetRegister(0x10, 800)
	m.SetRegister(0x11, 700)
	m.SetRegister(controller.RegisterSystemSwitch, controller.CoilValue(true))

	// Compressor and internal fan running.
	m.SetCoil(0x00, true)
	m.SetCoil(0x02, true)
}
