// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package controller

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ffutop/langji-ac/modbus"
	"github.com/ffutop/langji-ac/modbus/rtu"
)

// RegisterSystemSwitch turns the whole controller on (0xFF00) or off.
const RegisterSystemSwitch = 0x0023

// multipleWriteEchoSize covers unit, function, start address and count.
const multipleWriteEchoSize = 6

// WriteSingleCoil sets one coil (function 0x05). The device must echo the
// request frame exactly.
func (c *Client) WriteSingleCoil(ctx context.Context, address uint16, on bool) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], address)
	binary.BigEndian.PutUint16(payload[2:], CoilValue(on))
	return c.writeEcho(ctx, modbus.FuncCodeWriteSingleCoil, payload)
}

// WriteSingleRegister writes one holding register (function 0x06). The
// device must echo the request frame exactly.
func (c *Client) WriteSingleRegister(ctx context.Context, address, value uint16) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], address)
	binary.BigEndian.PutUint16(payload[2:], value)
	return c.writeEcho(ctx, modbus.FuncCodeWriteSingleRegister, payload)
}

// WriteMultipleRegisters writes consecutive holding registers (function
// 0x10). Only unit, function, start address and count of the reply are
// checked; the reply carries no data to compare.
func (c *Client) WriteMultipleRegisters(ctx context.Context, start uint16, values []uint16) error {
	payload := make([]byte, 5+2*len(values))
	binary.BigEndian.PutUint16(payload[0:], start)
	binary.BigEndian.PutUint16(payload[2:], uint16(len(values)))
	payload[4] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(payload[5+2*i:], v)
	}

	request, err := rtu.BuildRequest(c.endpoint.UnitID, modbus.FuncCodeWriteMultipleRegisters, payload)
	if err != nil {
		return err
	}
	response, err := c.roundTrip(ctx, request)
	if err != nil {
		return err
	}
	expected := request[:multipleWriteEchoSize]
	if len(response) < multipleWriteEchoSize || !bytes.Equal(response[:multipleWriteEchoSize], expected) {
		return &modbus.WriteVerificationError{
			Function: modbus.FuncCodeWriteMultipleRegisters,
			Expected: expected,
			Actual:   response,
		}
	}
	return nil
}

// SetPower switches the controller on or off.
func (c *Client) SetPower(ctx context.Context, on bool) error {
	return c.WriteMultipleRegisters(ctx, RegisterSystemSwitch, []uint16{CoilValue(on)})
}

// WriteScaled encodes a physical value with table and writes it to address,
// e.g. 30.0 degrees for ConfigurationTable address 0x0000 is written as 300.
func (c *Client) WriteScaled(ctx context.Context, table Table, address uint16, value float64) error {
	raw, err := table.Encode(address, value)
	if err != nil {
		return err
	}
	return c.WriteMultipleRegisters(ctx, address, []uint16{raw})
}

func (c *Client) writeEcho(ctx context.Context, functionCode byte, payload []byte) error {
	request, err := rtu.BuildRequest(c.endpoint.UnitID, functionCode, payload)
	if err != nil {
		return err
	}
	response, err := c.roundTrip(ctx, request)
	if err != nil {
		return err
	}
	if !bytes.Equal(response, request) {
		return &modbus.WriteVerificationError{
			Function: functionCode,
			Expected: request,
			Actual:   response,
		}
	}
	return nil
}

// CoilValue returns the on/off word the controller uses for coils and for
// its system switch register.
func CoilValue(on bool) uint16 {
	if on {
		return 0xFF00
	}
	return 0x0000
}

// HexString formats v as 0x-prefixed lowercase hex, zero-padded to four
// digits.
func HexString(v int) string {
	if v < 0 {
		return fmt.Sprintf("0x%04x", uint64(v))
	}
	return fmt.Sprintf("0x%04x", v)
}
