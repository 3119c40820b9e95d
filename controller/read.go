// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package controller

import (
	"context"
	"encoding/binary"

	"github.com/ffutop/langji-ac/modbus"
)

// Default read ranges covering the controller's register map.
const (
	StatusQuantity        = 10
	AlarmsQuantity        = 32
	SensorsQuantity       = 36
	ConfigurationQuantity = 21
)

// RegisterValue is one decoded register or bit.
type RegisterValue struct {
	Address uint16
	Raw     uint16
	Value   float64
}

// RegisterValueSet holds the values of one read in ascending address order.
type RegisterValueSet []RegisterValue

// Get returns the value decoded for address.
func (s RegisterValueSet) Get(address uint16) (float64, bool) {
	for _, v := range s {
		if v.Address == address {
			return v.Value, true
		}
	}
	return 0, false
}

// Map returns the values keyed by address.
func (s RegisterValueSet) Map() map[uint16]float64 {
	m := make(map[uint16]float64, len(s))
	for _, v := range s {
		m[v.Address] = v.Value
	}
	return m
}

// ReadStatus reads the status coils (function 0x01) 0x0000-0x0009.
func (c *Client) ReadStatus(ctx context.Context) (RegisterValueSet, error) {
	return c.ReadStatusRange(ctx, 0x0000, StatusQuantity)
}

// ReadStatusRange reads quantity status coils from start.
func (c *Client) ReadStatusRange(ctx context.Context, start, quantity uint16) (RegisterValueSet, error) {
	return c.readBits(ctx, modbus.FuncCodeReadCoils, start, quantity)
}

// ReadAlarms reads the alarm discrete inputs (function 0x02) 0x0000-0x001F.
func (c *Client) ReadAlarms(ctx context.Context) (RegisterValueSet, error) {
	return c.ReadAlarmsRange(ctx, 0x0000, AlarmsQuantity)
}

// ReadAlarmsRange reads quantity alarm inputs from start.
func (c *Client) ReadAlarmsRange(ctx context.Context, start, quantity uint16) (RegisterValueSet, error) {
	return c.readBits(ctx, modbus.FuncCodeReadDiscreteInputs, start, quantity)
}

// ReadSensors reads the measurement and setpoint holding registers
// 0x0000-0x0023, decoded with SensorTable.
func (c *Client) ReadSensors(ctx context.Context) (RegisterValueSet, error) {
	return c.ReadSensorsRange(ctx, 0x0000, SensorsQuantity)
}

// ReadSensorsRange reads quantity sensor registers from start.
func (c *Client) ReadSensorsRange(ctx context.Context, start, quantity uint16) (RegisterValueSet, error) {
	return c.readRegisters(ctx, start, quantity, SensorTable)
}

// ReadConfiguration reads the configuration holding registers
// 0x0000-0x0014, decoded with ConfigurationTable.
func (c *Client) ReadConfiguration(ctx context.Context) (RegisterValueSet, error) {
	return c.ReadConfigurationRange(ctx, 0x0000, ConfigurationQuantity)
}

// ReadConfigurationRange reads quantity configuration registers from start.
func (c *Client) ReadConfigurationRange(ctx context.Context, start, quantity uint16) (RegisterValueSet, error) {
	return c.readRegisters(ctx, start, quantity, ConfigurationTable)
}

func rangePayload(start, quantity uint16) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], start)
	binary.BigEndian.PutUint16(payload[2:], quantity)
	return payload
}

// responseData returns the byte-counted data section of a validated read
// response, failing when it holds fewer than want bytes.
func responseData(frame []byte, want int) ([]byte, error) {
	// unit, function, byte count ... crc
	data := frame[3 : len(frame)-2]
	if n := int(frame[2]); n < len(data) {
		data = data[:n]
	}
	if len(data) < want {
		return nil, &modbus.ShortPayloadError{Expected: want, Actual: len(data)}
	}
	return data, nil
}

func (c *Client) readBits(ctx context.Context, functionCode byte, start, quantity uint16) (RegisterValueSet, error) {
	frame, err := c.sendRequest(ctx, functionCode, rangePayload(start, quantity))
	if err != nil {
		return nil, err
	}
	if len(frame) < 5 {
		return nil, &modbus.ShortPayloadError{Expected: (int(quantity) + 7) / 8}
	}
	data, err := responseData(frame, (int(quantity)+7)/8)
	if err != nil {
		return nil, err
	}

	values := make(RegisterValueSet, quantity)
	for i := 0; i < int(quantity); i++ {
		bit := uint16(data[i/8]>>(i%8)) & 1
		values[i] = RegisterValue{
			Address: start + uint16(i),
			Raw:     bit,
			Value:   float64(bit),
		}
	}
	return values, nil
}

func (c *Client) readRegisters(ctx context.Context, start, quantity uint16, table Table) (RegisterValueSet, error) {
	frame, err := c.sendRequest(ctx, modbus.FuncCodeReadHoldingRegisters, rangePayload(start, quantity))
	if err != nil {
		return nil, err
	}
	if len(frame) < 5 {
		return nil, &modbus.ShortPayloadError{Expected: int(quantity) * 2}
	}
	data, err := responseData(frame, int(quantity)*2)
	if err != nil {
		return nil, err
	}

	values := make(RegisterValueSet, quantity)
	for i := 0; i < int(quantity); i++ {
		address := start + uint16(i)
		raw := binary.BigEndian.Uint16(data[i*2:])
		values[i] = RegisterValue{
			Address: address,
			Raw:     raw,
			Value:   table.Decode(address, raw),
		}
	}
	return values, nil
}
