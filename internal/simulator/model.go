// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// Model holds the controller's data tables in memory, each covering the
// full 16-bit address space.
type Model struct {
	mu sync.RWMutex

	// Status coils (read/write), stored as 1 (ON) or 0 (OFF).
	coils []byte
	// Alarm inputs (read only on the wire), stored as 1 or 0.
	alarms []byte
	// Sensor, setpoint and configuration registers.
	registers []uint16
}

// NewModel creates a model with every table zeroed.
func NewModel() *Model {
	return &Model{
		coils:     make([]byte, MaxAddress+1),
		alarms:    make([]byte, MaxAddress+1),
		registers: make([]uint16, MaxAddress+1),
	}
}

// ReadCoils returns quantity coils packed LSB first.
func (m *Model) ReadCoils(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.coils, address, quantity)
}

// ReadAlarms returns quantity alarm inputs packed LSB first.
func (m *Model) ReadAlarms(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.alarms, address, quantity)
}

func packBits(table []byte, address, quantity uint16) ([]byte, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	result := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if table[int(address)+i] != 0 {
			result[i/8] |= 1 << uint(i%8)
		}
	}
	return result, nil
}

// ReadRegisters returns quantity registers as big-endian bytes.
func (m *Model) ReadRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], m.registers[int(address)+i])
	}
	return result, nil
}

// WriteCoil writes a single coil from its wire value, 0xFF00 (ON) or
// 0x0000 (OFF).
func (m *Model) WriteCoil(address, value uint16) error {
	var bit byte
	switch value {
	case 0xFF00:
		bit = 1
	case 0x0000:
	default:
		return fmt.Errorf("invalid coil value %#04x", value)
	}
	m.mu.Lock()
	m.coils[address] = bit
	m.mu.Unlock()
	return nil
}

// WriteRegisters writes consecutive registers from big-endian bytes.
func (m *Model) WriteRegisters(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}
	for i := 0; i < int(quantity); i++ {
		m.registers[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// SetRegister stores one raw register word.
func (m *Model) SetRegister(address, value uint16) {
	m.mu.Lock()
	m.registers[address] = value
	m.mu.Unlock()
}

// Register returns one raw register word.
func (m *Model) Register(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registers[address]
}

// SetCoil sets one status coil.
func (m *Model) SetCoil(address uint16, on bool) {
	m.mu.Lock()
	m.coils[address] = boolBit(on)
	m.mu.Unlock()
}

// Coil reports one status coil.
func (m *Model) Coil(address uint16) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coils[address] != 0
}

// SetAlarm raises or clears one alarm input.
func (m *Model) SetAlarm(address uint16, active bool) {
	m.mu.Lock()
	m.alarms[address] = boolBit(active)
	m.mu.Unlock()
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
