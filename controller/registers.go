// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package controller

import (
	"fmt"
	"math"
)

// Transform converts a raw 16-bit register word into a physical value.
type Transform int

const (
	Identity Transform = iota
	SignedDiv10
	UnsignedDiv100
	UnsignedDiv10
	UnsignedDiv65280
	BaudRateLookup
)

// BaudRates indexes the communication speed setting.
var BaudRates = []int{4800, 9600, 19200, 38400}

func (t Transform) String() string {
	switch t {
	case Identity:
		return "identity"
	case SignedDiv10:
		return "signed/10"
	case UnsignedDiv100:
		return "unsigned/100"
	case UnsignedDiv10:
		return "unsigned/10"
	case UnsignedDiv65280:
		return "unsigned/65280"
	case BaudRateLookup:
		return "baud"
	}
	return fmt.Sprintf("Transform(%d)", int(t))
}

// Apply decodes raw.
func (t Transform) Apply(raw uint16) float64 {
	switch t {
	case SignedDiv10:
		return float64(int16(raw)) / 10
	case UnsignedDiv100:
		return float64(raw) / 100
	case UnsignedDiv10:
		return float64(raw) / 10
	case UnsignedDiv65280:
		return float64(raw) / 65280
	case BaudRateLookup:
		if int(raw) < len(BaudRates) {
			return float64(BaudRates[raw])
		}
	}
	return float64(raw)
}

// Invert encodes a physical value back into the register word Apply would
// decode to it, rounding to the register's resolution.
func (t Transform) Invert(value float64) (uint16, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("controller: cannot encode %v", value)
	}
	switch t {
	case SignedDiv10:
		scaled := math.Round(value * 10)
		if scaled < math.MinInt16 || scaled > math.MaxInt16 {
			return 0, fmt.Errorf("controller: %v out of range for %v", value, t)
		}
		return uint16(int16(scaled)), nil
	case UnsignedDiv100:
		return unsigned(value, 100, t)
	case UnsignedDiv10:
		return unsigned(value, 10, t)
	case UnsignedDiv65280:
		return unsigned(value, 65280, t)
	case BaudRateLookup:
		for i, rate := range BaudRates {
			if float64(rate) == value {
				return uint16(i), nil
			}
		}
		// Small raw words would read back as a baud rate.
		if value < float64(len(BaudRates)) {
			return 0, fmt.Errorf("controller: %v is not a supported baud rate", value)
		}
	}
	return unsigned(value, 1, t)
}

func unsigned(value, factor float64, t Transform) (uint16, error) {
	scaled := math.Round(value * factor)
	if scaled < 0 || scaled > math.MaxUint16 {
		return 0, fmt.Errorf("controller: %v out of range for %v", value, t)
	}
	return uint16(scaled), nil
}

// Table maps absolute register addresses to transforms. Addresses missing
// from the table are Identity.
type Table map[uint16]Transform

// Transform returns the transform registered for address.
func (t Table) Transform(address uint16) Transform {
	return t[address]
}

// Decode converts the raw word read at address.
func (t Table) Decode(address, raw uint16) float64 {
	return t.Transform(address).Apply(raw)
}

// Encode converts a physical value for address into a register word.
func (t Table) Encode(address uint16, value float64) (uint16, error) {
	raw, err := t.Transform(address).Invert(value)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", HexString(int(address)), err)
	}
	return raw, nil
}

// SensorTable decodes the holding registers returned by ReadSensors.
var SensorTable = Table{
	0x00: SignedDiv10,
	0x01: SignedDiv10,
	0x02: UnsignedDiv100,
	0x03: UnsignedDiv100,
	0x04: UnsignedDiv100,
	0x05: UnsignedDiv10,
	0x06: SignedDiv10,
	0x23: UnsignedDiv65280,
}

// ConfigurationTable decodes the holding registers returned by
// ReadConfiguration.
var ConfigurationTable = Table{
	0x00: SignedDiv10, // compressor start temperature
	0x01: SignedDiv10, // compressor stop hysteresis
	0x02: SignedDiv10, // heater start temperature
	0x03: SignedDiv10, // heater stop hysteresis
	0x04: SignedDiv10, // cabinet high temperature limit
	0x05: SignedDiv10, // cabinet low temperature limit
	0x06: UnsignedDiv10,
	0x07: UnsignedDiv10,
	0x08: UnsignedDiv10,
	0x0E: BaudRateLookup,
	0x12: UnsignedDiv10, // high voltage alarm
	0x13: UnsignedDiv10, // low voltage alarm
}
