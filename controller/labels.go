// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package controller

const unknownLabel = "Unknown parameter"

var labels = map[uint16]string{
	0x00: "Internal temperature sensor 1",
	0x01: "External temperature sensor 1",
	0x02: "Reserved",
	0x03: "Reserved",
	0x04: "Reserved",
	0x05: "Reserved",
	0x06: "Humidity level",
	0x07: "Reserved",
	0x08: "Cooling start temperature",
	0x09: "Cooling stop threshold",
	0x0A: "Heating start threshold",
	0x0B: "Heating stop threshold",
	0x0C: "Heat pipe start temperature",
	0x0D: "Heat pipe stop temperature",
	0x0E: "High temperature alarm threshold",
	0x0F: "Low temperature alarm threshold",
	0x10: "Dehumidification start humidity",
	0x11: "Dehumidification stop humidity",
	0x12: "Temperature sensor 1 calibration",
	0x13: "Temperature sensor 2 calibration",
	0x14: "Pressure alarm setting",
	0x15: "Temperature sensor 1 sensitivity enable",
	0x16: "Temperature sensor 2 sensitivity enable",
	0x17: "Humidity sensor enable",
	0x18: "Compressor mode",
	0x19: "Electric heater mode",
	0x1A: "Internal fan mode",
	0x1B: "External fan mode",
	0x1C: "Temperature sensor 1 fault setting",
	0x1D: "Temperature sensor 2 fault setting",
	0x1E: "Humidity fault setting",
	0x1F: "High temperature alarm fault setting",
	0x20: "Low temperature alarm fault setting",
	0x21: "Pressure alarm fault setting",
	0x22: "Freeze alarm fault setting",
	0x23: "System (controller) On/Off",
}

// Describe returns the human readable name of a sensor register address.
func Describe(address uint16) string {
	if label, ok := labels[address]; ok {
		return label
	}
	return unknownLabel
}
