// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the Modbus RTU CRC16: reflected polynomial 0xA001,
// initial value 0xFFFF, transmitted low byte first.
package crc

const (
	initial    = 0xFFFF
	polynomial = 0xA001
)

// CRC is an incremental Modbus checksum.
type CRC struct {
	value uint16
}

// Reset restarts the checksum at its initial value.
func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

// PushBytes feeds data into the checksum.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	v := crc.value
	for _, b := range bs {
		v ^= uint16(b)
		for i := 0; i < 8; i++ {
			if v&0x0001 != 0 {
				v = v>>1 ^ polynomial
			} else {
				v >>= 1
			}
		}
	}
	crc.value = v
	return crc
}

// Value returns the current checksum.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC16 of data.
func Checksum(data []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(data).Value()
}

// Append appends the checksum of frame to frame, low byte first.
func Append(frame []byte) []byte {
	sum := Checksum(frame)
	return append(frame, byte(sum), byte(sum>>8))
}
