// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/langji-ac/modbus"
	"github.com/ffutop/langji-ac/modbus/crc"
)

// ApplicationDataUnit is an RTU frame split into its parts.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode splits a raw frame after checking its length and CRC. It does not
// interpret exception responses.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if err := checkFrame(raw); err != nil {
		return nil, err
	}
	length := len(raw)
	return &ApplicationDataUnit{
		SlaveID: raw[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[1],
			Data:         raw[2 : length-2],
		},
	}, nil
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + MinSize
	if length > MaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
	}
	raw := make([]byte, 2, length)
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	raw = append(raw, adu.Pdu.Data...)
	return crc.Append(raw), nil
}

// checkFrame applies the length and CRC checks shared by requests and
// responses.
func checkFrame(raw []byte) error {
	length := len(raw)
	if length == 0 {
		return modbus.ErrEmptyResponse
	}
	if length < MinSize {
		return fmt.Errorf("%w: length '%v' does not meet minimum '%v'", modbus.ErrFrameTooShort, length, MinSize)
	}
	calculated := crc.Checksum(raw[:length-2])
	received := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if received != calculated {
		return &modbus.CRCMismatchError{Received: received, Calculated: calculated}
	}
	return nil
}
