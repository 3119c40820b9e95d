// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp carries RTU frames through a Modbus TCP (MBAP) gateway. The
// CRC is stripped on the way in and recomputed on the way out, so callers
// keep working with RTU frames.
package tcp

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/langji-ac/modbus"
	rtupacket "github.com/ffutop/langji-ac/modbus/rtu"
)

const (
	// headerSize is transaction id, protocol id, length and unit id.
	headerSize = 7
	tcpMinSize = 8
	tcpMaxSize = 260
)

// ApplicationDataUnit is an MBAP frame.
type ApplicationDataUnit struct {
	TransactionID uint16
	ProtocolID    uint16
	SlaveID       byte
	Pdu           modbus.ProtocolDataUnit
}

// Decode parses a complete MBAP frame.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if len(raw) < tcpMinSize {
		return nil, fmt.Errorf("modbus: mbap length '%v' does not meet minimum '%v'", len(raw), tcpMinSize)
	}
	length := int(binary.BigEndian.Uint16(raw[4:6]))
	if length != len(raw)-headerSize+1 {
		return nil, fmt.Errorf("modbus: mbap length field '%v' does not match frame of %v bytes", length, len(raw))
	}
	return &ApplicationDataUnit{
		TransactionID: binary.BigEndian.Uint16(raw[0:2]),
		ProtocolID:    binary.BigEndian.Uint16(raw[2:4]),
		SlaveID:       raw[6],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[7],
			Data:         raw[8:],
		},
	}, nil
}

// Encode builds the MBAP frame. The length field counts unit id, function
// code and data.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + tcpMinSize
	if length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, tcpMaxSize)
	}
	raw := make([]byte, length)
	binary.BigEndian.PutUint16(raw[0:], adu.TransactionID)
	binary.BigEndian.PutUint16(raw[2:], adu.ProtocolID)
	binary.BigEndian.PutUint16(raw[4:], uint16(2+len(adu.Pdu.Data)))
	raw[6] = adu.SlaveID
	raw[7] = adu.Pdu.FunctionCode
	copy(raw[8:], adu.Pdu.Data)
	return raw, nil
}

// Verify checks that resp answers req.
func (adu *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if resp.TransactionID != adu.TransactionID {
		return fmt.Errorf("modbus: response transaction id '%v' does not match request '%v'", resp.TransactionID, adu.TransactionID)
	}
	if resp.ProtocolID != 0 {
		return fmt.Errorf("modbus: response protocol id '%v' is not modbus", resp.ProtocolID)
	}
	return nil
}

// fromRTU wraps the content of an RTU frame in MBAP.
func fromRTU(transactionID uint16, frame []byte) (*ApplicationDataUnit, error) {
	r, err := rtupacket.Decode(frame)
	if err != nil {
		return nil, err
	}
	return &ApplicationDataUnit{
		TransactionID: transactionID,
		SlaveID:       r.SlaveID,
		Pdu:           r.Pdu,
	}, nil
}

// toRTU rebuilds the RTU frame, CRC included.
func (adu *ApplicationDataUnit) toRTU() ([]byte, error) {
	r := &rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: adu.Pdu}
	return r.Encode()
}
