// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/langji-ac/modbus"
)

// BuildRequest frames a request: unit id, function code, payload and the
// CRC16 trailer, low byte first.
func BuildRequest(unitID, functionCode byte, payload []byte) ([]byte, error) {
	adu := ApplicationDataUnit{
		SlaveID: unitID,
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: functionCode, Data: payload},
	}
	return adu.Encode()
}

// ValidateResponse checks a raw response and returns it unchanged, header
// and CRC included, when it is a well-formed non-exception frame.
//
// Checks run in order: empty, too short, CRC, exception flag.
func ValidateResponse(frame []byte) ([]byte, error) {
	return validate(frame, 0, false)
}

// ValidateResponseFrom is ValidateResponse with an additional check that the
// frame was sent by unitID.
func ValidateResponseFrom(unitID byte, frame []byte) ([]byte, error) {
	return validate(frame, unitID, true)
}

func validate(frame []byte, unitID byte, checkUnit bool) ([]byte, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	if checkUnit && frame[0] != unitID {
		return nil, &modbus.UnitIDMismatchError{Expected: unitID, Received: frame[0]}
	}
	if frame[1]&modbus.ExceptionFlag != 0 {
		if len(frame) < ExceptionSize {
			return nil, fmt.Errorf("%w: exception frame of length '%v'", modbus.ErrFrameTooShort, len(frame))
		}
		return nil, exceptionError(frame[1]&^modbus.ExceptionFlag, frame[2])
	}
	return frame, nil
}

func exceptionError(function, code byte) error {
	if _, ok := modbus.ExceptionCode(code).Message(); ok {
		return &modbus.ExceptionError{Function: function, Code: modbus.ExceptionCode(code)}
	}
	return &modbus.UnknownExceptionError{Function: function, Code: code}
}
