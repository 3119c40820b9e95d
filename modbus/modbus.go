// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the protocol vocabulary shared by the frame codec,
// the transports and the controller client: function codes, exception codes
// and the error taxonomy of a request/response cycle.
package modbus

// Function codes used by the controller.
const (
	FuncCodeReadCoils              = 0x01
	FuncCodeReadDiscreteInputs     = 0x02
	FuncCodeReadHoldingRegisters   = 0x03
	FuncCodeReadInputRegisters     = 0x04
	FuncCodeWriteSingleCoil        = 0x05
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10
	FuncCodeMaskWriteRegister      = 0x16

	// ExceptionFlag is set on the function code of an exception response.
	ExceptionFlag = 0x80
)

// ExceptionCode is the single byte carried by an exception response.
type ExceptionCode byte

// Exception codes the controller is known to answer with.
const (
	ExceptionCodeIllegalFunction    ExceptionCode = 0x01
	ExceptionCodeIllegalDataAddress ExceptionCode = 0x02
	ExceptionCodeIllegalDataValue   ExceptionCode = 0x03
	ExceptionCodeSlaveDeviceFailure ExceptionCode = 0x04
	ExceptionCodeSlaveDeviceBusy    ExceptionCode = 0x06
	ExceptionCodeCRCCheckFailure    ExceptionCode = 0x0C
)

var exceptionMessages = map[ExceptionCode]string{
	ExceptionCodeIllegalFunction:    "Illegal function",
	ExceptionCodeIllegalDataAddress: "Illegal data address",
	ExceptionCodeIllegalDataValue:   "Illegal data value",
	ExceptionCodeSlaveDeviceFailure: "Slave device failure",
	ExceptionCodeSlaveDeviceBusy:    "Slave device busy",
	ExceptionCodeCRCCheckFailure:    "CRC check failure",
}

// Message returns the fixed human readable text of a known code and
// reports whether the code is known.
func (c ExceptionCode) Message() (string, bool) {
	msg, ok := exceptionMessages[c]
	return msg, ok
}

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// IsException reports whether the PDU carries an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&ExceptionFlag != 0
}

// Exception builds the exception response PDU for a request function code.
func Exception(functionCode byte, code ExceptionCode) ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: functionCode | ExceptionFlag,
		Data:         []byte{byte(code)},
	}
}
