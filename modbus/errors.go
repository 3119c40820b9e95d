// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrEmptyResponse is returned when the device sent no bytes before the
	// read timed out or the connection was closed.
	ErrEmptyResponse = errors.New("modbus: no response")
	// ErrFrameTooShort is returned for a frame too short to carry the
	// unit id, function code and CRC.
	ErrFrameTooShort = errors.New("modbus: response too short")
)

// ConnectionError reports a failure to reach the device.
type ConnectionError struct {
	Address string
	// Errno is the OS error number when one is available, zero otherwise.
	Errno   syscall.Errno
	Message string
	Err     error
}

// NewConnectionError wraps a dial error.
func NewConnectionError(address string, err error) *ConnectionError {
	e := &ConnectionError{
		Address: address,
		Message: err.Error(),
		Err:     err,
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Errno = errno
		e.Message = errno.Error()
	}
	return e
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("modbus: connection to %s failed: %s (%d)", e.Address, e.Message, int(e.Errno))
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CRCMismatchError reports a frame whose trailer does not match its content.
type CRCMismatchError struct {
	Received   uint16
	Calculated uint16
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("modbus: response crc '%#04x' does not match expected '%#04x'", e.Received, e.Calculated)
}

// UnitIDMismatchError reports a valid frame sent by a different unit.
type UnitIDMismatchError struct {
	Expected byte
	Received byte
}

func (e *UnitIDMismatchError) Error() string {
	return fmt.Sprintf("modbus: response unit id '%d' does not match request '%d'", e.Received, e.Expected)
}

// ExceptionError is a Modbus exception response carrying a known code.
type ExceptionError struct {
	// Function is the request function code, with the exception flag cleared.
	Function byte
	Code     ExceptionCode
}

func (e *ExceptionError) Error() string {
	msg, _ := e.Code.Message()
	return fmt.Sprintf("modbus: exception '%d' (%s), function '%d'", e.Code, msg, e.Function)
}

// UnknownExceptionError is a Modbus exception response whose code is not
// one of the documented ones.
type UnknownExceptionError struct {
	Function byte
	Code     byte
}

func (e *UnknownExceptionError) Error() string {
	return fmt.Sprintf("modbus: unknown exception '%d', function '%d'", e.Code, e.Function)
}

// ShortPayloadError reports a read response carrying fewer data bytes than
// the request asked for.
type ShortPayloadError struct {
	Expected int
	Actual   int
}

func (e *ShortPayloadError) Error() string {
	return fmt.Sprintf("modbus: response payload has %d bytes, expected %d", e.Actual, e.Expected)
}

// Is makes a short payload match ErrFrameTooShort.
func (e *ShortPayloadError) Is(target error) bool {
	return target == ErrFrameTooShort
}

// WriteVerificationError reports a write whose echo differs from the request.
type WriteVerificationError struct {
	Function byte
	Expected []byte
	Actual   []byte
}

func (e *WriteVerificationError) Error() string {
	return fmt.Sprintf("modbus: write verification failed for function '%d': expected % x, got % x", e.Function, e.Expected, e.Actual)
}
