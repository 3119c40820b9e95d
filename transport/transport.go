// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
)

// Transporter moves one complete RTU frame to a device and returns whatever
// the device answered. Validation of the answer is left to the caller, so an
// empty slice with a nil error is a legal result meaning "no response".
type Transporter interface {
	Send(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// FrameHandler serves one request frame on the device side and returns the
// response frame. A nil response means the device stays silent.
type FrameHandler func(ctx context.Context, request []byte) []byte
