// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinSize covers unit id, function code and CRC.
	MinSize = 4
	// MaxSize is the largest RTU frame and the read buffer of a round trip.
	MaxSize = 256

	// ExceptionSize is unit id, function code, exception code and CRC.
	ExceptionSize = 5

	// headerSize is the request prefix needed to size any supported request.
	headerSize = 7
)
