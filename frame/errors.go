// go-vdm
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-vdm.
//
// go-vdm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-vdm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-vdm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package frame

import "errors"

// Decode results. ErrTooShort and ErrIncomplete mean more bytes are needed;
// ErrBadSync means the buffer does not start at a frame boundary.
var (
	ErrTooShort   = errors.New("frame: buffer shorter than minimum frame")
	ErrBadSync    = errors.New("frame: bad sync markers")
	ErrIncomplete = errors.New("frame: incomplete frame")
)

// Integrity and validation errors
var (
	ErrChecksumMismatch   = errors.New("frame: checksum mismatch")
	ErrVersionUnsupported = errors.New("frame: unsupported protocol version")
	ErrPayloadTooLarge    = errors.New("frame: payload exceeds 65535 bytes")
	ErrBufferTooSmall     = errors.New("frame: buffer too small")
	ErrPayloadSize        = errors.New("frame: payload size does not match command")
	ErrUnknownCommand     = errors.New("frame: unknown command")
	ErrInvalidBus         = errors.New("frame: passthrough bus out of range")
)

// IsRecoverable reports whether a decode error only means the buffer does not
// yet hold a whole frame.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTooShort) || errors.Is(err, ErrIncomplete)
}
