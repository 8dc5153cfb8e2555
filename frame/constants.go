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

// Package frame implements the VDM MCU wire format: frame construction,
// bounds-checked parsing, the CRC-16/MODBUS checksum and the command catalog.
//
// Frame layout (multi-byte fields big-endian):
//
//	[0xAA][0x55][VER][TYPE][SEQ][CMD_H][CMD_L][LEN_H][LEN_L][DATA...][CRC_H][CRC_L]
//
// The checksum covers VER through the last DATA byte. The sync bytes are not
// part of it.
package frame

import "fmt"

// Frame markers and protocol version
const (
	Sync1   = 0xAA // First sync byte
	Sync2   = 0x55 // Second sync byte
	Version = 0x10 // Protocol version 1.0
)

// Frame size limits
const (
	HeaderSize     = 9 // sync(2) + ver(1) + type(1) + seq(1) + cmd(2) + len(2)
	ChecksumSize   = 2
	MinFrameSize   = HeaderSize + ChecksumSize
	MaxPayloadSize = 0xFFFF
	MaxFrameSize   = MinFrameSize + MaxPayloadSize
)

// Field offsets within a frame
const (
	offsetSync1   = 0
	offsetSync2   = 1
	offsetVersion = 2
	offsetType    = 3
	offsetSeq     = 4
	offsetCmd     = 5
	offsetLen     = 7
	offsetData    = 9
)

// Type identifies the kind of frame carried in the TYPE byte.
type Type uint8

const (
	TypeRequest  Type = 0x00 // Request from the host
	TypeResponse Type = 0x01 // Response carrying data
	TypeNotify   Type = 0x02 // Unsolicited notification
	TypeAck      Type = 0x03 // Acknowledgement without data
	TypeNack     Type = 0x04 // Negative acknowledgement, payload is an ErrorCode

	// Passthrough frames tunnel raw bytes of a secondary bus (RS485).
	TypePassthroughMin Type = 0x80
	TypePassthroughMax Type = 0xEF
)

func (t Type) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	case TypeNotify:
		return "notify"
	case TypeAck:
		return "ack"
	case TypeNack:
		return "nack"
	}
	if IsPassthrough(t) {
		return fmt.Sprintf("passthrough(%d)", uint8(t-TypePassthroughMin))
	}
	return fmt.Sprintf("type(0x%02X)", uint8(t))
}

// Size returns the total wire size of a frame carrying payloadLen bytes.
func Size(payloadLen int) int {
	return MinFrameSize + payloadLen
}
