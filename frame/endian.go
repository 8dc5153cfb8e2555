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

import (
	"encoding/binary"
	"math"
)

// Big-endian helpers for header fields and payload sub-fields. Like
// encoding/binary they panic when the slice is shorter than the value.

// PutUint16 writes v to b[0:2], most significant byte first.
func PutUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

// Uint16 reads a big-endian uint16 from b[0:2].
func Uint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// PutInt16 writes the two's complement form of v to b[0:2].
func PutInt16(b []byte, v int16) { binary.BigEndian.PutUint16(b, uint16(v)) }

// Int16 reads a big-endian int16 from b[0:2].
func Int16(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) }

// PutUint32 writes v to b[0:4].
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// Uint32 reads a big-endian uint32 from b[0:4].
func Uint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// PutFloat32 writes the IEEE-754 bit pattern of v to b[0:4]. NaN payloads
// and subnormals are preserved exactly.
func PutFloat32(b []byte, v float32) { binary.BigEndian.PutUint32(b, math.Float32bits(v)) }

// Float32 reinterprets b[0:4] as a big-endian IEEE-754 single.
func Float32(b []byte) float32 { return math.Float32frombits(binary.BigEndian.Uint32(b)) }

// AppendUint16 appends v big-endian to dst.
func AppendUint16(dst []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(dst, v) }

// AppendInt16 appends v big-endian to dst.
func AppendInt16(dst []byte, v int16) []byte { return binary.BigEndian.AppendUint16(dst, uint16(v)) }

// AppendUint32 appends v big-endian to dst.
func AppendUint32(dst []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(dst, v) }

// AppendFloat32 appends the big-endian bit pattern of v to dst.
func AppendFloat32(dst []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
}
