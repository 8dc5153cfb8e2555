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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat32BitExact(t *testing.T) {
	t.Parallel()
	patterns := []uint32{
		0x00000000, // +0
		0x80000000, // -0
		0x42B40000, // 90.0
		0xC2B40000, // -90.0
		0x00000001, // smallest subnormal
		0x007FFFFF, // largest subnormal
		0x7F7FFFFF, // max finite
		0x7F800000, // +Inf
		0xFF800000, // -Inf
		0x7FC00000, // quiet NaN
		0x7F800001, // signalling NaN
		0xFFFFFFFF, // NaN with every payload bit set
	}

	for _, bits := range patterns {
		v := math.Float32frombits(bits)
		buf := make([]byte, 4)
		PutFloat32(buf, v)
		assert.Equal(t, bits, Uint32(buf), "0x%08X encode", bits)
		assert.Equal(t, bits, math.Float32bits(Float32(buf)), "0x%08X decode", bits)
		assert.Equal(t, buf, AppendFloat32(nil, v))
	}
}

func TestFloat32WireBytes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{0x42, 0xB4, 0x00, 0x00}, AppendFloat32(nil, 90.0))
	assert.Equal(t, []byte{0x41, 0x20, 0x00, 0x00}, AppendFloat32(nil, 10.0))
	assert.InDelta(t, float32(-1.5), Float32([]byte{0xBF, 0xC0, 0x00, 0x00}), 0)
}

func TestIntegerHelpers(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 4)

	PutUint16(buf, 0x1234)
	assert.Equal(t, []byte{0x12, 0x34}, buf[:2])
	assert.Equal(t, uint16(0x1234), Uint16(buf))

	PutInt16(buf, -235)
	assert.Equal(t, []byte{0xFF, 0x15}, buf[:2])
	assert.Equal(t, int16(-235), Int16(buf))

	PutUint32(buf, 0xDEADBEEF)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)
	assert.Equal(t, uint32(0xDEADBEEF), Uint32(buf))

	assert.Equal(t, []byte{0x01, 0x02, 0x03}, AppendUint16([]byte{0x01}, 0x0203))
	assert.Equal(t, []byte{0x80, 0x00}, AppendInt16(nil, math.MinInt16))
}

func TestHelpersPanicOnShortSlice(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { Uint16([]byte{0x01}) })
	assert.Panics(t, func() { Float32([]byte{0x01, 0x02, 0x03}) })
}
