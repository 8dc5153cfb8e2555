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

import "fmt"

// MaxBus is the highest secondary bus index a passthrough type can encode.
const MaxBus = uint8(TypePassthroughMax - TypePassthroughMin)

// Passthrough is the view of a frame that tunnels raw bytes for a
// secondary bus. Data aliases the frame's payload.
type Passthrough struct {
	Data []byte
	Bus  uint8
}

// IsPassthrough reports whether typ falls in the passthrough range.
func IsPassthrough(typ Type) bool {
	return typ >= TypePassthroughMin && typ <= TypePassthroughMax
}

// PassthroughType returns the frame type that carries traffic for bus.
func PassthroughType(bus uint8) (Type, error) {
	if bus > MaxBus {
		return 0, fmt.Errorf("%w: %d > %d", ErrInvalidBus, bus, MaxBus)
	}
	return TypePassthroughMin + Type(bus), nil
}
