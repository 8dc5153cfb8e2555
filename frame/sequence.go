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

import "sync/atomic"

// Sequence hands out 8-bit sequence numbers for request frames. Each
// communication endpoint owns one. The zero value starts at 0 and is ready
// to use; it is safe for concurrent use.
type Sequence struct {
	next atomic.Uint32
}

// NewSequence returns a Sequence whose first Next call yields start.
func NewSequence(start uint8) *Sequence {
	s := &Sequence{}
	s.next.Store(uint32(start))
	return s
}

// Next returns the current value and advances the counter, wrapping from
// 255 to 0.
func (s *Sequence) Next() uint8 {
	return uint8(s.next.Add(1) - 1)
}

// Peek returns the value the next call to Next will yield.
func (s *Sequence) Peek() uint8 {
	return uint8(s.next.Load())
}
