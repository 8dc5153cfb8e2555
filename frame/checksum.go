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

import "github.com/sigurn/crc16"

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC-16/MODBUS of data: initial register 0xFFFF,
// reflected polynomial 0xA001, no final XOR.
func Checksum(data []byte) uint16 {
	crc := crc16.Init(modbusTable)
	crc = crc16.Update(crc, data, modbusTable)
	return crc16.Complete(crc, modbusTable)
}

// Hash computes a checksum incrementally over several writes. The zero value
// is not ready for use; call NewHash.
type Hash struct {
	crc uint16
}

// NewHash returns a Hash in its initial state.
func NewHash() *Hash {
	return &Hash{crc: crc16.Init(modbusTable)}
}

// Write adds p to the running checksum. It never fails.
func (h *Hash) Write(p []byte) (int, error) {
	h.crc = crc16.Update(h.crc, p, modbusTable)
	return len(p), nil
}

// WriteByte adds a single byte to the running checksum.
func (h *Hash) WriteByte(b byte) error {
	h.crc = crc16.Update(h.crc, []byte{b}, modbusTable)
	return nil
}

// Sum16 returns the checksum of everything written so far.
func (h *Hash) Sum16() uint16 {
	return crc16.Complete(h.crc, modbusTable)
}

// Reset returns the hash to its initial state.
func (h *Hash) Reset() {
	h.crc = crc16.Init(modbusTable)
}
