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

package testing

import (
	"fmt"

	"github.com/ZaparooProject/go-vdm/frame"
)

func mustBuild(typ frame.Type, seq uint8, cmd frame.Command, payload []byte) []byte {
	out, err := frame.Build(typ, seq, cmd, payload)
	if err != nil {
		panic(fmt.Sprintf("build %s frame: %v", typ, err))
	}
	return out
}

// BuildAck creates an acknowledgement frame for seq/cmd
func BuildAck(seq uint8, cmd frame.Command) []byte {
	return mustBuild(frame.TypeAck, seq, cmd, nil)
}

// BuildNack creates a rejection frame for seq/cmd
func BuildNack(seq uint8, cmd frame.Command, code frame.ErrorCode) []byte {
	return mustBuild(frame.TypeNack, seq, cmd, []byte{byte(code)})
}

// BuildResponse creates a data response frame
func BuildResponse(seq uint8, cmd frame.Command, payload []byte) []byte {
	return mustBuild(frame.TypeResponse, seq, cmd, payload)
}

// BuildReply creates a data response frame from a typed payload
func BuildReply(seq uint8, p frame.Payload) []byte {
	return BuildResponse(seq, p.Command(), p.AppendTo(nil))
}

// BuildNotify creates an unsolicited notification frame
func BuildNotify(seq uint8, cmd frame.Command, payload []byte) []byte {
	return mustBuild(frame.TypeNotify, seq, cmd, payload)
}

// BuildPassthrough creates a frame tunnelling data for bus
func BuildPassthrough(seq, bus uint8, data []byte) []byte {
	typ, err := frame.PassthroughType(bus)
	if err != nil {
		panic(err)
	}
	return mustBuild(typ, seq, 0, data)
}

// Corrupt returns a copy of wire with one checksum bit flipped
func Corrupt(wire []byte) []byte {
	out := append([]byte(nil), wire...)
	out[len(out)-1] ^= 0x01
	return out
}
