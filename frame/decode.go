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

// Frame is a parsed view of one wire frame. Payload aliases the buffer
// passed to Decode and is only valid while that buffer is unchanged.
type Frame struct {
	Payload []byte
	Cmd     Command
	Len     uint16
	CRC     uint16
	Version uint8
	Type    Type
	Seq     uint8
}

// Decode parses the frame at the start of buf and returns it together with
// the number of bytes it occupies. Structural checks run in order: minimum
// size, sync markers, then declared length. The checksum and version are
// not checked; see Frame.Verify and Frame.CheckVersion.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < MinFrameSize {
		return Frame{}, 0, ErrTooShort
	}
	if buf[offsetSync1] != Sync1 || buf[offsetSync2] != Sync2 {
		return Frame{}, 0, ErrBadSync
	}
	n := int(Uint16(buf[offsetLen:]))
	total := Size(n)
	if len(buf) < total {
		return Frame{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrIncomplete, total, len(buf))
	}
	end := offsetData + n
	return Frame{
		Version: buf[offsetVersion],
		Type:    Type(buf[offsetType]),
		Seq:     buf[offsetSeq],
		Cmd:     Command(Uint16(buf[offsetCmd:])),
		Len:     uint16(n),
		Payload: buf[offsetData:end:end],
		CRC:     Uint16(buf[end:]),
	}, total, nil
}

// ComputeChecksum recomputes the checksum over the frame's header fields
// and payload.
func (f Frame) ComputeChecksum() uint16 {
	var hdr [HeaderSize - offsetVersion]byte
	hdr[0] = f.Version
	hdr[1] = byte(f.Type)
	hdr[2] = f.Seq
	PutUint16(hdr[3:], uint16(f.Cmd))
	PutUint16(hdr[5:], f.Len)
	h := NewHash()
	_, _ = h.Write(hdr[:])
	_, _ = h.Write(f.Payload)
	return h.Sum16()
}

// Verify returns ErrChecksumMismatch when the stored CRC does not match the
// frame contents.
func (f Frame) Verify() error {
	if got := f.ComputeChecksum(); got != f.CRC {
		return fmt.Errorf("%w: stored 0x%04X, computed 0x%04X", ErrChecksumMismatch, f.CRC, got)
	}
	return nil
}

// VerifyChecksum reports whether the stored CRC matches.
func VerifyChecksum(f Frame) bool {
	return f.Verify() == nil
}

// CheckVersion returns ErrVersionUnsupported for frames from another
// protocol revision.
func (f Frame) CheckVersion() error {
	if f.Version != Version {
		return fmt.Errorf("%w: 0x%02X", ErrVersionUnsupported, f.Version)
	}
	return nil
}

// Passthrough returns the tunnel view of the frame, if it is one.
func (f Frame) Passthrough() (Passthrough, bool) {
	if !IsPassthrough(f.Type) {
		return Passthrough{}, false
	}
	return Passthrough{Bus: uint8(f.Type - TypePassthroughMin), Data: f.Payload}, true
}

// NackCode returns the error code of a Nack frame. ok is false for other
// frame types or a Nack with a malformed body.
func (f Frame) NackCode() (ErrorCode, bool) {
	if f.Type != TypeNack || len(f.Payload) != 1 {
		return 0, false
	}
	return ErrorCode(f.Payload[0]), true
}

// Clone returns a copy of f whose payload no longer aliases the decode
// buffer.
func (f Frame) Clone() Frame {
	if f.Payload != nil {
		f.Payload = append([]byte(nil), f.Payload...)
	}
	return f
}

func (f Frame) String() string {
	return fmt.Sprintf("%s seq=%d cmd=%s len=%d crc=0x%04X", f.Type, f.Seq, f.Cmd, f.Len, f.CRC)
}
