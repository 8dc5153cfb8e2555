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

// Encode writes a complete frame into buf and returns the number of bytes
// written. The payload size is checked before the buffer capacity, so an
// oversized payload reports ErrPayloadTooLarge even when buf is also short.
// Encode does not consult the catalog; use a Builder for that.
func Encode(buf []byte, typ Type, seq uint8, cmd Command, payload []byte) (int, error) {
	if len(payload) > MaxPayloadSize {
		return 0, ErrPayloadTooLarge
	}
	n := Size(len(payload))
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, n, len(buf))
	}

	buf[offsetSync1] = Sync1
	buf[offsetSync2] = Sync2
	buf[offsetVersion] = Version
	buf[offsetType] = byte(typ)
	buf[offsetSeq] = seq
	PutUint16(buf[offsetCmd:], uint16(cmd))
	PutUint16(buf[offsetLen:], uint16(len(payload)))
	copy(buf[offsetData:], payload)

	end := offsetData + len(payload)
	PutUint16(buf[end:], Checksum(buf[offsetVersion:end]))
	return n, nil
}

// Append encodes a frame onto the end of dst and returns the extended slice.
func Append(dst []byte, typ Type, seq uint8, cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, make([]byte, Size(len(payload)))...)
	if _, err := Encode(dst[start:], typ, seq, cmd, payload); err != nil {
		return dst[:start], err
	}
	return dst, nil
}

// Build allocates and returns a complete frame.
func Build(typ Type, seq uint8, cmd Command, payload []byte) ([]byte, error) {
	return Append(make([]byte, 0, Size(len(payload))), typ, seq, cmd, payload)
}

// Builder constructs frames for one endpoint. Requests and notifications
// consume sequence numbers from its Sequence; replies echo the request's.
// Payloads are validated against the catalog before a number is consumed.
type Builder struct {
	seq *Sequence
}

// NewBuilder returns a Builder drawing from seq. A nil seq gets a fresh
// counter starting at 0.
func NewBuilder(seq *Sequence) *Builder {
	if seq == nil {
		seq = &Sequence{}
	}
	return &Builder{seq: seq}
}

// Sequence returns the counter the builder draws from.
func (b *Builder) Sequence() *Sequence { return b.seq }

// Request encodes a request frame into buf and returns its size and the
// sequence number it was given.
func (b *Builder) Request(buf []byte, cmd Command, payload []byte) (int, uint8, error) {
	if err := ValidatePayload(TypeRequest, cmd, payload); err != nil {
		return 0, 0, err
	}
	if len(buf) < Size(len(payload)) {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, Size(len(payload)), len(buf))
	}
	seq := b.seq.Next()
	n, err := Encode(buf, TypeRequest, seq, cmd, payload)
	return n, seq, err
}

// AppendRequest is Request for a growable destination.
func (b *Builder) AppendRequest(dst []byte, cmd Command, payload []byte) ([]byte, uint8, error) {
	if err := ValidatePayload(TypeRequest, cmd, payload); err != nil {
		return dst, 0, err
	}
	seq := b.seq.Next()
	out, err := Append(dst, TypeRequest, seq, cmd, payload)
	return out, seq, err
}

// Command encodes a typed request payload.
func (b *Builder) Command(buf []byte, p Payload) (int, uint8, error) {
	return b.Request(buf, p.Command(), p.AppendTo(nil))
}

// Response encodes a data response that echoes seq.
func (b *Builder) Response(buf []byte, seq uint8, cmd Command, payload []byte) (int, error) {
	if err := ValidatePayload(TypeResponse, cmd, payload); err != nil {
		return 0, err
	}
	return Encode(buf, TypeResponse, seq, cmd, payload)
}

// Reply encodes a typed response payload that echoes seq.
func (b *Builder) Reply(buf []byte, seq uint8, p Payload) (int, error) {
	return b.Response(buf, seq, p.Command(), p.AppendTo(nil))
}

// Ack encodes an empty acknowledgement of the request seq/cmd.
func (b *Builder) Ack(buf []byte, seq uint8, cmd Command) (int, error) {
	return Encode(buf, TypeAck, seq, cmd, nil)
}

// Nack encodes a rejection of the request seq/cmd carrying code.
func (b *Builder) Nack(buf []byte, seq uint8, cmd Command, code ErrorCode) (int, error) {
	return Encode(buf, TypeNack, seq, cmd, []byte{byte(code)})
}

// Notify encodes an unsolicited notification. It consumes a sequence number.
func (b *Builder) Notify(buf []byte, cmd Command, payload []byte) (int, error) {
	if len(payload) > MaxPayloadSize {
		return 0, ErrPayloadTooLarge
	}
	if len(buf) < Size(len(payload)) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, Size(len(payload)), len(buf))
	}
	return Encode(buf, TypeNotify, b.seq.Next(), cmd, payload)
}

// Passthrough encodes raw bytes for secondary bus. The command field is
// unused by the tunnel and set to zero.
func (b *Builder) Passthrough(buf []byte, bus uint8, data []byte) (int, uint8, error) {
	typ, err := PassthroughType(bus)
	if err != nil {
		return 0, 0, err
	}
	if len(data) > MaxPayloadSize {
		return 0, 0, ErrPayloadTooLarge
	}
	if len(buf) < Size(len(data)) {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, Size(len(data)), len(buf))
	}
	seq := b.seq.Next()
	n, err := Encode(buf, typ, seq, 0, data)
	return n, seq, err
}

// MotorRotate encodes an absolute rotation request.
func (b *Builder) MotorRotate(buf []byte, motor MotorID, angle, velocity float32) (int, uint8, error) {
	return b.Command(buf, MotorRotate{Motor: motor, Angle: angle, Velocity: velocity})
}

// MotorEnable encodes a motor enable request.
func (b *Builder) MotorEnable(buf []byte, motor MotorID) (int, uint8, error) {
	return b.Command(buf, MotorTarget{Cmd: CmdMotorEnable, Motor: motor})
}

// MotorDisable encodes a motor disable request.
func (b *Builder) MotorDisable(buf []byte, motor MotorID) (int, uint8, error) {
	return b.Command(buf, MotorTarget{Cmd: CmdMotorDisable, Motor: motor})
}

// MotorGetPosition encodes a position query.
func (b *Builder) MotorGetPosition(buf []byte, motor MotorID) (int, uint8, error) {
	return b.Command(buf, MotorTarget{Cmd: CmdMotorGetPos, Motor: motor})
}

// DeviceControl encodes a peripheral switch request. cmd selects the
// peripheral class and must be one of the device control commands.
func (b *Builder) DeviceControl(buf []byte, cmd Command, device DeviceID, state DeviceState) (int, uint8, error) {
	return b.Command(buf, DeviceControl{Cmd: cmd, Device: device, State: state})
}

// SensorRead encodes a temperature read request.
func (b *Builder) SensorRead(buf []byte, sensor uint8) (int, uint8, error) {
	return b.Command(buf, SensorRead{Sensor: sensor})
}
