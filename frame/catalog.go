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
	"fmt"
	"slices"
)

// Shape describes the payload lengths a command accepts in one direction.
// The zero Shape accepts only an empty payload.
type Shape struct {
	Fixed  int  // bytes always present
	Record int  // size of each repeated record after Fixed; 0 when not repeated
	Opaque bool // any length up to MaxPayloadSize
}

// Accepts reports whether a payload of n bytes fits the shape.
func (s Shape) Accepts(n int) bool {
	switch {
	case n < 0 || n > MaxPayloadSize:
		return false
	case s.Opaque:
		return true
	case s.Record > 0:
		return n >= s.Fixed && (n-s.Fixed)%s.Record == 0
	default:
		return n == s.Fixed
	}
}

func (s Shape) String() string {
	switch {
	case s.Opaque:
		return "any length"
	case s.Record > 0 && s.Fixed > 0:
		return fmt.Sprintf("%d+k*%d bytes", s.Fixed, s.Record)
	case s.Record > 0:
		return fmt.Sprintf("k*%d bytes", s.Record)
	default:
		return fmt.Sprintf("%d bytes", s.Fixed)
	}
}

func fixed(n int) Shape { return Shape{Fixed: n} }

var (
	empty  = Shape{}
	opaque = Shape{Opaque: true}
)

// Spec is a catalog entry: a command code, its name and the payload shapes
// of its request and response.
type Spec struct {
	decodeRequest  func([]byte) Payload
	decodeResponse func([]byte) Payload
	Name           string
	Request        Shape
	Response       Shape
	Code           Command
}

// Group returns the subsystem of the command.
func (s Spec) Group() Group { return s.Code.Group() }

// ValidateRequest checks a request payload length against the catalog.
func (s Spec) ValidateRequest(payload []byte) error {
	return s.validate("request", s.Request, payload)
}

// ValidateResponse checks a response payload length against the catalog.
func (s Spec) ValidateResponse(payload []byte) error {
	return s.validate("response", s.Response, payload)
}

func (s Spec) validate(dir string, shape Shape, payload []byte) error {
	if !shape.Accepts(len(payload)) {
		return fmt.Errorf("%w: %s %s takes %s, got %d", ErrPayloadSize, s.Name, dir, shape, len(payload))
	}
	return nil
}

func bare(cmd Command) func([]byte) Payload {
	return func([]byte) Payload { return Bare(cmd) }
}

func target(cmd Command) func([]byte) Payload {
	return func(b []byte) Payload { return MotorTarget{Cmd: cmd, Motor: MotorID(b[0])} }
}

func control(cmd Command) func([]byte) Payload {
	return func(b []byte) Payload {
		return DeviceControl{Cmd: cmd, Device: DeviceID(b[0]), State: DeviceState(b[1])}
	}
}

func deviceSpec(cmd Command, name string) Spec {
	return Spec{Code: cmd, Name: name, Request: fixed(2), decodeRequest: control(cmd)}
}

func motorSpec(cmd Command, name string) Spec {
	return Spec{Code: cmd, Name: name, Request: fixed(1), decodeRequest: target(cmd)}
}

func systemSpec(cmd Command, name string) Spec {
	return Spec{Code: cmd, Name: name, decodeRequest: bare(cmd)}
}

var specs = []Spec{
	systemSpec(CmdPing, "ping"),
	{
		Code: CmdVersion, Name: "version", Response: fixed(4),
		decodeRequest: bare(CmdVersion),
		decodeResponse: func(b []byte) Payload {
			return FirmwareInfo{Protocol: b[0], Major: b[1], Minor: b[2], Patch: b[3]}
		},
	},
	systemSpec(CmdReset, "reset"),
	systemSpec(CmdSleep, "sleep"),
	systemSpec(CmdWakeup, "wakeup"),
	{
		Code: CmdSetRTC, Name: "set-rtc", Request: fixed(4),
		decodeRequest: func(b []byte) Payload { return SetRTC{Time: decodeUnix(b)} },
	},
	{
		Code: CmdGetRTC, Name: "get-rtc", Response: fixed(4),
		decodeRequest:  bare(CmdGetRTC),
		decodeResponse: func(b []byte) Payload { return RTCTime{Time: decodeUnix(b)} },
	},
	{
		Code: CmdTempCtrl, Name: "temp-ctrl", Request: fixed(4),
		decodeRequest: func(b []byte) Payload { return decodeTempControl(b) },
	},
	{
		Code: CmdQueryPower, Name: "query-power", Response: fixed(4),
		decodeRequest: bare(CmdQueryPower),
		decodeResponse: func(b []byte) Payload {
			return PowerStatus{Millivolts: Uint16(b[0:2]), Milliamps: Uint16(b[2:4])}
		},
	},
	{
		Code: CmdQueryStatus, Name: "query-status", Response: fixed(5),
		decodeRequest: bare(CmdQueryStatus),
		decodeResponse: func(b []byte) Payload {
			return SystemStatus{State: b[0], Uptime: secondsToDuration(Uint32(b[1:5]))}
		},
	},
	{
		Code: CmdQueryNetwork, Name: "query-network", Response: fixed(2),
		decodeRequest: bare(CmdQueryNetwork),
		decodeResponse: func(b []byte) Payload {
			return NetworkStatus{Link: b[0], RSSI: int8(b[1])}
		},
	},
	{
		Code: CmdMotorRotate, Name: "motor-rotate", Request: fixed(9),
		decodeRequest: func(b []byte) Payload { return decodeMotorRotate(b, false) },
	},
	motorSpec(CmdMotorEnable, "motor-enable"),
	motorSpec(CmdMotorDisable, "motor-disable"),
	motorSpec(CmdMotorStop, "motor-stop"),
	motorSpec(CmdMotorSetOrigin, "motor-set-origin"),
	{
		Code: CmdMotorGetPos, Name: "motor-get-pos", Request: fixed(1), Response: fixed(5),
		decodeRequest:  target(CmdMotorGetPos),
		decodeResponse: func(b []byte) Payload { return decodeMotorPosition(b) },
	},
	{
		Code: CmdMotorSetVel, Name: "motor-set-vel", Request: fixed(5),
		decodeRequest: func(b []byte) Payload {
			return MotorVelocity{Motor: MotorID(b[0]), Velocity: Float32(b[1:5])}
		},
	},
	{
		Code: CmdMotorRotateRel, Name: "motor-rotate-rel", Request: fixed(9),
		decodeRequest: func(b []byte) Payload { return decodeMotorRotate(b, true) },
	},
	{
		Code: CmdMotorGetAll, Name: "motor-get-all", Response: Shape{Record: positionRecordSize},
		decodeRequest:  bare(CmdMotorGetAll),
		decodeResponse: func(b []byte) Payload { return decodeMotorPositions(b) },
	},
	{
		Code: CmdSensorReadTemp, Name: "sensor-read-temp", Request: fixed(1), Response: fixed(5),
		decodeRequest:  func(b []byte) Payload { return SensorRead{Sensor: b[0]} },
		decodeResponse: func(b []byte) Payload { return decodeTemperature(b) },
	},
	{
		Code: CmdSensorReadAll, Name: "sensor-read-all", Response: Shape{Record: temperatureRecordSize},
		decodeRequest:  bare(CmdSensorReadAll),
		decodeResponse: func(b []byte) Payload { return decodeTemperatures(b) },
	},
	{
		Code: CmdSensorConfig, Name: "sensor-config", Request: fixed(3),
		decodeRequest: func(b []byte) Payload { return decodeSensorConfig(b) },
	},
	deviceSpec(CmdDevHeater, "dev-heater"),
	deviceSpec(CmdDevFan, "dev-fan"),
	deviceSpec(CmdDevLED, "dev-led"),
	deviceSpec(CmdDevLaser, "dev-laser"),
	deviceSpec(CmdDevPWMLight, "dev-pwm-light"),
	{
		Code: CmdDevGetState, Name: "dev-get-state", Request: fixed(1), Response: fixed(2),
		decodeRequest: func(b []byte) Payload { return DeviceQuery{Device: DeviceID(b[0])} },
		decodeResponse: func(b []byte) Payload {
			return DeviceStatus{Device: DeviceID(b[0]), State: DeviceState(b[1])}
		},
	},
}

var catalog = func() map[Command]Spec {
	m := make(map[Command]Spec, len(specs))
	for _, s := range specs {
		m[s.Code] = s
	}
	return m
}()

// Lookup returns the catalog entry for cmd. Every code in the debug group
// resolves to an entry with opaque payloads in both directions.
func Lookup(cmd Command) (Spec, bool) {
	if s, ok := catalog[cmd]; ok {
		return s, true
	}
	if cmd.Group() == GroupDebug {
		return Spec{
			Code:     cmd,
			Name:     fmt.Sprintf("debug-%02x", cmd.ID()),
			Request:  opaque,
			Response: opaque,
		}, true
	}
	return Spec{}, false
}

// Commands returns every named catalog entry ordered by code.
func Commands() []Spec {
	out := slices.Clone(specs)
	slices.SortFunc(out, func(a, b Spec) int { return int(a.Code) - int(b.Code) })
	return out
}

// ValidatePayload checks payload against what a frame of type typ carrying
// cmd may hold. Ack frames are empty, Nack frames carry one error code, and
// notification and passthrough bodies are opaque.
func ValidatePayload(typ Type, cmd Command, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	switch {
	case IsPassthrough(typ), typ == TypeNotify:
		return nil
	case typ == TypeAck:
		if len(payload) != 0 {
			return fmt.Errorf("%w: ack carries %d bytes", ErrPayloadSize, len(payload))
		}
		return nil
	case typ == TypeNack:
		if len(payload) != 1 {
			return fmt.Errorf("%w: nack carries %d bytes, want 1", ErrPayloadSize, len(payload))
		}
		return nil
	}

	spec, ok := Lookup(cmd)
	if !ok {
		return fmt.Errorf("%w: 0x%04X", ErrUnknownCommand, uint16(cmd))
	}
	switch typ {
	case TypeRequest:
		return spec.ValidateRequest(payload)
	case TypeResponse:
		return spec.ValidateResponse(payload)
	default:
		return nil
	}
}

// ParseRequest validates and decodes the body of a request for cmd.
// Commands without a typed decoder come back as Raw.
func ParseRequest(cmd Command, payload []byte) (Payload, error) {
	spec, ok := Lookup(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownCommand, uint16(cmd))
	}
	if err := spec.ValidateRequest(payload); err != nil {
		return nil, err
	}
	if spec.decodeRequest == nil {
		return Raw{Cmd: cmd, Data: payload}, nil
	}
	return spec.decodeRequest(payload), nil
}

// ParseResponse validates and decodes the body of a response to cmd.
func ParseResponse(cmd Command, payload []byte) (Payload, error) {
	spec, ok := Lookup(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownCommand, uint16(cmd))
	}
	if err := spec.ValidateResponse(payload); err != nil {
		return nil, err
	}
	if spec.decodeResponse == nil {
		return Raw{Cmd: cmd, Data: payload}, nil
	}
	return spec.decodeResponse(payload), nil
}

// ParseResponseAs decodes a response body into the concrete payload type T.
func ParseResponseAs[T Payload](cmd Command, payload []byte) (T, error) {
	var zero T
	p, err := ParseResponse(cmd, payload)
	if err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("frame: %s response decodes to %T, not %T", cmd, p, zero)
	}
	return v, nil
}
