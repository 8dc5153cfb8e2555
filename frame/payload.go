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
	"math"
	"time"
)

// Payload is a typed command body. AppendTo packs it in wire order; the
// catalog entry for Command decides which direction it is valid for.
type Payload interface {
	Command() Command
	AppendTo(dst []byte) []byte
}

// Bare is a command without a body, such as ping or reset.
type Bare Command

func (b Bare) Command() Command         { return Command(b) }
func (Bare) AppendTo(dst []byte) []byte { return dst }

// Raw carries an opaque body, used for debug commands and notifications.
type Raw struct {
	Data []byte
	Cmd  Command
}

func (r Raw) Command() Command           { return r.Cmd }
func (r Raw) AppendTo(dst []byte) []byte { return append(dst, r.Data...) }

// MotorRotate moves a motor to an absolute angle, or by a delta when
// Relative is set. Angles are degrees, velocity degrees per second.
type MotorRotate struct {
	Angle    float32
	Velocity float32
	Motor    MotorID
	Relative bool
}

func (m MotorRotate) Command() Command {
	if m.Relative {
		return CmdMotorRotateRel
	}
	return CmdMotorRotate
}

func (m MotorRotate) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(m.Motor))
	dst = AppendFloat32(dst, m.Angle)
	return AppendFloat32(dst, m.Velocity)
}

func decodeMotorRotate(b []byte, relative bool) MotorRotate {
	return MotorRotate{
		Motor:    MotorID(b[0]),
		Angle:    Float32(b[1:5]),
		Velocity: Float32(b[5:9]),
		Relative: relative,
	}
}

// MotorTarget is the one-byte body shared by enable, disable, stop,
// set-origin and get-position.
type MotorTarget struct {
	Cmd   Command
	Motor MotorID
}

func (m MotorTarget) Command() Command           { return m.Cmd }
func (m MotorTarget) AppendTo(dst []byte) []byte { return append(dst, byte(m.Motor)) }

// MotorVelocity sets the default velocity of a motor.
type MotorVelocity struct {
	Velocity float32
	Motor    MotorID
}

func (MotorVelocity) Command() Command { return CmdMotorSetVel }

func (m MotorVelocity) AppendTo(dst []byte) []byte {
	return AppendFloat32(append(dst, byte(m.Motor)), m.Velocity)
}

// MotorPosition reports the angle of one motor.
type MotorPosition struct {
	Angle float32
	Motor MotorID
}

func (MotorPosition) Command() Command { return CmdMotorGetPos }

func (m MotorPosition) AppendTo(dst []byte) []byte {
	return AppendFloat32(append(dst, byte(m.Motor)), m.Angle)
}

func decodeMotorPosition(b []byte) MotorPosition {
	return MotorPosition{Motor: MotorID(b[0]), Angle: Float32(b[1:5])}
}

// MotorPositions is the get-all reply, one record per motor.
type MotorPositions []MotorPosition

func (MotorPositions) Command() Command { return CmdMotorGetAll }

func (m MotorPositions) AppendTo(dst []byte) []byte {
	for _, p := range m {
		dst = p.AppendTo(dst)
	}
	return dst
}

const positionRecordSize = 5

func decodeMotorPositions(b []byte) MotorPositions {
	out := make(MotorPositions, 0, len(b)/positionRecordSize)
	for off := 0; off+positionRecordSize <= len(b); off += positionRecordSize {
		out = append(out, decodeMotorPosition(b[off:]))
	}
	return out
}

// SensorRead asks for one temperature sensor.
type SensorRead struct {
	Sensor uint8
}

func (SensorRead) Command() Command             { return CmdSensorReadTemp }
func (s SensorRead) AppendTo(dst []byte) []byte { return append(dst, s.Sensor) }

// Temperature is a single sensor reading in degrees Celsius.
type Temperature struct {
	Celsius float32
	Sensor  uint8
}

func (Temperature) Command() Command { return CmdSensorReadTemp }

func (t Temperature) AppendTo(dst []byte) []byte {
	return AppendFloat32(append(dst, t.Sensor), t.Celsius)
}

func decodeTemperature(b []byte) Temperature {
	return Temperature{Sensor: b[0], Celsius: Float32(b[1:5])}
}

// Temperatures is the read-all reply.
type Temperatures []Temperature

func (Temperatures) Command() Command { return CmdSensorReadAll }

func (t Temperatures) AppendTo(dst []byte) []byte {
	for _, r := range t {
		dst = r.AppendTo(dst)
	}
	return dst
}

const temperatureRecordSize = 5

func decodeTemperatures(b []byte) Temperatures {
	out := make(Temperatures, 0, len(b)/temperatureRecordSize)
	for off := 0; off+temperatureRecordSize <= len(b); off += temperatureRecordSize {
		out = append(out, decodeTemperature(b[off:]))
	}
	return out
}

// SensorConfig sets the sampling interval of a sensor. The wire field is
// milliseconds in a uint16, so intervals above 65.535s are clamped.
type SensorConfig struct {
	Interval time.Duration
	Sensor   uint8
}

func (SensorConfig) Command() Command { return CmdSensorConfig }

func (s SensorConfig) AppendTo(dst []byte) []byte {
	ms := s.Interval.Milliseconds()
	switch {
	case ms < 0:
		ms = 0
	case ms > math.MaxUint16:
		ms = math.MaxUint16
	}
	return AppendUint16(append(dst, s.Sensor), uint16(ms))
}

func decodeSensorConfig(b []byte) SensorConfig {
	return SensorConfig{Sensor: b[0], Interval: time.Duration(Uint16(b[1:3])) * time.Millisecond}
}

// DeviceControl switches a peripheral. When Cmd is zero the command is
// derived from the device id.
type DeviceControl struct {
	Cmd    Command
	Device DeviceID
	State  DeviceState
}

func (d DeviceControl) Command() Command {
	if d.Cmd != 0 {
		return d.Cmd
	}
	cmd, _ := d.Device.ControlCommand()
	return cmd
}

func (d DeviceControl) AppendTo(dst []byte) []byte {
	return append(dst, byte(d.Device), byte(d.State))
}

// DeviceQuery asks for the state of a peripheral.
type DeviceQuery struct {
	Device DeviceID
}

func (DeviceQuery) Command() Command             { return CmdDevGetState }
func (d DeviceQuery) AppendTo(dst []byte) []byte { return append(dst, byte(d.Device)) }

// DeviceStatus is the get-state reply.
type DeviceStatus struct {
	Device DeviceID
	State  DeviceState
}

func (DeviceStatus) Command() Command { return CmdDevGetState }

func (d DeviceStatus) AppendTo(dst []byte) []byte {
	return append(dst, byte(d.Device), byte(d.State))
}

// SetRTC sets the MCU clock. Time travels as unix seconds.
type SetRTC struct {
	Time time.Time
}

func (SetRTC) Command() Command             { return CmdSetRTC }
func (s SetRTC) AppendTo(dst []byte) []byte { return AppendUint32(dst, uint32(s.Time.Unix())) }

// RTCTime is the get-rtc reply.
type RTCTime struct {
	Time time.Time
}

func (RTCTime) Command() Command             { return CmdGetRTC }
func (r RTCTime) AppendTo(dst []byte) []byte { return AppendUint32(dst, uint32(r.Time.Unix())) }

func decodeUnix(b []byte) time.Time {
	return time.Unix(int64(Uint32(b)), 0).UTC()
}

// TempControl drives closed-loop heating. Target is degrees Celsius and is
// carried in tenths of a degree as an int16.
type TempControl struct {
	Target float32
	Heater DeviceID
	Enable bool
}

func (TempControl) Command() Command { return CmdTempCtrl }

func (t TempControl) AppendTo(dst []byte) []byte {
	enable := byte(0)
	if t.Enable {
		enable = 1
	}
	tenths := math.Round(float64(t.Target) * 10)
	switch {
	case tenths > math.MaxInt16:
		tenths = math.MaxInt16
	case tenths < math.MinInt16:
		tenths = math.MinInt16
	}
	return AppendInt16(append(dst, byte(t.Heater), enable), int16(tenths))
}

func decodeTempControl(b []byte) TempControl {
	return TempControl{
		Heater: DeviceID(b[0]),
		Enable: b[1] != 0,
		Target: float32(Int16(b[2:4])) / 10,
	}
}

// FirmwareInfo is the version reply.
type FirmwareInfo struct {
	Protocol uint8
	Major    uint8
	Minor    uint8
	Patch    uint8
}

func (FirmwareInfo) Command() Command { return CmdVersion }

func (f FirmwareInfo) AppendTo(dst []byte) []byte {
	return append(dst, f.Protocol, f.Major, f.Minor, f.Patch)
}

func (f FirmwareInfo) String() string {
	return fmt.Sprintf("%d.%d.%d (protocol 0x%02X)", f.Major, f.Minor, f.Patch, f.Protocol)
}

// PowerStatus is the query-power reply.
type PowerStatus struct {
	Millivolts uint16
	Milliamps  uint16
}

func (PowerStatus) Command() Command { return CmdQueryPower }

func (p PowerStatus) AppendTo(dst []byte) []byte {
	return AppendUint16(AppendUint16(dst, p.Millivolts), p.Milliamps)
}

// SystemStatus is the query-status reply.
type SystemStatus struct {
	Uptime time.Duration
	State  uint8
}

func (SystemStatus) Command() Command { return CmdQueryStatus }

func (s SystemStatus) AppendTo(dst []byte) []byte {
	return AppendUint32(append(dst, s.State), uint32(s.Uptime/time.Second))
}

// NetworkStatus is the query-network reply.
type NetworkStatus struct {
	Link uint8
	RSSI int8
}

func (NetworkStatus) Command() Command { return CmdQueryNetwork }

func (n NetworkStatus) AppendTo(dst []byte) []byte {
	return append(dst, n.Link, byte(n.RSSI))
}

func secondsToDuration(s uint32) time.Duration {
	return time.Duration(s) * time.Second
}
