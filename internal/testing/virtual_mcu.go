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
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ZaparooProject/go-vdm/frame"
)

// Test fixtures
var (
	TestFirmware = frame.FirmwareInfo{Protocol: frame.Version, Major: 1, Minor: 2, Patch: 3}
	TestClock    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

// VirtualMotor is the simulated state of one motor axis
type VirtualMotor struct {
	Angle    float32
	Velocity float32
	Enabled  bool
}

// VirtualMCU simulates the command side of a VDM MCU. Handle answers one
// request frame the way the firmware would, so it can be plugged into a
// mock transport.
type VirtualMCU struct {
	motors    map[frame.MotorID]*VirtualMotor
	devices   map[frame.DeviceID]frame.DeviceState
	nacks     map[frame.Command]frame.ErrorCode
	calls     map[frame.Command]int
	intervals map[uint8]time.Duration
	clock     time.Time
	sensors   []float32
	Firmware  frame.FirmwareInfo
	Power     frame.PowerStatus
	Network   frame.NetworkStatus
	uptime    time.Duration
	mu        sync.Mutex
	asleep    bool
}

// NewVirtualMCU creates an MCU with three motors at 0°, two sensors and
// every peripheral off
func NewVirtualMCU() *VirtualMCU {
	v := &VirtualMCU{
		Firmware:  TestFirmware,
		Power:     frame.PowerStatus{Millivolts: 12000, Milliamps: 350},
		Network:   frame.NetworkStatus{Link: 1, RSSI: -60},
		clock:     TestClock,
		sensors:   []float32{21.5, 24.0},
		nacks:     make(map[frame.Command]frame.ErrorCode),
		calls:     make(map[frame.Command]int),
		intervals: make(map[uint8]time.Duration),
	}
	v.resetLocked()
	return v
}

func (v *VirtualMCU) resetLocked() {
	v.motors = map[frame.MotorID]*VirtualMotor{
		frame.MotorX: {Velocity: 10},
		frame.MotorY: {Velocity: 10},
		frame.MotorZ: {Velocity: 10},
	}
	v.devices = map[frame.DeviceID]frame.DeviceState{
		frame.DeviceHeater1:  frame.StateOff,
		frame.DeviceHeater2:  frame.StateOff,
		frame.DeviceFan1:     frame.StateOff,
		frame.DeviceLED:      frame.StateOff,
		frame.DeviceLaser:    frame.StateOff,
		frame.DevicePWMLight: frame.StateOff,
	}
	v.asleep = false
	v.uptime = 0
}

// SetNack makes every request for cmd fail with code; code 0 clears it
func (v *VirtualMCU) SetNack(cmd frame.Command, code frame.ErrorCode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if code == 0 {
		delete(v.nacks, cmd)
		return
	}
	v.nacks[cmd] = code
}

// SetTemperature sets the reading of sensor, growing the sensor list
func (v *VirtualMCU) SetTemperature(sensor uint8, celsius float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for int(sensor) >= len(v.sensors) {
		v.sensors = append(v.sensors, 0)
	}
	v.sensors[sensor] = celsius
}

// Motor returns a snapshot of a motor's state
func (v *VirtualMCU) Motor(id frame.MotorID) (VirtualMotor, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.motors[id]
	if !ok {
		return VirtualMotor{}, false
	}
	return *m, true
}

// DeviceState returns the state of a peripheral
func (v *VirtualMCU) DeviceState(id frame.DeviceID) frame.DeviceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.devices[id]
}

// Clock returns the simulated real-time clock
func (v *VirtualMCU) Clock() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clock
}

// SensorInterval returns the sampling interval configured for sensor
func (v *VirtualMCU) SensorInterval(sensor uint8) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.intervals[sensor]
}

// Asleep reports whether the MCU has been put to sleep
func (v *VirtualMCU) Asleep() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.asleep
}

// Calls returns how many valid requests for cmd were handled
func (v *VirtualMCU) Calls(cmd frame.Command) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[cmd]
}

// Handle answers one request frame
func (v *VirtualMCU) Handle(req frame.Frame) [][]byte {
	if req.Type != frame.TypeRequest {
		return nil
	}
	if req.Verify() != nil {
		return [][]byte{BuildNack(req.Seq, req.Cmd, frame.ErrCodeCRCError)}
	}
	if req.CheckVersion() != nil {
		return [][]byte{BuildNack(req.Seq, req.Cmd, frame.ErrCodeVersionUnsupported)}
	}

	p, err := frame.ParseRequest(req.Cmd, req.Payload)
	switch {
	case errors.Is(err, frame.ErrUnknownCommand):
		return [][]byte{BuildNack(req.Seq, req.Cmd, frame.ErrCodeUnknownCommand)}
	case err != nil:
		return [][]byte{BuildNack(req.Seq, req.Cmd, frame.ErrCodeInvalidParam)}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[req.Cmd]++
	v.uptime += time.Second

	if code, ok := v.nacks[req.Cmd]; ok {
		return [][]byte{BuildNack(req.Seq, req.Cmd, code)}
	}
	if v.asleep && req.Cmd != frame.CmdWakeup && req.Cmd != frame.CmdPing {
		return [][]byte{BuildNack(req.Seq, req.Cmd, frame.ErrCodeNotReady)}
	}

	reply, code := v.execute(p)
	switch {
	case code != 0:
		return [][]byte{BuildNack(req.Seq, req.Cmd, code)}
	case reply == nil:
		return [][]byte{BuildAck(req.Seq, req.Cmd)}
	default:
		return [][]byte{BuildResponse(req.Seq, req.Cmd, reply.AppendTo(nil))}
	}
}

// execute applies a request and returns the response body, nil for a bare
// Ack, or a rejection code.
func (v *VirtualMCU) execute(p frame.Payload) (frame.Payload, frame.ErrorCode) {
	switch p := p.(type) {
	case frame.Bare:
		return v.executeBare(frame.Command(p))
	case frame.SetRTC:
		v.clock = p.Time
	case frame.TempControl:
		state := frame.StateOff
		if p.Enable {
			state = frame.StateOn
		}
		v.devices[p.Heater] = state
	case frame.MotorRotate:
		return nil, v.rotate(p)
	case frame.MotorTarget:
		return v.motorTarget(p)
	case frame.MotorVelocity:
		return nil, v.eachMotor(p.Motor, func(m *VirtualMotor) { m.Velocity = p.Velocity })
	case frame.SensorRead:
		if int(p.Sensor) >= len(v.sensors) {
			return nil, frame.ErrCodeInvalidParam
		}
		return frame.Temperature{Sensor: p.Sensor, Celsius: v.sensors[p.Sensor]}, 0
	case frame.SensorConfig:
		if int(p.Sensor) >= len(v.sensors) {
			return nil, frame.ErrCodeInvalidParam
		}
		v.intervals[p.Sensor] = p.Interval
	case frame.DeviceControl:
		cmd, ok := p.Device.ControlCommand()
		if !ok || cmd != p.Cmd || p.State > frame.StateBlink {
			return nil, frame.ErrCodeInvalidParam
		}
		v.devices[p.Device] = p.State
	case frame.DeviceQuery:
		state, ok := v.devices[p.Device]
		if !ok {
			return nil, frame.ErrCodeInvalidParam
		}
		return frame.DeviceStatus{Device: p.Device, State: state}, 0
	case frame.Raw:
		// Debug commands echo their body.
		return frame.Raw{Cmd: p.Cmd, Data: p.Data}, 0
	default:
		return nil, frame.ErrCodeUnknownCommand
	}
	return nil, 0
}

func (v *VirtualMCU) executeBare(cmd frame.Command) (frame.Payload, frame.ErrorCode) {
	switch cmd {
	case frame.CmdPing:
	case frame.CmdVersion:
		return v.Firmware, 0
	case frame.CmdReset:
		v.resetLocked()
	case frame.CmdSleep:
		v.asleep = true
	case frame.CmdWakeup:
		v.asleep = false
	case frame.CmdGetRTC:
		return frame.RTCTime{Time: v.clock}, 0
	case frame.CmdQueryPower:
		return v.Power, 0
	case frame.CmdQueryStatus:
		return frame.SystemStatus{State: 1, Uptime: v.uptime}, 0
	case frame.CmdQueryNetwork:
		return v.Network, 0
	case frame.CmdMotorGetAll:
		out := make(frame.MotorPositions, 0, len(v.motors))
		for _, id := range v.motorIDs() {
			out = append(out, frame.MotorPosition{Motor: id, Angle: v.motors[id].Angle})
		}
		return out, 0
	case frame.CmdSensorReadAll:
		out := make(frame.Temperatures, 0, len(v.sensors))
		for i, c := range v.sensors {
			out = append(out, frame.Temperature{Sensor: uint8(i), Celsius: c})
		}
		return out, 0
	default:
		return nil, frame.ErrCodeUnknownCommand
	}
	return nil, 0
}

func (v *VirtualMCU) rotate(p frame.MotorRotate) frame.ErrorCode {
	for _, id := range v.targets(p.Motor) {
		if !v.motors[id].Enabled {
			return frame.ErrCodeNotReady
		}
	}
	return v.eachMotor(p.Motor, func(m *VirtualMotor) {
		if p.Relative {
			m.Angle += p.Angle
		} else {
			m.Angle = p.Angle
		}
		if p.Velocity > 0 {
			m.Velocity = p.Velocity
		}
	})
}

func (v *VirtualMCU) motorTarget(p frame.MotorTarget) (frame.Payload, frame.ErrorCode) {
	switch p.Cmd {
	case frame.CmdMotorEnable:
		return nil, v.eachMotor(p.Motor, func(m *VirtualMotor) { m.Enabled = true })
	case frame.CmdMotorDisable:
		return nil, v.eachMotor(p.Motor, func(m *VirtualMotor) { m.Enabled = false })
	case frame.CmdMotorStop:
		return nil, v.eachMotor(p.Motor, func(*VirtualMotor) {})
	case frame.CmdMotorSetOrigin:
		return nil, v.eachMotor(p.Motor, func(m *VirtualMotor) { m.Angle = 0 })
	case frame.CmdMotorGetPos:
		m, ok := v.motors[p.Motor]
		if !ok {
			return nil, frame.ErrCodeInvalidParam
		}
		return frame.MotorPosition{Motor: p.Motor, Angle: m.Angle}, 0
	default:
		return nil, frame.ErrCodeUnknownCommand
	}
}

func (v *VirtualMCU) eachMotor(id frame.MotorID, fn func(*VirtualMotor)) frame.ErrorCode {
	targets := v.targets(id)
	if len(targets) == 0 {
		return frame.ErrCodeInvalidParam
	}
	for _, t := range targets {
		fn(v.motors[t])
	}
	return 0
}

func (v *VirtualMCU) targets(id frame.MotorID) []frame.MotorID {
	if id == frame.MotorAll {
		return v.motorIDs()
	}
	if _, ok := v.motors[id]; ok {
		return []frame.MotorID{id}
	}
	return nil
}

func (v *VirtualMCU) motorIDs() []frame.MotorID {
	ids := make([]frame.MotorID, 0, len(v.motors))
	for id := range v.motors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
