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

// MotorID selects a motor axis.
type MotorID uint8

const (
	MotorX   MotorID = 0x01
	MotorY   MotorID = 0x02
	MotorZ   MotorID = 0x03
	MotorAll MotorID = 0xFF // wildcard, addresses every motor
)

func (m MotorID) String() string {
	switch m {
	case MotorX:
		return "X"
	case MotorY:
		return "Y"
	case MotorZ:
		return "Z"
	case MotorAll:
		return "all"
	default:
		return fmt.Sprintf("motor(0x%02X)", uint8(m))
	}
}

// Valid reports whether m is one of the defined motor ids.
func (m MotorID) Valid() bool {
	switch m {
	case MotorX, MotorY, MotorZ, MotorAll:
		return true
	}
	return false
}

// DeviceID selects a switchable peripheral.
type DeviceID uint8

const (
	DeviceHeater1  DeviceID = 0x01
	DeviceHeater2  DeviceID = 0x02
	DeviceFan1     DeviceID = 0x10
	DeviceLED      DeviceID = 0x20
	DeviceLaser    DeviceID = 0x30
	DevicePWMLight DeviceID = 0x40
)

func (d DeviceID) String() string {
	switch d {
	case DeviceHeater1:
		return "heater1"
	case DeviceHeater2:
		return "heater2"
	case DeviceFan1:
		return "fan1"
	case DeviceLED:
		return "led"
	case DeviceLaser:
		return "laser"
	case DevicePWMLight:
		return "pwm-light"
	default:
		return fmt.Sprintf("device(0x%02X)", uint8(d))
	}
}

// Valid reports whether d is one of the defined device ids.
func (d DeviceID) Valid() bool {
	switch d {
	case DeviceHeater1, DeviceHeater2, DeviceFan1, DeviceLED, DeviceLaser, DevicePWMLight:
		return true
	}
	return false
}

// ControlCommand returns the device-group command that switches d.
func (d DeviceID) ControlCommand() (Command, bool) {
	switch d {
	case DeviceHeater1, DeviceHeater2:
		return CmdDevHeater, true
	case DeviceFan1:
		return CmdDevFan, true
	case DeviceLED:
		return CmdDevLED, true
	case DeviceLaser:
		return CmdDevLaser, true
	case DevicePWMLight:
		return CmdDevPWMLight, true
	}
	return 0, false
}

// DeviceState is the switch state of a peripheral.
type DeviceState uint8

const (
	StateOff   DeviceState = 0x00
	StateOn    DeviceState = 0x01
	StateBlink DeviceState = 0x02
)

func (s DeviceState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOn:
		return "on"
	case StateBlink:
		return "blink"
	default:
		return fmt.Sprintf("state(0x%02X)", uint8(s))
	}
}

// ErrorCode is the reason carried by a Nack frame.
type ErrorCode uint8

const (
	ErrCodeUnknownCommand     ErrorCode = 0x01
	ErrCodeInvalidParam       ErrorCode = 0x02
	ErrCodeDeviceBusy         ErrorCode = 0x03
	ErrCodeNotReady           ErrorCode = 0x04
	ErrCodeExecFailed         ErrorCode = 0x05
	ErrCodeTimeout            ErrorCode = 0x06
	ErrCodeCRCError           ErrorCode = 0x07
	ErrCodeVersionUnsupported ErrorCode = 0x08
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCodeUnknownCommand:
		return "unknown command"
	case ErrCodeInvalidParam:
		return "invalid parameter"
	case ErrCodeDeviceBusy:
		return "device busy"
	case ErrCodeNotReady:
		return "not ready"
	case ErrCodeExecFailed:
		return "execution failed"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeCRCError:
		return "crc error"
	case ErrCodeVersionUnsupported:
		return "version unsupported"
	default:
		return fmt.Sprintf("error(0x%02X)", uint8(e))
	}
}

// Valid reports whether e is one of the defined error codes.
func (e ErrorCode) Valid() bool {
	return e >= ErrCodeUnknownCommand && e <= ErrCodeVersionUnsupported
}
