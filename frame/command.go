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

// Group is the high byte of a command code and names a subsystem.
type Group uint8

const (
	GroupSystem Group = 0x00
	GroupQuery  Group = 0x01
	GroupMotor  Group = 0x30
	GroupSensor Group = 0x40
	GroupDevice Group = 0x50
	GroupConfig Group = 0x60 // reserved, no commands defined yet
	GroupDebug  Group = 0xF0
)

func (g Group) String() string {
	switch g {
	case GroupSystem:
		return "system"
	case GroupQuery:
		return "query"
	case GroupMotor:
		return "motor"
	case GroupSensor:
		return "sensor"
	case GroupDevice:
		return "device"
	case GroupConfig:
		return "config"
	case GroupDebug:
		return "debug"
	default:
		return fmt.Sprintf("group(0x%02X)", uint8(g))
	}
}

// Command is a 16-bit command code: high byte group, low byte id.
type Command uint16

// NewCommand joins a group and an id into a command code.
func NewCommand(g Group, id uint8) Command {
	return Command(uint16(g)<<8 | uint16(id))
}

// Group returns the subsystem the command belongs to.
func (c Command) Group() Group { return Group(c >> 8) }

// ID returns the command id within its group.
func (c Command) ID() uint8 { return uint8(c) }

func (c Command) String() string {
	if spec, ok := Lookup(c); ok {
		return spec.Name
	}
	return fmt.Sprintf("cmd(0x%04X)", uint16(c))
}

// System commands
const (
	CmdPing     Command = 0x0001
	CmdVersion  Command = 0x0002
	CmdReset    Command = 0x0003
	CmdSleep    Command = 0x0004
	CmdWakeup   Command = 0x0005
	CmdSetRTC   Command = 0x0010
	CmdGetRTC   Command = 0x0011
	CmdTempCtrl Command = 0x0020
)

// Query commands
const (
	CmdQueryPower   Command = 0x0101
	CmdQueryStatus  Command = 0x0102
	CmdQueryNetwork Command = 0x0103
)

// Motor commands
const (
	CmdMotorRotate    Command = 0x3001
	CmdMotorEnable    Command = 0x3002
	CmdMotorDisable   Command = 0x3003
	CmdMotorStop      Command = 0x3004
	CmdMotorSetOrigin Command = 0x3005
	CmdMotorGetPos    Command = 0x3006
	CmdMotorSetVel    Command = 0x3007
	CmdMotorRotateRel Command = 0x3008
	CmdMotorGetAll    Command = 0x3010
)

// Sensor commands
const (
	CmdSensorReadTemp Command = 0x4001
	CmdSensorReadAll  Command = 0x4002
	CmdSensorConfig   Command = 0x4010
)

// Device control commands
const (
	CmdDevHeater   Command = 0x5001
	CmdDevFan      Command = 0x5002
	CmdDevLED      Command = 0x5003
	CmdDevLaser    Command = 0x5004
	CmdDevPWMLight Command = 0x5005
	CmdDevGetState Command = 0x5010
)

// Debug commands. Every code in the group is accepted with an opaque body.
const (
	CmdDebugBase Command = 0xF000
)
