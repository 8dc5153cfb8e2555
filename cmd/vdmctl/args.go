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

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-vdm/frame"
)

var motorNames = map[string]frame.MotorID{
	"x":   frame.MotorX,
	"y":   frame.MotorY,
	"z":   frame.MotorZ,
	"all": frame.MotorAll,
}

var deviceNames = map[string]frame.DeviceID{
	"heater1":   frame.DeviceHeater1,
	"heater2":   frame.DeviceHeater2,
	"fan1":      frame.DeviceFan1,
	"led":       frame.DeviceLED,
	"laser":     frame.DeviceLaser,
	"pwm-light": frame.DevicePWMLight,
}

var stateNames = map[string]frame.DeviceState{
	"off":   frame.StateOff,
	"on":    frame.StateOn,
	"blink": frame.StateBlink,
}

var typeNames = map[string]frame.Type{
	"request":  frame.TypeRequest,
	"response": frame.TypeResponse,
	"notify":   frame.TypeNotify,
	"ack":      frame.TypeAck,
	"nack":     frame.TypeNack,
}

func parseMotor(s string) (frame.MotorID, error) {
	if m, ok := motorNames[strings.ToLower(s)]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown motor %q (want x, y, z or all)", s)
}

func parseDevice(s string) (frame.DeviceID, error) {
	if d, ok := deviceNames[strings.ToLower(s)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown device %q", s)
}

func parseState(s string) (frame.DeviceState, error) {
	if st, ok := stateNames[strings.ToLower(s)]; ok {
		return st, nil
	}
	return 0, fmt.Errorf("unknown state %q (want on, off or blink)", s)
}

// parseType accepts a frame type name or a number such as 0x80
func parseType(s string) (frame.Type, error) {
	if t, ok := typeNames[strings.ToLower(s)]; ok {
		return t, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown frame type %q", s)
	}
	return frame.Type(v), nil
}

// parseCommand accepts a catalog name such as "motor-rotate" or a code
// such as 0x3001
func parseCommand(s string) (frame.Command, error) {
	for _, spec := range frame.Commands() {
		if strings.EqualFold(spec.Name, s) {
			return spec.Code, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	return frame.Command(v), nil
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint8(v), nil
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return float32(v), nil
}

// parseHex decodes hex bytes, ignoring spaces, colons and a 0x prefix
func parseHex(args ...string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
