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
	"testing"

	"github.com/ZaparooProject/go-vdm/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    frame.Command
		wantErr bool
	}{
		{in: "ping", want: frame.CmdPing},
		{in: "motor-rotate", want: frame.CmdMotorRotate},
		{in: "SENSOR-READ-ALL", want: frame.CmdSensorReadAll},
		{in: "0x4001", want: frame.CmdSensorReadTemp},
		{in: "0xF003", want: frame.CmdDebugBase + 3},
		{in: "spin", wantErr: true},
		{in: "0x10000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseCommand(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	got, err := parseType("nack")
	require.NoError(t, err)
	assert.Equal(t, frame.TypeNack, got)

	got, err = parseType("0x85")
	require.NoError(t, err)
	assert.Equal(t, frame.Type(0x85), got)

	_, err = parseType("reply")
	assert.Error(t, err)
}

func TestParseNames(t *testing.T) {
	t.Parallel()

	m, err := parseMotor("Y")
	require.NoError(t, err)
	assert.Equal(t, frame.MotorY, m)
	_, err = parseMotor("w")
	assert.Error(t, err)

	d, err := parseDevice("pwm-light")
	require.NoError(t, err)
	assert.Equal(t, frame.DevicePWMLight, d)
	_, err = parseDevice("toaster")
	assert.Error(t, err)

	s, err := parseState("blink")
	require.NoError(t, err)
	assert.Equal(t, frame.StateBlink, s)
	_, err = parseState("dim")
	assert.Error(t, err)
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    []byte
		wantErr bool
	}{
		{name: "plain", args: []string{"AA5510"}, want: []byte{0xAA, 0x55, 0x10}},
		{name: "split args", args: []string{"AA", "55", "10"}, want: []byte{0xAA, 0x55, 0x10}},
		{name: "prefixed", args: []string{"0xaa55"}, want: []byte{0xAA, 0x55}},
		{name: "colons", args: []string{"aa:55:10"}, want: []byte{0xAA, 0x55, 0x10}},
		{name: "odd length", args: []string{"AA5"}, wantErr: true},
		{name: "not hex", args: []string{"zz"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseHex(tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
