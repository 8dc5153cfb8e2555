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
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, typ Type, seq uint8, cmd Command, payload []byte) []byte {
	t.Helper()
	out, err := Build(typ, seq, cmd, payload)
	require.NoError(t, err)
	return out
}

func TestStreamByteAtATime(t *testing.T) {
	t.Parallel()
	f1 := mustBuild(t, TypeResponse, 1, CmdVersion, []byte{0x10, 1, 0, 0})
	f2 := mustBuild(t, TypeAck, 2, CmdMotorStop, nil)
	wire := append(bytes.Clone(f1), f2...)

	s := NewStream(0)
	var got []Frame
	for _, b := range wire {
		_, _ = s.Write([]byte{b})
		for {
			f, ok := s.Next()
			if !ok {
				break
			}
			got = append(got, f)
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, CmdVersion, got[0].Cmd)
	assert.Equal(t, []byte{0x10, 1, 0, 0}, got[0].Payload)
	assert.Equal(t, TypeAck, got[1].Type)
	assert.Zero(t, s.Discarded())
	assert.Zero(t, s.Buffered())
}

func TestStreamResync(t *testing.T) {
	t.Parallel()
	good := mustBuild(t, TypeResponse, 9, CmdMotorGetPos, []byte{0x01, 0, 0, 0, 0})

	tests := []struct {
		name      string
		noise     []byte
		discarded int
		oversized int
	}{
		{name: "leading garbage", noise: []byte{0x00, 0x13, 0x37}, discarded: 3},
		{name: "lone first sync byte", noise: []byte{0xAA, 0x00}, discarded: 2},
		{name: "doubled first sync byte", noise: []byte{0xAA}, discarded: 1},
		{
			name:      "header with oversized length",
			noise:     []byte{0xAA, 0x55, 0x10, 0x00, 0x00, 0x00, 0x01, 0xFF, 0xFF},
			discarded: 9,
			oversized: 1,
		},
		{
			name:      "foreign version with oversized length",
			noise:     []byte{0xAA, 0x55, 0x20, 0x00, 0x00, 0x00, 0x01, 0xFF, 0xFF},
			discarded: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewStream(1024)
			_, _ = s.Write(tt.noise)
			_, _ = s.Write(good)

			f, ok := s.Next()
			require.True(t, ok)
			assert.Equal(t, uint8(9), f.Seq)
			assert.NoError(t, f.Verify())
			assert.Equal(t, tt.discarded, s.Discarded())
			assert.Equal(t, tt.oversized, s.Oversized())

			_, ok = s.Next()
			assert.False(t, ok)
		})
	}
}

func TestStreamWaitsForPartialFrame(t *testing.T) {
	t.Parallel()
	full := mustBuild(t, TypeResponse, 1, CmdSensorReadTemp, []byte{1, 0, 0, 0, 0})

	s := NewStream(0)
	_, _ = s.Write(full[:12])
	_, ok := s.Next()
	assert.False(t, ok)
	assert.Equal(t, 12, s.Buffered())

	_, _ = s.Write(full[12:])
	f, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, CmdSensorReadTemp, f.Cmd)

	s.Reset()
	assert.Zero(t, s.Buffered())
}

func TestStreamSkipAbandonsPartialFrame(t *testing.T) {
	t.Parallel()
	good := mustBuild(t, TypeAck, 4, CmdPing, nil)

	s := NewStream(4096)
	// Plausible header declaring a 3000 byte payload that never arrives
	_, _ = s.Write([]byte{0xAA, 0x55, 0x10, 0x00, 0x00, 0x00, 0x01, 0x0B, 0xB8})
	_, _ = s.Write(good)

	_, ok := s.Next()
	require.False(t, ok)
	assert.Equal(t, 9+len(good), s.Buffered())

	s.Skip(1)
	f, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(4), f.Seq)
	assert.Equal(t, 9, s.Discarded())
	assert.Zero(t, s.Buffered())

	s.Skip(10)
	assert.Equal(t, 9, s.Discarded())
}

func TestStreamPayloadSurvivesWrites(t *testing.T) {
	t.Parallel()
	s := NewStream(0)
	_, _ = s.Write(mustBuild(t, TypeNotify, 0, CmdSensorReadAll, []byte{1, 2, 3, 4, 5}))
	f, ok := s.Next()
	require.True(t, ok)

	_, _ = s.Write(bytes.Repeat([]byte{0xEE}, 32))
	_, _ = s.Next()
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, f.Payload)
}

func TestSplitScanner(t *testing.T) {
	t.Parallel()
	var wire bytes.Buffer
	wire.Write([]byte{0x01, 0x02})
	wire.Write(mustBuild(t, TypeRequest, 0, CmdPing, nil))
	wire.Write([]byte{0xAA, 0x00})
	wire.Write(mustBuild(t, TypeRequest, 1, CmdReset, nil))
	wire.Write([]byte{0xAA, 0x55, 0x10}) // truncated tail

	sc := bufio.NewScanner(&wire)
	sc.Split(Split)

	var cmds []Command
	for sc.Scan() {
		f, _, err := Decode(sc.Bytes())
		require.NoError(t, err)
		require.NoError(t, f.Verify())
		cmds = append(cmds, f.Cmd)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []Command{CmdPing, CmdReset}, cmds)
}
