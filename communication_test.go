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

package vdm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-vdm/frame"
)

func TestDevice_Debug(t *testing.T) {
	t.Parallel()

	large := make([]byte, 200)
	for i := range large {
		large[i] = byte(i % 256)
	}

	tests := []struct {
		name  string
		input []byte
		id    uint8
	}{
		{name: "Echo_Short", id: 0x01, input: []byte{0xDE, 0xAD}},
		{name: "Empty_Input", id: 0x02, input: []byte{}},
		{name: "Large_Input", id: 0x7F, input: large},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock, _ := newTestDevice(t)

			out, err := device.Debug(tt.id, tt.input)
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), len(out))
			if len(tt.input) > 0 {
				assert.Equal(t, tt.input, out)
			}

			reqs := mock.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, frame.NewCommand(frame.GroupDebug, tt.id), reqs[0].Cmd)
		})
	}
}

func TestDevice_SendRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setup          func(*MockTransport)
		payload        []byte
		expected       []byte
		cmd            frame.Command
		errorSubstring string
	}{
		{
			name:     "Query_With_Response",
			cmd:      frame.CmdMotorGetPos,
			payload:  []byte{byte(frame.MotorZ)},
			expected: frame.MotorPosition{Motor: frame.MotorZ}.AppendTo(nil),
		},
		{
			name:     "Command_With_Ack",
			cmd:      frame.CmdMotorEnable,
			payload:  []byte{byte(frame.MotorAll)},
			expected: nil,
		},
		{
			name:           "Nack_Reported",
			cmd:            frame.CmdSensorReadTemp,
			payload:        []byte{0x09},
			errorSubstring: "sensor-read-temp: sensor-read-temp rejected: invalid parameter",
		},
		{
			name: "Write_Failure",
			setup: func(m *MockTransport) {
				m.SetWriteError(ErrTransportClosed)
			},
			cmd:            frame.CmdPing,
			errorSubstring: "transport closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock, _ := newTestDevice(t)
			if tt.setup != nil {
				tt.setup(mock)
			}

			out, err := device.SendRaw(tt.cmd, tt.payload)
			if tt.errorSubstring != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorSubstring)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.expected), len(out))
			if len(tt.expected) > 0 {
				assert.Equal(t, tt.expected, out)
			}
		})
	}
}

func TestDevice_SendRawContext_Cancelled(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.SetHandler(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := device.SendRawContext(ctx, frame.CmdPing, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDevice_DebugContext_Cancelled(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := device.DebugContext(ctx, 0x01, []byte{0x01})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Requests())
}
