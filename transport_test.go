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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/ZaparooProject/go-vdm/internal/testing"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    1 * time.Microsecond, // Minimal delay for fast tests
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.0, // No jitter for predictable timing
		RetryTimeout:      100 * time.Millisecond,
	}
}

// flakyWriter fails the first n writes with err
type flakyWriter struct {
	*MockTransport
	err      error
	failures atomic.Int32
	writes   atomic.Int32
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	f.writes.Add(1)
	if f.failures.Add(-1) >= 0 {
		return 0, f.err
	}
	return f.MockTransport.Write(p)
}

// TestTransportWithRetry_NewTransportWithRetry tests the creation of TransportWithRetry wrapper
func TestTransportWithRetry_NewTransportWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config   *RetryConfig
		expected *RetryConfig
		name     string
	}{
		{
			name:     "Default config when nil provided",
			config:   nil,
			expected: DefaultRetryConfig(),
		},
		{
			name:     "Custom config preserved",
			config:   fastRetryConfig(5),
			expected: fastRetryConfig(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockTransport := NewMockTransport()
			wrapper := NewTransportWithRetry(mockTransport, tt.config)

			assert.NotNil(t, wrapper)
			assert.Equal(t, mockTransport, wrapper.transport)
			assert.Equal(t, tt.expected, wrapper.config)
		})
	}
}

// TestTransportWithRetry_Write tests the retry logic around writes
func TestTransportWithRetry_Write(t *testing.T) {
	t.Parallel()

	ping := testutil.BuildAck(0, 0x0001)

	tests := []struct {
		err           error
		config        *RetryConfig
		name          string
		expectedError string
		failures      int32
		expectedCalls int32
	}{
		{
			name:          "Success on first attempt",
			config:        fastRetryConfig(3),
			expectedCalls: 1,
		},
		{
			name:          "Success after retryable failures",
			err:           ErrTransportWrite,
			failures:      2,
			config:        fastRetryConfig(3),
			expectedCalls: 3,
		},
		{
			name:          "Retryable error exhausts attempts",
			err:           NewTimeoutError("write", "test"),
			failures:      5,
			config:        fastRetryConfig(2),
			expectedError: "timeout",
			expectedCalls: 2,
		},
		{
			name:          "Non-retryable error fails immediately",
			err:           errors.New("permission denied"),
			failures:      5,
			config:        fastRetryConfig(3),
			expectedError: "permission denied",
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flaky := &flakyWriter{MockTransport: NewMockTransport(), err: tt.err}
			flaky.failures.Store(tt.failures)
			wrapper := NewTransportWithRetry(flaky, tt.config)

			n, err := wrapper.Write(ping)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, len(ping), n)
				assert.Len(t, flaky.Written(), 1)
			}
			assert.Equal(t, tt.expectedCalls, flaky.writes.Load())
		})
	}
}

func TestTransportWithRetry_ReadPassesThrough(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	wrapper := NewTransportWithRetry(mock, fastRetryConfig(3))

	want := testutil.BuildAck(3, 0x0001)
	mock.Inject(want)

	buf := make([]byte, 64)
	n, err := wrapper.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, want, buf[:n])

	// An empty read is a timeout, not an error
	n, err = wrapper.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.SetReadError(ErrTransportRead)
	_, err = wrapper.Read(buf)
	require.ErrorIs(t, err, ErrTransportRead)
}

// TestTransportWithRetry_Delegation tests type, tuning and connection delegation
func TestTransportWithRetry_Delegation(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, DefaultRetryConfig())

	assert.Equal(t, TransportMock, wrapper.Type())
	assert.True(t, wrapper.IsConnected())
	assert.Equal(t, defaultExchangeParams(TransportMock), wrapper.ExchangeParams())
	require.NoError(t, wrapper.FlushInput())
	require.NoError(t, wrapper.SetTimeout(5*time.Millisecond))
}

// TestTransportWithRetry_SetRetryConfig tests dynamic retry configuration
func TestTransportWithRetry_SetRetryConfig(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, DefaultRetryConfig())

	initialConfig := wrapper.config
	assert.NotNil(t, initialConfig)

	newConfig := fastRetryConfig(10)
	wrapper.SetRetryConfig(newConfig)
	assert.Equal(t, newConfig, wrapper.config)
	assert.NotEqual(t, initialConfig, wrapper.config)
}

// TestTransportWithRetry_Close tests resource cleanup
func TestTransportWithRetry_Close(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, DefaultRetryConfig())

	require.NoError(t, wrapper.Close())
	assert.False(t, wrapper.IsConnected())

	_, err := wrapper.Write([]byte{0xAA})
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestDefaultExchangeParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport  TransportType
		slice      time.Duration
		turnaround time.Duration
		maxPayload int
	}{
		{transport: TransportUART, slice: 20 * time.Millisecond, maxPayload: 4096},
		{transport: TransportI2C, slice: 5 * time.Millisecond, turnaround: 2 * time.Millisecond, maxPayload: 1024},
		{transport: TransportMock, slice: 5 * time.Millisecond, maxPayload: 4096},
		{transport: "spi", slice: 50 * time.Millisecond, maxPayload: 4096},
	}

	for _, tt := range tests {
		t.Run(string(tt.transport), func(t *testing.T) {
			t.Parallel()

			p := defaultExchangeParams(tt.transport)
			assert.Equal(t, tt.slice, p.ReadSlice)
			assert.Equal(t, tt.turnaround, p.Turnaround)
			assert.Equal(t, tt.maxPayload, p.MaxPayload)
		})
	}
}
