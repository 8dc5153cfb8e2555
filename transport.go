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
	"fmt"
	"time"
)

// Transport is a byte link to a VDM MCU. Framing is done by Device, so a
// transport only moves bytes. It can be implemented by UART or I2C
// backends.
type Transport interface {
	// Read reads available bytes. When the read timeout expires with
	// nothing received it returns 0 and a nil error.
	Read(p []byte) (int, error)

	// Write sends p in full or returns an error
	Write(p []byte) (int, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// InputFlusher is implemented by transports that can drop bytes already
// received but not yet read. Device uses it to discard the remains of a
// corrupted reply before retrying.
type InputFlusher interface {
	FlushInput() error
}

// TransportWithRetry wraps a Transport so that failed writes are retried
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Write sends p, retrying retryable failures. A frame is written whole or
// not at all from the caller's point of view.
func (t *TransportWithRetry) Write(p []byte) (int, error) {
	var n int
	err := RetryWithConfig(context.Background(), t.config, func() error {
		var err error
		n, err = t.transport.Write(p)
		if err != nil {
			return &TransportError{
				Op:        "write",
				Err:       err,
				Type:      GetErrorType(err),
				Retryable: IsRetryable(err),
			}
		}
		return nil
	})
	return n, err
}

// Read reads from the underlying transport. Reads are not retried; an
// empty read is the normal way a timeout is reported.
func (t *TransportWithRetry) Read(p []byte) (int, error) {
	n, err := t.transport.Read(p)
	if err != nil {
		return n, fmt.Errorf("read from underlying transport: %w", err)
	}
	return n, nil
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	if err := t.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on underlying transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// FlushInput forwards to the underlying transport when it supports it
func (t *TransportWithRetry) FlushInput() error {
	if f, ok := t.transport.(InputFlusher); ok {
		return f.FlushInput()
	}
	return nil
}

// ExchangeParams forwards tuning from the underlying transport
func (t *TransportWithRetry) ExchangeParams() *ExchangeParams {
	if tuner, ok := t.transport.(TransportTuner); ok {
		return tuner.ExchangeParams()
	}
	return defaultExchangeParams(t.transport.Type())
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}
