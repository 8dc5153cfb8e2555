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

// Package uart provides UART/serial transport implementation for VDM MCUs
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the MCU's factory line speed
	DefaultBaudRate = 115200

	defaultTimeout = 50 * time.Millisecond
)

// port is the part of serial.Port used by the transport
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Config holds serial line settings
type Config struct {
	BaudRate int
	Timeout  time.Duration
}

// DefaultConfig returns 115200 8N1 with a 50ms read timeout
func DefaultConfig() Config {
	return Config{BaudRate: DefaultBaudRate, Timeout: defaultTimeout}
}

// Transport implements the vdm.Transport interface for UART communication
type Transport struct {
	port     port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// New opens portName with the default configuration
func New(portName string) (*Transport, error) {
	return NewWithConfig(portName, DefaultConfig())
}

// NewWithConfig opens portName with cfg. Zero fields take their defaults.
func NewWithConfig(portName string, cfg Config) (*Transport, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, mapPortError("open", portName, err))
	}

	t := newTransport(p, portName)
	if err := t.SetTimeout(cfg.Timeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	// Drop whatever the MCU sent before we were listening.
	_ = p.ResetInputBuffer()
	return t, nil
}

func newTransport(p port, portName string) *Transport {
	return &Transport{port: p, portName: portName, timeout: defaultTimeout}
}

// Read reads available bytes, returning 0 and no error when the read
// timeout passes first
func (t *Transport) Read(p []byte) (int, error) {
	if err := t.checkOpen("read"); err != nil {
		return 0, err
	}
	n, err := t.port.Read(p)
	if err != nil {
		return n, mapPortError("read", t.portName, err)
	}
	return n, nil
}

// ReadContext is Read that returns early when ctx is done. The blocking
// read itself is bounded by the port timeout.
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := t.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
	}
	return n, nil
}

// Write sends p and waits until it has left the output buffer
func (t *Transport) Write(p []byte) (int, error) {
	if err := t.checkOpen("write"); err != nil {
		return 0, err
	}

	written := 0
	for written < len(p) {
		n, err := t.port.Write(p[written:])
		written += n
		if err != nil {
			return written, mapPortError("write", t.portName, err)
		}
		if n == 0 {
			return written, vdm.NewTransportError("write", t.portName, vdm.ErrTransportWrite, vdm.ErrorTypeTransient)
		}
	}
	if err := t.port.Drain(); err != nil {
		return written, mapPortError("write", t.portName, err)
	}
	return written, nil
}

// WriteContext is Write that refuses to start once ctx is done
func (t *Transport) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.Write(p)
}

// FlushInput discards received bytes that have not been read
func (t *Transport) FlushInput() error {
	if err := t.checkOpen("flush"); err != nil {
		return err
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return mapPortError("flush", t.portName, err)
	}
	return nil
}

// ExchangeParams returns the timing used by Device over a serial line
func (t *Transport) ExchangeParams() *vdm.ExchangeParams {
	t.mu.Lock()
	slice := t.timeout
	t.mu.Unlock()
	return &vdm.ExchangeParams{
		ReadSlice:  slice,
		MaxPayload: 4096,
	}
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		if err := t.port.SetReadTimeout(timeout); err != nil {
			return mapPortError("set timeout", t.portName, err)
		}
	}
	t.timeout = timeout
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.port == nil {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return mapPortError("close", t.portName, err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() vdm.TransportType {
	return vdm.TransportUART
}

// PortName returns the serial device path
func (t *Transport) PortName() string {
	return t.portName
}

func (t *Transport) checkOpen(op string) error {
	if !t.IsConnected() {
		return vdm.NewTransportError(op, t.portName, vdm.ErrTransportClosed, vdm.ErrorTypePermanent)
	}
	return nil
}

// mapPortError classifies serial library errors
func mapPortError(op, portName string, err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		kind := vdm.ErrTransportRead
		if op == "write" {
			kind = vdm.ErrTransportWrite
		}
		return vdm.NewTransportError(op, portName, errors.Join(kind, err), vdm.ErrorTypeTransient)
	}

	switch pe.Code() {
	case serial.PortClosed:
		return vdm.NewTransportError(op, portName, errors.Join(vdm.ErrTransportClosed, err), vdm.ErrorTypePermanent)
	case serial.PortNotFound:
		return vdm.NewTransportError(op, portName, errors.Join(vdm.ErrDeviceNotFound, err), vdm.ErrorTypePermanent)
	case serial.PortBusy:
		return vdm.NewTransportError(op, portName, err, vdm.ErrorTypeTransient)
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
		serial.InvalidStopBits, serial.InvalidTimeoutValue:
		return vdm.NewTransportError(op, portName, errors.Join(vdm.ErrInvalidParameter, err), vdm.ErrorTypePermanent)
	default:
		return vdm.NewTransportError(op, portName, err, vdm.ErrorTypePermanent)
	}
}
