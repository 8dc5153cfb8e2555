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

// Package i2c provides I2C transport implementation for VDM MCUs
package i2c

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/ZaparooProject/go-vdm/internal/transport"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the 7-bit target address of the MCU
	DefaultAddress uint16 = 0x42

	// Target registers.
	regPending = 0x00 // u16 BE count of bytes waiting to be read
	regFIFO    = 0x01 // frame bytes in both directions

	// Largest transfer in one bus transaction, register byte included.
	maxChunk = 32

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	pollInterval = time.Millisecond
	writeRetries = 2
)

// bus is the part of *i2c.Dev used by the transport
type bus interface {
	Tx(w, r []byte) error
}

// Transport implements the vdm.Transport interface for an MCU acting as
// an I2C target
type Transport struct {
	dev     bus
	closer  func() error
	busName string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// New creates a new I2C transport for the MCU at DefaultAddress
func New(busName string) (*Transport, error) {
	return NewWithAddress(busName, DefaultAddress)
}

// NewWithAddress creates a new I2C transport for the MCU at addr
func NewWithAddress(busName string, addr uint16) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	_ = b.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	return newTransport(&i2c.Dev{Addr: addr, Bus: b}, b.Close, busName), nil
}

// NewFromPath creates a transport from a detected device path such as
// "/dev/i2c-1:0x42"
func NewFromPath(path string) (*Transport, error) {
	busName, addr, err := ParseDevicePath(path)
	if err != nil {
		return nil, err
	}
	return NewWithAddress(busName, addr)
}

// ParseDevicePath splits "/dev/i2c-N[:addr]" into a periph bus name and a
// target address. Plain bus names like "I2C1" pass through unchanged.
func ParseDevicePath(path string) (string, uint16, error) {
	busPart, addrPart, hasAddr := strings.Cut(path, ":")
	addr := DefaultAddress
	if hasAddr {
		v, err := strconv.ParseUint(addrPart, 0, 16)
		if err != nil || v > 0x7F {
			return "", 0, fmt.Errorf("%w: bad I2C address %q", vdm.ErrInvalidParameter, addrPart)
		}
		addr = uint16(v)
	}
	if busPart == "" {
		return "", 0, fmt.Errorf("%w: empty I2C bus in %q", vdm.ErrInvalidParameter, path)
	}

	if num, ok := strings.CutPrefix(filepath.Base(busPart), "i2c-"); ok {
		if _, err := strconv.Atoi(num); err == nil {
			return num, addr, nil
		}
	}
	return busPart, addr, nil
}

func newTransport(dev bus, closer func() error, busName string) *Transport {
	return &Transport{
		dev:     dev,
		closer:  closer,
		busName: busName,
		timeout: 50 * time.Millisecond,
	}
}

// Read polls the pending register until the MCU has data or the read
// timeout passes, then reads up to len(p) bytes from the FIFO.
func (t *Transport) Read(p []byte) (int, error) {
	return t.ReadContext(context.Background(), p)
}

// ReadContext is Read with cancellation between polls
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := t.checkOpen("read"); err != nil {
		return 0, err
	}

	pending, err := transport.TimeoutRetry(ctx, t.timeout, pollInterval, func() (int, bool, error) {
		n, err := t.pending()
		if err != nil {
			return 0, false, err
		}
		return n, n == 0, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if vdm.GetErrorType(err) == vdm.ErrorTypeTimeout {
			return 0, nil
		}
		return 0, err
	}

	n := min(pending, len(p), maxChunk)
	if err := t.dev.Tx([]byte{regFIFO}, p[:n]); err != nil {
		return 0, t.busError("read", vdm.ErrTransportRead, err)
	}
	return n, nil
}

// Write sends p to the FIFO register in bus-sized chunks
func (t *Transport) Write(p []byte) (int, error) {
	return t.WriteContext(context.Background(), p)
}

// WriteContext is Write with cancellation between chunks
func (t *Transport) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := t.checkOpen("write"); err != nil {
		return 0, err
	}

	written := 0
	buf := make([]byte, 0, maxChunk)
	for written < len(p) {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n := min(len(p)-written, maxChunk-1)
		buf = append(buf[:0], regFIFO)
		buf = append(buf, p[written:written+n]...)

		var lastErr error
		_, err := transport.WithRetry(ctx, transport.RetryConfig{
			Description: "write",
			Port:        t.busName,
			MaxRetries:  writeRetries,
			RetryDelay:  pollInterval,
		}, func() (struct{}, bool, error) {
			lastErr = t.dev.Tx(buf, nil)
			return struct{}{}, lastErr != nil, nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}
			if lastErr != nil {
				return written, t.busError("write", vdm.ErrTransportWrite, lastErr)
			}
			return written, err
		}
		written += n
	}
	return written, nil
}

// FlushInput reads and discards everything the MCU has queued
func (t *Transport) FlushInput() error {
	if err := t.checkOpen("flush"); err != nil {
		return err
	}

	buf := make([]byte, maxChunk)
	for range 256 {
		n, err := t.pending()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := t.dev.Tx([]byte{regFIFO}, buf[:min(n, maxChunk)]); err != nil {
			return t.busError("flush", vdm.ErrTransportRead, err)
		}
	}
	return nil
}

// ExchangeParams returns the timing used by Device over I2C
func (*Transport) ExchangeParams() *vdm.ExchangeParams {
	return &vdm.ExchangeParams{
		ReadSlice:  5 * time.Millisecond,
		Turnaround: 2 * time.Millisecond,
		MaxPayload: 1024,
	}
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer != nil {
		return t.closer()
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() vdm.TransportType {
	return vdm.TransportI2C
}

func (t *Transport) pending() (int, error) {
	var buf [2]byte
	if err := t.dev.Tx([]byte{regPending}, buf[:]); err != nil {
		return 0, t.busError("poll", vdm.ErrTransportRead, err)
	}
	return int(binary.BigEndian.Uint16(buf[:])), nil
}

func (t *Transport) checkOpen(op string) error {
	if !t.IsConnected() {
		return vdm.NewTransportError(op, t.busName, vdm.ErrTransportClosed, vdm.ErrorTypePermanent)
	}
	return nil
}

func (t *Transport) busError(op string, kind, err error) error {
	return vdm.NewTransportError(op, t.busName, errors.Join(kind, err), vdm.ErrorTypeTransient)
}
