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

// Package i2c detects VDM MCUs on I2C buses
package i2c

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/ZaparooProject/go-vdm/frame"
)

const (
	// DefaultAddress is the 7-bit address VDM firmware answers on
	DefaultAddress = 0x42

	regPending = 0x00
	regFIFO    = 0x01

	// Scan range, reserved addresses excluded.
	firstAddr = 0x08
	lastAddr  = 0x77
)

// registers is register access to one target address
type registers interface {
	ReadReg(reg byte, p []byte) error
	WriteReg(reg byte, p []byte) error
}

// detector implements the Detector interface for I2C devices
type detector struct{}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect searches for MCUs on I2C buses
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if opts == nil {
		def := detection.DefaultOptions()
		opts = &def
	}
	if runtime.GOOS != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}
	return detectLinux(ctx, opts)
}

// devicePath names an address on a bus the way IgnorePaths expects it
func devicePath(busPath string, addr uint8) string {
	return fmt.Sprintf("%s:0x%02X", busPath, addr)
}

// pending reads the target's count of queued reply bytes
func pending(r registers) (int, error) {
	var buf [2]byte
	if err := r.ReadReg(regPending, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(buf[:])), nil
}

// ping sends a ping request and waits for the matching ack. It reports
// whether the target speaks the VDM protocol.
func ping(ctx context.Context, r registers, timeout time.Duration) (bool, error) {
	// A random sequence keeps a stale reply from an earlier probe from
	// matching.
	seq := uint8(rand.IntN(256))
	req, err := frame.Build(frame.TypeRequest, seq, frame.CmdPing, nil)
	if err != nil {
		return false, err
	}
	if err := r.WriteReg(regFIFO, req); err != nil {
		return false, err
	}

	stream := frame.NewStream(64)
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 32)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		n, err := pending(r)
		if err != nil {
			return false, err
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		chunk := buf[:min(n, len(buf))]
		if err := r.ReadReg(regFIFO, chunk); err != nil {
			return false, err
		}
		_, _ = stream.Write(chunk)

		for {
			f, ok := stream.Next()
			if !ok {
				break
			}
			if f.Verify() == nil && f.Seq == seq && f.Cmd == frame.CmdPing &&
				(f.Type == frame.TypeAck || f.Type == frame.TypeResponse) {
				return f.CheckVersion() == nil, nil
			}
		}
	}
	return false, nil
}
