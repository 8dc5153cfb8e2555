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

/*
Package vdm provides a pure Go library for talking to VDM motion and sensor
MCUs over their binary framing protocol.

Every message is a frame: the sync bytes AA 55, a protocol version, a frame
type, a sequence number, a 16-bit command code, a 16-bit payload length, the
payload and a CRC-16/MODBUS over everything after the sync bytes. All
multi-byte fields are big-endian. The frame package holds the wire format
and the command catalog; this package drives a live MCU.

Features:
  - UART and I2C transports
  - Request/reply matching by sequence number with retries and backoff
  - Resynchronisation on line noise and corrupted frames
  - Unsolicited notifications and passthrough bus traffic
  - Typed helpers for system, motor, sensor and peripheral commands
  - Prometheus metrics and zap logging
  - Automatic device detection

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-vdm"
	    "github.com/ZaparooProject/go-vdm/transport/uart"
	)

	// Create a UART transport
	transport, err := uart.New("/dev/ttyACM0")
	if err != nil {
	    log.Fatal(err)
	}

	// Create the device and check the MCU answers
	device, err := vdm.New(transport,
	    vdm.WithTimeout(500*time.Millisecond),
	    vdm.WithMaxRetries(3),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	if err := device.InitContext(ctx); err != nil {
	    log.Fatal(err)
	}

	// Turn the X axis to 90 degrees and read the sensors
	if err := device.MotorEnableContext(ctx, frame.MotorX); err != nil {
	    log.Fatal(err)
	}
	if err := device.MotorRotateContext(ctx, frame.MotorX, 90, 30); err != nil {
	    log.Fatal(err)
	}
	temps, err := device.ReadAllSensorsContext(ctx)

Notifications:

Frames the MCU sends on its own are delivered to the handler set with
WithNotifyHandler. They are dispatched while an exchange waits for its reply
and while Listen runs. Handlers run with the device lock held and must not
call back into the Device.

Error Handling:

Rejections from the MCU come back as *NackError and are never retried.
Transport failures are wrapped in *TransportError and classified for retry:

	if vdm.IsNack(err, frame.ErrCodeDeviceBusy) {
	    // try later
	}
	if errors.Is(err, vdm.ErrTransportTimeout) {
	    // no reply
	}

Thread Safety:

A Device serializes exchanges with a mutex, so it may be shared between
goroutines. Each exchange holds the lock until its reply arrives.
*/
package vdm
