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

	"github.com/ZaparooProject/go-vdm/frame"
)

// Debug sends a command from the debug group with an opaque body and
// returns the opaque reply body
func (d *Device) Debug(id uint8, data []byte) ([]byte, error) {
	return d.DebugContext(context.Background(), id, data)
}

// DebugContext is Debug with context support.
//
// Debug replies are opaque and may declare any length, but the stream only
// accepts payloads up to the transport's ExchangeParams.MaxPayload (4096
// bytes on UART, 1024 on I2C). A longer reply is dropped as line noise with
// a warning logged, and the exchange ends in a timeout.
func (d *Device) DebugContext(ctx context.Context, id uint8, data []byte) ([]byte, error) {
	reply, err := d.ExchangeContext(ctx, frame.NewCommand(frame.GroupDebug, id), data)
	if err != nil {
		return nil, err
	}
	return reply.Payload(), nil
}

// SendRaw exchanges a request whose body the caller has already packed.
// The body is still checked against the command catalog.
func (d *Device) SendRaw(cmd frame.Command, payload []byte) ([]byte, error) {
	return d.SendRawContext(context.Background(), cmd, payload)
}

// SendRawContext is SendRaw with context support
func (d *Device) SendRawContext(ctx context.Context, cmd frame.Command, payload []byte) ([]byte, error) {
	reply, err := d.ExchangeContext(ctx, cmd, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return reply.Payload(), nil
}
