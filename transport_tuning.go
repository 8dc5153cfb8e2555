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
	"time"
)

// TransportTuner lets a transport choose its own exchange parameters
type TransportTuner interface {
	ExchangeParams() *ExchangeParams
}

// ExchangeParams holds transport-specific timing used while waiting for a
// reply
type ExchangeParams struct {
	// ReadSlice is the longest single blocking read. Cancellation and
	// deadlines are checked between reads.
	ReadSlice time.Duration
	// Turnaround is the wait between writing a request and the first read
	Turnaround time.Duration
	// MaxPayload is the largest payload accepted from the link. Longer
	// declared lengths are treated as line noise.
	MaxPayload int
}

// exchangeParams returns parameters for the device's transport
func (d *Device) exchangeParams() *ExchangeParams {
	if tuner, ok := d.transport.(TransportTuner); ok {
		if p := tuner.ExchangeParams(); p != nil {
			return p
		}
	}
	return defaultExchangeParams(d.transport.Type())
}

func defaultExchangeParams(t TransportType) *ExchangeParams {
	switch t {
	case TransportUART:
		return &ExchangeParams{
			ReadSlice:  20 * time.Millisecond,
			MaxPayload: 4096,
		}
	case TransportI2C:
		// The MCU needs time to move a request out of its receive
		// buffer before it can answer a length poll.
		return &ExchangeParams{
			ReadSlice:  5 * time.Millisecond,
			Turnaround: 2 * time.Millisecond,
			MaxPayload: 1024,
		}
	case TransportMock:
		return &ExchangeParams{
			ReadSlice:  5 * time.Millisecond,
			MaxPayload: 4096,
		}
	default:
		return &ExchangeParams{
			ReadSlice:  50 * time.Millisecond,
			MaxPayload: 4096,
		}
	}
}
