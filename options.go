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
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ZaparooProject/go-vdm/frame"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithRetryConfig sets the retry configuration for the device
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets how long each attempt waits for a reply
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		return d.SetTimeout(timeout)
	}
}

// WithMaxRetries sets the maximum number of attempts per exchange
func WithMaxRetries(maxAttempts int) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.MaxAttempts = maxAttempts
		if tr, ok := device.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(device.config.RetryConfig)
		}
		return nil
	}
}

// WithRetryBackoff sets the initial backoff duration for retries
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.InitialBackoff = initialBackoff
		if tr, ok := device.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(device.config.RetryConfig)
		}
		return nil
	}
}

// WithLogger sets the logger used for frame traffic and retries
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		d.logger = logger
		return nil
	}
}

// WithMetrics records frame traffic into m
func WithMetrics(m *Metrics) Option {
	return func(d *Device) error {
		d.metrics = m
		return nil
	}
}

// WithRateLimit paces exchanges to at most perSecond with the given burst.
// Slow MCUs drop requests that arrive while they are still executing the
// previous one.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Device) error {
		if perSecond <= 0 {
			return errors.New("rate limit must be positive")
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithNotifyHandler sets the receiver of unsolicited notifications
func WithNotifyHandler(h NotifyHandler) Option {
	return func(d *Device) error {
		d.onNotify = h
		return nil
	}
}

// WithPassthroughHandler sets the receiver of secondary-bus traffic
func WithPassthroughHandler(h PassthroughHandler) Option {
	return func(d *Device) error {
		d.onPassthrough = h
		return nil
	}
}

// WithSequence makes the device draw sequence numbers from seq, which may
// be shared with other builders on the same link
func WithSequence(seq *frame.Sequence) Option {
	return func(d *Device) error {
		if seq == nil {
			return errors.New("sequence must not be nil")
		}
		d.builder = frame.NewBuilder(seq)
		return nil
	}
}
