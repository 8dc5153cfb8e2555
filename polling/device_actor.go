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

package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
)

// Callbacks groups the monitor event handlers
type Callbacks struct {
	OnReading func(Reading)
	OnChange  func(Change)
	OnError   func(error)
}

// Metrics tracks operational counters of a running monitor
type Metrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Number of failed polls
	Changes         int64         // Number of threshold crossings
	Notifications   int64         // Number of notifications received
	LastPollLatency time.Duration // Duration of last poll
	CurrentInterval time.Duration // Wait before the next poll
}

// DeviceActor runs a Monitor on its own goroutine with Start/Stop
// semantics
type DeviceActor struct {
	monitor *Monitor
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	mu      sync.Mutex
}

// NewDeviceActor creates an actor polling device with config
func NewDeviceActor(device *vdm.Device, config *Config, callbacks Callbacks) *DeviceActor {
	m := NewMonitor(device, config)
	m.OnReading = callbacks.OnReading
	m.OnChange = callbacks.OnChange
	m.OnError = callbacks.OnError
	return &DeviceActor{monitor: m}
}

// Start begins polling in the background. It returns an error if the actor
// is already running.
func (da *DeviceActor) Start(ctx context.Context) error {
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.done != nil {
		return ErrAlreadyRunning
	}
	if da.monitor.device == nil {
		return errors.New("device cannot be nil")
	}
	if err := da.monitor.config.Validate(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	da.cancel = cancel
	da.done = done
	da.err = nil

	go func() {
		defer close(done)
		err := da.monitor.Start(runCtx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		da.mu.Lock()
		da.err = err
		da.mu.Unlock()
	}()
	return nil
}

// Stop cancels polling and waits for the goroutine to exit or ctx to end
func (da *DeviceActor) Stop(ctx context.Context) error {
	da.mu.Lock()
	cancel, done := da.cancel, da.done
	da.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	da.mu.Lock()
	defer da.mu.Unlock()
	da.cancel = nil
	da.done = nil
	return da.err
}

// Done is closed when the polling goroutine exits. It is nil before Start.
func (da *DeviceActor) Done() <-chan struct{} {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.done
}

// Monitor returns the underlying monitor
func (da *DeviceActor) Monitor() *Monitor {
	return da.monitor
}

// GetMetrics returns current operational metrics
func (da *DeviceActor) GetMetrics() Metrics {
	s := da.monitor.State()
	return Metrics{
		PollCycles:      s.Polls,
		PollErrors:      s.Errors,
		Changes:         s.Changes,
		Notifications:   s.Notifications,
		LastPollLatency: s.LastPollLatency,
		CurrentInterval: da.monitor.CurrentInterval(),
	}
}
