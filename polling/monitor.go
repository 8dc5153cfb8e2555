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

// Package polling watches the temperature sensors of a VDM MCU
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/ZaparooProject/go-vdm/frame"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a monitor that is running
var ErrAlreadyRunning = errors.New("monitor is already running")

// Monitor polls all sensors periodically and reports readings and
// threshold crossings. Sensor notifications pushed by the MCU are treated
// as readings too.
//
// Callbacks run on the polling goroutine, except for readings carried by
// notifications, which run inside the device's notify handler. Callbacks
// must therefore not call into the Device.
type Monitor struct {
	device    *vdm.Device
	config    *Config
	logger    *zap.Logger
	OnReading func(Reading)
	OnChange  func(Change)
	OnError   func(error)
	OnNotify  func(frame.Frame)
	prev      vdm.NotifyHandler
	started   time.Time
	resume    chan struct{}
	state     State
	interval  atomic.Int64
	mu        sync.Mutex
	running   atomic.Bool
	paused    atomic.Bool
}

// NewMonitor creates a new sensor monitor
func NewMonitor(device *vdm.Device, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		device: device,
		config: config,
		logger: logger,
		resume: make(chan struct{}, 1),
	}
	m.interval.Store(int64(config.PollInterval))
	return m
}

// Start polls until ctx ends. It blocks; run it on its own goroutine.
func (m *Monitor) Start(ctx context.Context) error {
	if m.device == nil {
		return errors.New("device cannot be nil")
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid monitor config: %w", err)
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	prev := m.device.SetNotifyHandler(m.handleNotify)
	defer m.device.SetNotifyHandler(prev)

	m.mu.Lock()
	m.prev = prev
	m.started = time.Now()
	m.mu.Unlock()
	m.interval.Store(int64(m.config.PollInterval))

	m.setStatus(StatusRunning)
	defer m.setStatus(StatusStopped)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.paused.Load() {
			if err := m.waitResume(ctx); err != nil {
				return err
			}
			continue
		}

		// Read failures are reported through OnError; only cancellation
		// ends the loop.
		if err := m.poll(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		m.adjustInterval()

		if err := m.wait(ctx); err != nil {
			return err
		}
	}
}

// PollOnce reads every sensor once, updating state and firing callbacks
func (m *Monitor) PollOnce(ctx context.Context) error {
	return m.poll(ctx)
}

// Pause stops polling until Resume. Notifications are still dispatched if
// something else is reading the device.
func (m *Monitor) Pause() {
	if m.paused.CompareAndSwap(false, true) {
		m.setStatusIf(StatusRunning, StatusPaused)
		m.setStatusIf(StatusDegraded, StatusPaused)
	}
}

// Resume restarts polling after Pause
func (m *Monitor) Resume() {
	if m.paused.CompareAndSwap(true, false) {
		m.setStatusIf(StatusPaused, StatusRunning)
		select {
		case m.resume <- struct{}{}:
		default:
		}
	}
}

// IsPaused reports whether polling is paused
func (m *Monitor) IsPaused() bool {
	return m.paused.Load()
}

// IsRunning reports whether Start is active
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

// State returns a snapshot of the monitor state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// CurrentInterval returns the wait before the next poll
func (m *Monitor) CurrentInterval() time.Duration {
	return time.Duration(m.interval.Load())
}

// Device returns the underlying device
func (m *Monitor) Device() *vdm.Device {
	return m.device
}

func (m *Monitor) poll(ctx context.Context) error {
	pollCtx := ctx
	if m.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, m.config.PollTimeout)
		defer cancel()
	}

	start := time.Now()
	temps, err := m.device.ReadAllSensorsContext(pollCtx)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.handleError(fmt.Errorf("read sensors: %w", err))
		return err
	}

	m.mu.Lock()
	m.state.TransitionToPolled(start, latency)
	m.mu.Unlock()

	m.recordAll(temps, start)
	return nil
}

func (m *Monitor) recordAll(temps frame.Temperatures, at time.Time) {
	for _, t := range temps {
		r := Reading{Sensor: t.Sensor, Celsius: t.Celsius, Time: at}

		m.mu.Lock()
		change, changed := m.state.record(r, m.config.ChangeThreshold)
		m.mu.Unlock()

		if m.OnReading != nil {
			m.OnReading(r)
		}
		if changed {
			m.logger.Debug("sensor changed",
				zap.Uint8("sensor", r.Sensor),
				zap.Float32("from", change.Previous.Celsius),
				zap.Float32("to", change.Current.Celsius))
			if m.OnChange != nil {
				m.OnChange(change)
			}
		}
	}
}

func (m *Monitor) handleError(err error) {
	m.mu.Lock()
	before := m.state.Status
	m.state.TransitionToFailed(err, m.config.DegradedAfter)
	after := m.state.Status
	m.mu.Unlock()

	if before != after {
		m.logger.Warn("monitor degraded", zap.Error(err))
	} else {
		m.logger.Debug("poll failed", zap.Error(err))
	}
	if m.OnError != nil {
		m.OnError(err)
	}
}

// handleNotify runs inside the device lock
func (m *Monitor) handleNotify(f frame.Frame) {
	m.mu.Lock()
	m.state.Notifications++
	prev := m.prev
	m.mu.Unlock()

	switch f.Cmd {
	case frame.CmdSensorReadTemp, frame.CmdSensorReadAll:
		p, err := frame.ParseResponse(f.Cmd, f.Payload)
		if err != nil {
			m.logger.Debug("bad sensor notification", zap.Stringer("frame", f), zap.Error(err))
			break
		}
		switch v := p.(type) {
		case frame.Temperature:
			m.recordAll(frame.Temperatures{v}, time.Now())
		case frame.Temperatures:
			m.recordAll(v, time.Now())
		}
	}

	if m.OnNotify != nil {
		m.OnNotify(f)
	}
	if prev != nil {
		prev(f)
	}
}

// adjustInterval slows polling once readings have been stable for
// StableAfter and returns to PollInterval after a change
func (m *Monitor) adjustInterval() {
	if m.config.MaxInterval == 0 {
		return
	}

	m.mu.Lock()
	stableSince := m.state.LastChange
	if stableSince.IsZero() {
		stableSince = m.started
	}
	m.mu.Unlock()

	next := m.config.PollInterval
	if time.Since(stableSince) > m.config.StableAfter {
		next = min(m.config.PollInterval*5, m.config.MaxInterval)
	}
	m.interval.Store(int64(next))
}

// wait blocks until the next poll is due, listening for notifications in
// the meantime when configured
func (m *Monitor) wait(ctx context.Context) error {
	interval := m.CurrentInterval()
	deadline := time.Now().Add(interval)

	if m.config.ListenBetweenPolls {
		listenCtx, cancel := context.WithDeadline(ctx, deadline)
		err := m.device.Listen(listenCtx)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		m.logger.Debug("listen failed", zap.Error(err))
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Monitor) waitResume(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.resume:
		return nil
	}
}

func (m *Monitor) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == StatusRunning && m.paused.Load() {
		s = StatusPaused
	}
	m.state.Status = s
}

func (m *Monitor) setStatusIf(from, to Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status == from {
		m.state.Status = to
	}
}
