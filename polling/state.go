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
	"time"
)

// Status is the lifecycle state of a Monitor
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusPaused
	StatusDegraded
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusDegraded:
		return "degraded"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Reading is one temperature sample
type Reading struct {
	Time    time.Time
	Celsius float32
	Sensor  uint8
}

// Change is a reading that moved at least the configured threshold away
// from the previous one
type Change struct {
	Previous Reading
	Current  Reading
}

// Delta returns the temperature difference
func (c Change) Delta() float32 {
	return c.Current.Celsius - c.Previous.Celsius
}

// State is a snapshot of what a monitor has seen
type State struct {
	LastPoll          time.Time
	LastChange        time.Time
	LastError         error
	Readings          map[uint8]Reading
	Polls             int64
	Errors            int64
	Changes           int64
	Notifications     int64
	ConsecutiveErrors int
	LastPollLatency   time.Duration
	Status            Status
}

// record stores r and reports a change when it differs from the previous
// reading of the same sensor by at least threshold. The first reading of a
// sensor is never a change.
func (s *State) record(r Reading, threshold float32) (Change, bool) {
	if s.Readings == nil {
		s.Readings = make(map[uint8]Reading)
	}
	prev, seen := s.Readings[r.Sensor]
	s.Readings[r.Sensor] = r
	if !seen {
		return Change{}, false
	}

	c := Change{Previous: prev, Current: r}
	delta := c.Delta()
	if delta < 0 {
		delta = -delta
	}
	if delta < threshold || (threshold == 0 && delta == 0) {
		// Keep the reference point so slow drift still adds up to a change.
		s.Readings[r.Sensor] = prev
		return Change{}, false
	}
	s.Changes++
	s.LastChange = r.Time
	return c, true
}

// TransitionToPolled records a successful poll
func (s *State) TransitionToPolled(at time.Time, latency time.Duration) {
	s.Polls++
	s.LastPoll = at
	s.LastPollLatency = latency
	s.ConsecutiveErrors = 0
	s.LastError = nil
	if s.Status == StatusDegraded {
		s.Status = StatusRunning
	}
}

// TransitionToFailed records a failed poll, degrading after degradedAfter
// consecutive failures
func (s *State) TransitionToFailed(err error, degradedAfter int) {
	s.Polls++
	s.Errors++
	s.ConsecutiveErrors++
	s.LastError = err
	if degradedAfter > 0 && s.ConsecutiveErrors >= degradedAfter && s.Status == StatusRunning {
		s.Status = StatusDegraded
	}
}

// clone copies the snapshot so callers cannot mutate monitor state
func (s *State) clone() State {
	out := *s
	if s.Readings != nil {
		out.Readings = make(map[uint8]Reading, len(s.Readings))
		for k, v := range s.Readings {
			out.Readings[k] = v
		}
	}
	return out
}
