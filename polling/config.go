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
	"errors"
	"time"

	"go.uber.org/zap"
)

// Config holds monitor settings
type Config struct {
	// Logger receives poll failures and state changes. Nil disables logging.
	Logger *zap.Logger
	// PollInterval is the time between sensor reads while readings move
	PollInterval time.Duration
	// PollTimeout bounds a single read-all exchange
	PollTimeout time.Duration
	// MaxInterval caps the slowed interval used once readings are stable.
	// Zero disables adaptive polling.
	MaxInterval time.Duration
	// StableAfter is how long readings must stay within ChangeThreshold
	// before polling slows down
	StableAfter time.Duration
	// ChangeThreshold is the smallest temperature delta in degrees Celsius
	// reported as a change
	ChangeThreshold float32
	// DegradedAfter is the number of consecutive failed polls that moves
	// the monitor into StatusDegraded
	DegradedAfter int
	// ListenBetweenPolls reads notifications while waiting for the next
	// poll instead of sleeping
	ListenBetweenPolls bool
}

// DefaultConfig returns sensible default configuration values
func DefaultConfig() *Config {
	return &Config{
		PollInterval:       time.Second,
		PollTimeout:        500 * time.Millisecond,
		MaxInterval:        5 * time.Second,
		StableAfter:        10 * time.Second,
		ChangeThreshold:    0.5,
		DegradedAfter:      3,
		ListenBetweenPolls: true,
	}
}

// Validate reports settings the monitor cannot run with
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.PollTimeout < 0 {
		return errors.New("poll timeout must not be negative")
	}
	if c.MaxInterval != 0 && c.MaxInterval < c.PollInterval {
		return errors.New("max interval must not be below poll interval")
	}
	if c.ChangeThreshold < 0 {
		return errors.New("change threshold must not be negative")
	}
	return nil
}
