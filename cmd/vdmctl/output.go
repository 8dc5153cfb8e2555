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

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/ZaparooProject/go-vdm/frame"
	"github.com/ZaparooProject/go-vdm/polling"
)

// Output handles consistent formatting of messages
type Output struct {
	w       io.Writer
	verbose bool
}

// NewOutput creates a new output handler writing to w
func NewOutput(w io.Writer, verbose bool) *Output {
	return &Output{w: w, verbose: verbose}
}

// DeviceFound prints one detection result
func (o *Output) DeviceFound(info detection.DeviceInfo) {
	o.printf("%-5s %-24s %-6s %s\n", info.Transport, info.Path, info.Confidence, info.Name)
	if !o.verbose {
		return
	}
	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.printf("      %s: %s\n", k, info.Metadata[k])
	}
}

// Temperatures prints sensor readings, one per line
func (o *Output) Temperatures(temps frame.Temperatures) {
	for _, t := range temps {
		o.printf("sensor %d: %.2f C\n", t.Sensor, t.Celsius)
	}
}

// Frame prints a decoded frame and, when the catalog knows the command,
// its parsed payload
func (o *Output) Frame(f frame.Frame) {
	o.printf("%s\n", f)
	if len(f.Payload) > 0 {
		o.printf("  payload: % X\n", f.Payload)
	}

	var (
		p   frame.Payload
		err error
	)
	switch f.Type {
	case frame.TypeRequest:
		p, err = frame.ParseRequest(f.Cmd, f.Payload)
	case frame.TypeResponse, frame.TypeNotify:
		p, err = frame.ParseResponse(f.Cmd, f.Payload)
	case frame.TypeNack:
		if code, ok := f.NackCode(); ok {
			o.printf("  error: %s\n", code)
		}
		return
	default:
		return
	}
	if err != nil {
		o.Verbose("  payload not parsed: %v", err)
		return
	}
	if p != nil {
		o.printf("  decoded: %+v\n", p)
	}
}

// Reading prints a monitor reading
func (o *Output) Reading(r polling.Reading) {
	o.Verbose("%s sensor %d: %.2f C", r.Time.Format("15:04:05.000"), r.Sensor, r.Celsius)
}

// Change prints a temperature change past the threshold
func (o *Output) Change(c polling.Change) {
	o.printf("%s sensor %d: %.2f C -> %.2f C (%+.2f)\n",
		c.Current.Time.Format("15:04:05.000"), c.Current.Sensor,
		c.Previous.Celsius, c.Current.Celsius, c.Delta())
}

// Notify prints an unsolicited frame
func (o *Output) Notify(f frame.Frame) {
	o.printf("NOTIFY: %s\n", f)
}

// Error prints an error message
func (o *Output) Error(format string, args ...any) {
	o.printf("ERROR: "+format+"\n", args...)
}

// Warning prints a warning message
func (o *Output) Warning(format string, args ...any) {
	o.printf("WARNING: "+format+"\n", args...)
}

// Info prints an info message
func (o *Output) Info(format string, args ...any) {
	o.printf("INFO: "+format+"\n", args...)
}

// OK prints a success message
func (o *Output) OK(format string, args ...any) {
	o.printf("OK: "+format+"\n", args...)
}

// Verbose prints only if verbose mode is enabled
func (o *Output) Verbose(format string, args ...any) {
	if o.verbose {
		o.printf(format+"\n", args...)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}
