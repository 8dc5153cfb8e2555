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

// Package uart detects VDM MCUs on USB serial ports
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/ZaparooProject/go-vdm/frame"
	"github.com/ZaparooProject/go-vdm/transport/uart"
	"go.bug.st/serial/enumerator"
)

// KnownDevices maps USB VID:PID pairs seen on VDM boards to a description
var KnownDevices = map[string]string{
	"2E8A:000A": "Raspberry Pi RP2040 CDC",
	"0483:5740": "STM32 Virtual COM Port",
	"1A86:7523": "WCH CH340",
	"10C4:EA60": "Silicon Labs CP210x",
	"0403:6001": "FTDI FT232R",
}

// serialPort is one enumerated port
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// probeFunc reports the firmware of the MCU on path
type probeFunc func(ctx context.Context, path string, timeout time.Duration) (frame.FirmwareInfo, error)

// detector implements the Detector interface for serial ports
type detector struct {
	list  func() ([]serialPort, error)
	probe probeFunc
}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{list: getSerialPorts, probe: probePort}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports and, unless passive, pings candidates
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if opts == nil {
		def := detection.DefaultOptions()
		opts = &def
	}

	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			if len(devices) > 0 {
				return devices, nil
			}
			return nil, detection.ErrDetectionTimeout
		}
		if info, ok := d.inspect(ctx, port, opts); ok {
			devices = append(devices, info)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// inspect decides whether one port is reported
func (d *detector) inspect(ctx context.Context, port serialPort, opts *detection.Options) (detection.DeviceInfo, bool) {
	if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}
	if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}

	known, isKnown := KnownDevices[port.VIDPID]
	info := detection.DeviceInfo{
		Transport:  "uart",
		Path:       port.Path,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   portMetadata(port),
	}
	if isKnown {
		info.Confidence = detection.Medium
		info.Metadata["bridge"] = known
	}

	switch opts.Mode {
	case detection.Passive:
		return info, isKnown
	case detection.Safe:
		if !isKnown {
			return detection.DeviceInfo{}, false
		}
	case detection.Full:
		if !port.IsUSB && !isKnown {
			return detection.DeviceInfo{}, false
		}
	}

	fw, err := d.probe(ctx, port.Path, opts.ProbeTimeout)
	if err != nil {
		// A known bridge that did not answer may still be an MCU in a
		// bad state; anything else is dropped.
		info.Metadata["probe_error"] = err.Error()
		return info, isKnown
	}
	info.Confidence = detection.High
	info.Metadata["firmware"] = fw.String()
	return info, true
}

func portMetadata(port serialPort) map[string]string {
	md := make(map[string]string)
	if port.VIDPID != "" {
		md["vidpid"] = port.VIDPID
	}
	if port.Manufacturer != "" {
		md["manufacturer"] = port.Manufacturer
	}
	if port.Product != "" {
		md["product"] = port.Product
	}
	if port.SerialNumber != "" {
		md["serial"] = port.SerialNumber
	}
	return md
}

// getSerialPorts enumerates serial ports with USB metadata where the OS
// provides it
func getSerialPorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		if d == nil || isSystemPort(d.Name) {
			continue
		}
		port := serialPort{
			Path:         d.Name,
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB {
			port.VIDPID = detection.FormatVIDPID(d.VID + ":" + d.PID)
			if d.Product != "" {
				port.Name = fmt.Sprintf("%s (%s)", d.Product, d.Name)
			}
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// isSystemPort filters ports that are never an MCU
func isSystemPort(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range []string{"bluetooth", "debug-console", "/dev/ttys0"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// probePort opens path and asks the MCU for its firmware version
func probePort(ctx context.Context, path string, timeout time.Duration) (frame.FirmwareInfo, error) {
	tr, err := uart.NewWithConfig(path, uart.Config{Timeout: 20 * time.Millisecond})
	if err != nil {
		return frame.FirmwareInfo{}, err
	}

	device, err := vdm.New(tr, vdm.WithTimeout(timeout), vdm.WithMaxRetries(1))
	if err != nil {
		_ = tr.Close()
		return frame.FirmwareInfo{}, err
	}
	defer func() { _ = device.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*timeout)
	defer cancel()

	if err := device.PingContext(ctx); err != nil {
		return frame.FirmwareInfo{}, err
	}
	return device.FirmwareVersionContext(ctx)
}
