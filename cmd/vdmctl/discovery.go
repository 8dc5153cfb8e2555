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
	"context"
	"fmt"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/ZaparooProject/go-vdm/transport/i2c"
	"github.com/ZaparooProject/go-vdm/transport/uart"
	"go.uber.org/zap"
)

// Discovery handles device discovery and transport creation
type Discovery struct {
	config  *Config
	output  *Output
	logger  *zap.Logger
	metrics *vdm.Metrics
}

// NewDiscovery creates a new discovery handler
func NewDiscovery(config *Config, output *Output, logger *zap.Logger, metrics *vdm.Metrics) *Discovery {
	return &Discovery{
		config:  config,
		output:  output,
		logger:  logger,
		metrics: metrics,
	}
}

// Detect runs every registered detector
func (d *Discovery) Detect(ctx context.Context) ([]detection.DeviceInfo, error) {
	opts := d.config.DetectionOptions()
	d.output.Verbose("Detecting devices (mode %s)...", opts.Mode)

	devices, err := detection.DetectAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("device discovery failed: %w", err)
	}
	d.output.Verbose("   Found %d device(s)", len(devices))
	return devices, nil
}

// CreateTransport creates the appropriate transport for a detected device
func (d *Discovery) CreateTransport(info detection.DeviceInfo) (vdm.Transport, error) {
	switch vdm.TransportType(info.Transport) {
	case vdm.TransportUART:
		return d.openUART(info.Path)
	case vdm.TransportI2C:
		return d.openI2C(info.Path)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", info.Transport)
	}
}

// Connect opens the configured device, or the best detected one when no
// port or bus is configured, and performs the init handshake
func (d *Discovery) Connect(ctx context.Context) (*vdm.Device, error) {
	opts := []vdm.ConnectOption{
		vdm.WithConnectTimeout(d.config.Timeout * 2),
		vdm.WithDeviceOptions(d.deviceOptions()...),
	}

	var path string
	switch {
	case d.config.Port != "":
		path = d.config.Port
		opts = append(opts, vdm.WithTransportFactory(d.openUART))
	case d.config.I2CBus != "":
		path = d.config.I2CBus
		opts = append(opts, vdm.WithTransportFactory(d.openI2C))
	default:
		opts = append(opts,
			vdm.WithAutoDetection(),
			vdm.WithDetectionOptions(d.config.DetectionOptions()),
			vdm.WithTransportFromDeviceFactory(d.CreateTransport))
	}

	d.logger.Debug("connecting", zap.String("path", path))
	device, err := vdm.ConnectDevice(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if fw := device.Firmware(); fw != nil {
		d.output.Verbose("Connected to %s, firmware %s", device.Transport().Type(), fw)
	}
	return device, nil
}

func (d *Discovery) deviceOptions() []vdm.Option {
	opts := []vdm.Option{
		vdm.WithLogger(d.logger.Named("device")),
		vdm.WithTimeout(d.config.Timeout),
		vdm.WithMaxRetries(d.config.Retries),
	}
	if d.metrics != nil {
		opts = append(opts, vdm.WithMetrics(d.metrics))
	}
	if d.config.RateLimit > 0 {
		opts = append(opts, vdm.WithRateLimit(d.config.RateLimit, 1))
	}
	return opts
}

func (d *Discovery) openUART(path string) (vdm.Transport, error) {
	t, err := uart.NewWithConfig(path, uart.Config{BaudRate: d.config.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return t, nil
}

func (*Discovery) openI2C(path string) (vdm.Transport, error) {
	t, err := i2c.NewFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create I2C transport: %w", err)
	}
	return t, nil
}
