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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vdmctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("VDM_CONFIG", "")

	cfg, err := LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "safe", cfg.Detection.Mode)
	assert.ElementsMatch(t, detection.DefaultBlocklist(), cfg.Detection.Blocklist)
	assert.InDelta(t, 0.5, cfg.Monitor.ChangeThreshold, 1e-6)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("VDM_CONFIG", "")

	path := writeConfig(t, `
port: /dev/ttyACM0
timeout: 250ms
retries: 5
logging:
  level: debug
  format: json
detection:
  mode: full
  blocklist: ["vid:1a86 pid:7523"]
monitor:
  interval: 2s
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"1A86:7523"}, cfg.Detection.Blocklist)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)

	opts := cfg.DetectionOptions()
	assert.Equal(t, detection.Full, opts.Mode)
	assert.Equal(t, []string{"1A86:7523"}, opts.Blocklist)
}

func TestLoadConfig_EnvAndOverrides(t *testing.T) {
	path := writeConfig(t, "retries: 5\n")
	t.Setenv("VDM_CONFIG", path)
	t.Setenv("VDM_BAUD_RATE", "9600")
	t.Setenv("VDM_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig("", map[string]any{"retries": 2})
	require.NoError(t, err)

	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Retries, "flags win over the file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("VDM_CONFIG", "")

	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{name: "port and bus", overrides: map[string]any{"port": "/dev/ttyACM0", "i2c_bus": "/dev/i2c-1"}},
		{name: "zero retries", overrides: map[string]any{"retries": 0}},
		{name: "bad level", overrides: map[string]any{"logging.level": "loud"}},
		{name: "bad format", overrides: map[string]any{"logging.format": "xml"}},
		{name: "bad mode", overrides: map[string]any{"detection.mode": "aggressive"}},
		{name: "bad blocklist", overrides: map[string]any{"detection.blocklist": []string{"arduino"}}},
		{name: "zero timeout", overrides: map[string]any{"timeout": time.Duration(0)}},
	}

	path := writeConfig(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(path, tt.overrides)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Setenv("VDM_CONFIG", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
