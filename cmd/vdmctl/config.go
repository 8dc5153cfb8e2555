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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config is the vdmctl configuration. Values come from, in increasing
// priority: defaults, the config file, VDM_* environment variables and
// command line flags.
type Config struct {
	Port      string          `mapstructure:"port"`
	I2CBus    string          `mapstructure:"i2c_bus"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Detection DetectionConfig `mapstructure:"detection"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit float64         `mapstructure:"rate_limit"`
	BaudRate  int             `mapstructure:"baud_rate"`
	Retries   int             `mapstructure:"retries"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   FileLogConfig `mapstructure:"file"`
}

// FileLogConfig configures the rotating log file. An empty Filename
// disables file output.
type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// DetectionConfig configures auto-detection
type DetectionConfig struct {
	Mode         string        `mapstructure:"mode"`
	Blocklist    []string      `mapstructure:"blocklist"`
	IgnorePaths  []string      `mapstructure:"ignore_paths"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// MonitorConfig configures the monitor command
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	ChangeThreshold float32       `mapstructure:"change_threshold"`
}

// LoadConfig reads the configuration. path overrides VDM_CONFIG; when both
// are empty vdmctl.yaml is looked up in the working directory and
// $HOME/.config/vdmctl, and a missing file is not an error. overrides
// holds values set on the command line, keyed like the config file.
func LoadConfig(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("VDM_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("vdmctl")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vdmctl")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "")
	v.SetDefault("i2c_bus", "")
	v.SetDefault("baud_rate", 115200)
	v.SetDefault("timeout", time.Second)
	v.SetDefault("retries", 3)
	v.SetDefault("rate_limit", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 7)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	def := detection.DefaultOptions()
	v.SetDefault("detection.mode", def.Mode.String())
	v.SetDefault("detection.blocklist", def.Blocklist)
	v.SetDefault("detection.ignore_paths", []string{})
	v.SetDefault("detection.timeout", def.Timeout)
	v.SetDefault("detection.probe_timeout", def.ProbeTimeout)

	v.SetDefault("monitor.interval", time.Second)
	v.SetDefault("monitor.max_interval", 5*time.Second)
	v.SetDefault("monitor.change_threshold", 0.5)
}

// normalize validates the loaded values and rewrites blocklist entries
// into canonical VID:PID form
func (c *Config) normalize() error {
	if c.Port != "" && c.I2CBus != "" {
		return errors.New("port and i2c_bus are mutually exclusive")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud_rate %d", c.BaudRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	if _, err := detection.ParseMode(c.Detection.Mode); err != nil {
		return err
	}

	blocklist := make([]string, 0, len(c.Detection.Blocklist))
	for _, entry := range c.Detection.Blocklist {
		vidpid := detection.FormatVIDPID(detection.ParseVIDPID(entry))
		if vidpid == "" {
			return fmt.Errorf("invalid blocklist entry %q", entry)
		}
		blocklist = append(blocklist, vidpid)
	}
	c.Detection.Blocklist = blocklist
	return nil
}

// DetectionOptions converts the detection section to detection.Options
func (c *Config) DetectionOptions() *detection.Options {
	mode, _ := detection.ParseMode(c.Detection.Mode)
	return &detection.Options{
		Mode:         mode,
		Blocklist:    c.Detection.Blocklist,
		IgnorePaths:  c.Detection.IgnorePaths,
		Timeout:      c.Detection.Timeout,
		ProbeTimeout: c.Detection.ProbeTimeout,
	}
}
