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

// Command vdmctl talks to a VDM MCU over UART or I2C
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	// Import detection packages to register detectors
	_ "github.com/ZaparooProject/go-vdm/detection/i2c"
	_ "github.com/ZaparooProject/go-vdm/detection/uart"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"port":         "port",
	"i2c":          "i2c_bus",
	"baud":         "baud_rate",
	"timeout":      "timeout",
	"retries":      "retries",
	"rate-limit":   "rate_limit",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"log-file":     "logging.file.filename",
	"metrics-addr": "metrics.addr",
	"detect-mode":  "detection.mode",
	"interval":     "monitor.interval",
}

// globalFlags holds the flags that are not config keys
type globalFlags struct {
	configPath string
	verbose    bool
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *globalFlags) {
	fs := flag.NewFlagSet("vdmctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usageText())
		_, _ = fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}

	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", "", "Config file (default $VDM_CONFIG or ./vdmctl.yaml)")
	fs.BoolVar(&g.verbose, "verbose", false, "Enable verbose output")
	fs.String("port", "", "Serial port of the MCU")
	fs.String("i2c", "", "I2C bus of the MCU, e.g. /dev/i2c-1:0x42")
	fs.Int("baud", 115200, "Serial baud rate")
	fs.Duration("timeout", time.Second, "Per-attempt reply timeout")
	fs.Int("retries", 3, "Attempts per exchange")
	fs.Float64("rate-limit", 0, "Maximum exchanges per second (0 for unlimited)")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-format", "console", "Log format: console or json")
	fs.String("log-file", "", "Also write logs to this rotating file")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.String("detect-mode", "safe", "Detection mode: passive, safe or full")
	fs.Duration("interval", time.Second, "Monitor poll interval")
	return fs, g
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, flags := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	output := NewOutput(stdout, flags.verbose)
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := findCommand(fs.Arg(0))
	if !ok {
		output.Error("unknown command %q", fs.Arg(0))
		fs.Usage()
		return 2
	}
	cmdArgs := fs.Args()[1:]
	if err := cmd.checkArgs(cmdArgs); err != nil {
		output.Error("%v", err)
		return 2
	}

	config, err := LoadConfig(flags.configPath, flagOverrides(fs))
	if err != nil {
		output.Error("%v", err)
		return 1
	}

	logger, err := newLogger(config.Logging)
	if err != nil {
		output.Error("%v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, shutdown := startMetrics(config.Metrics, logger)
	defer shutdown()

	s := &session{
		config:    config,
		output:    output,
		logger:    logger,
		discovery: NewDiscovery(config, output, logger, metrics),
	}

	if !cmd.offline {
		device, err := s.discovery.Connect(ctx)
		if err != nil {
			output.Error("%v", err)
			return 1
		}
		defer func() {
			if err := device.Close(); err != nil {
				logger.Warn("close device", zap.Error(err))
			}
		}()
		s.device = device
	}

	if err := cmd.run(ctx, s, cmdArgs); err != nil {
		output.Error("%v", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// flagOverrides collects the flags given explicitly so they win over the
// config file and environment
func flagOverrides(fs *flag.FlagSet) map[string]any {
	overrides := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if g, ok := f.Value.(flag.Getter); ok {
			overrides[key] = g.Get()
		} else {
			overrides[key] = f.Value.String()
		}
	})
	return overrides
}

// startMetrics serves Prometheus metrics when an address is configured.
// The returned Metrics is nil otherwise.
func startMetrics(cfg MetricsConfig, logger *zap.Logger) (*vdm.Metrics, func()) {
	if cfg.Addr == "" {
		return nil, func() {}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := vdm.NewMetrics(reg)

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", cfg.Addr), zap.String("path", path))

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
