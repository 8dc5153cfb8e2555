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
	"errors"
	"fmt"
	"strings"
	"time"

	vdm "github.com/ZaparooProject/go-vdm"
	"github.com/ZaparooProject/go-vdm/frame"
	"github.com/ZaparooProject/go-vdm/polling"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

// session is what a command runs against. device is nil for offline
// commands.
type session struct {
	config    *Config
	output    *Output
	logger    *zap.Logger
	discovery *Discovery
	device    *vdm.Device
}

type command struct {
	run     func(ctx context.Context, s *session, args []string) error
	name    string
	usage   string
	summary string
	minArgs int
	maxArgs int // -1 for no limit
	offline bool
}

var commands []command

func init() {
	commands = []command{
		{name: "detect", summary: "list MCUs found on this host", offline: true, run: runDetect},
		{name: "commands", summary: "list known command codes", offline: true, run: runCommands},
		{
			name: "encode", usage: "TYPE SEQ CMD [HEX...]", summary: "build a frame and print it as hex",
			minArgs: 3, maxArgs: -1, offline: true, run: runEncode,
		},
		{
			name: "decode", usage: "HEX...", summary: "decode a frame from hex",
			minArgs: 1, maxArgs: -1, offline: true, run: runDecode,
		},
		{name: "ping", summary: "check the MCU answers", run: runPing},
		{name: "version", summary: "print the firmware version", run: runVersion},
		{name: "status", summary: "print system, power and network status", run: runStatus},
		{name: "rtc", usage: "[set [RFC3339]]", summary: "read or set the MCU clock", maxArgs: 2, run: runRTC},
		{name: "reset", summary: "reset the MCU", run: runReset},
		{
			name: "rotate", usage: "MOTOR ANGLE [VELOCITY]", summary: "turn a motor to an absolute angle",
			minArgs: 2, maxArgs: 3, run: runRotate(false),
		},
		{
			name: "step", usage: "MOTOR DELTA [VELOCITY]", summary: "turn a motor by a relative angle",
			minArgs: 2, maxArgs: 3, run: runRotate(true),
		},
		{name: "enable", usage: "MOTOR", summary: "enable a motor driver", minArgs: 1, maxArgs: 1, run: runMotor("enable")},
		{name: "disable", usage: "MOTOR", summary: "disable a motor driver", minArgs: 1, maxArgs: 1, run: runMotor("disable")},
		{name: "stop", usage: "MOTOR", summary: "stop a motor", minArgs: 1, maxArgs: 1, run: runMotor("stop")},
		{name: "origin", usage: "MOTOR", summary: "set the current angle as zero", minArgs: 1, maxArgs: 1, run: runMotor("origin")},
		{name: "pos", usage: "[MOTOR]", summary: "print motor positions", maxArgs: 1, run: runPosition},
		{name: "temp", usage: "SENSOR", summary: "read one temperature sensor", minArgs: 1, maxArgs: 1, run: runTemp},
		{name: "sensors", summary: "read every temperature sensor", run: runSensors},
		{
			name: "device", usage: "NAME [on|off|blink]", summary: "query or switch a peripheral",
			minArgs: 1, maxArgs: 2, run: runDevice,
		},
		{
			name: "raw", usage: "CMD [HEX...]", summary: "send any command and print the reply",
			minArgs: 1, maxArgs: -1, run: runRaw,
		},
		{name: "monitor", summary: "poll sensors until interrupted", run: runMonitor},
	}
}

func findCommand(name string) (*command, bool) {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i], true
		}
	}
	return nil, false
}

func (c *command) checkArgs(args []string) error {
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return fmt.Errorf("%w: %s %s", errUsage, c.name, c.usage)
	}
	return nil
}

func runDetect(ctx context.Context, s *session, _ []string) error {
	devices, err := s.discovery.Detect(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		s.output.DeviceFound(d)
	}
	return nil
}

func runCommands(_ context.Context, s *session, _ []string) error {
	for _, spec := range frame.Commands() {
		s.output.printf("0x%04X  %-18s request %s, response %s\n",
			uint16(spec.Code), spec.Name, spec.Request, spec.Response)
	}
	return nil
}

func runEncode(_ context.Context, s *session, args []string) error {
	typ, err := parseType(args[0])
	if err != nil {
		return err
	}
	seq, err := parseUint8(args[1])
	if err != nil {
		return err
	}
	cmd, err := parseCommand(args[2])
	if err != nil {
		return err
	}
	var payload []byte
	if len(args) > 3 {
		if payload, err = parseHex(args[3:]...); err != nil {
			return err
		}
	}
	if err := frame.ValidatePayload(typ, cmd, payload); err != nil {
		s.output.Warning("%v", err)
	}

	b, err := frame.Build(typ, seq, cmd, payload)
	if err != nil {
		return err
	}
	s.output.printf("% X\n", b)
	return nil
}

func runDecode(_ context.Context, s *session, args []string) error {
	b, err := parseHex(args...)
	if err != nil {
		return err
	}

	st := frame.NewStream(frame.MaxPayloadSize)
	_, _ = st.Write(b)
	found := 0
	for {
		f, ok := st.Next()
		if !ok {
			break
		}
		found++
		if err := f.Verify(); err != nil {
			s.output.Error("%s: %v", f, err)
			continue
		}
		if err := f.CheckVersion(); err != nil {
			s.output.Warning("%v", err)
		}
		s.output.Frame(f)
	}
	if n := st.Discarded(); n > 0 {
		s.output.Warning("%d noise byte(s) skipped", n)
	}
	if found == 0 {
		return errors.New("no complete frame in input")
	}
	if n := st.Buffered(); n > 0 {
		s.output.Warning("%d trailing byte(s) not decoded", n)
	}
	return nil
}

func runPing(ctx context.Context, s *session, _ []string) error {
	start := time.Now()
	if err := s.device.PingContext(ctx); err != nil {
		return err
	}
	s.output.OK("pong in %s", time.Since(start).Round(time.Microsecond))
	return nil
}

func runVersion(ctx context.Context, s *session, _ []string) error {
	fw, err := s.device.FirmwareVersionContext(ctx)
	if err != nil {
		return err
	}
	s.output.printf("firmware %s\n", fw)
	return nil
}

func runStatus(ctx context.Context, s *session, _ []string) error {
	sys, err := s.device.QueryStatusContext(ctx)
	if err != nil {
		return err
	}
	s.output.printf("state: %d\nuptime: %s\n", sys.State, sys.Uptime)

	power, err := s.device.QueryPowerContext(ctx)
	if err != nil {
		return err
	}
	s.output.printf("supply: %d mV, %d mA\n", power.Millivolts, power.Milliamps)

	network, err := s.device.QueryNetworkContext(ctx)
	if err != nil {
		return err
	}
	s.output.printf("network: link %d, rssi %d dBm\n", network.Link, network.RSSI)
	return nil
}

func runRTC(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		t, err := s.device.GetRTCContext(ctx)
		if err != nil {
			return err
		}
		s.output.printf("%s\n", t.UTC().Format(time.RFC3339))
		return nil
	}
	if args[0] != "set" {
		return fmt.Errorf("%w: rtc [set [RFC3339]]", errUsage)
	}

	t := time.Now()
	if len(args) == 2 {
		var err error
		if t, err = time.Parse(time.RFC3339, args[1]); err != nil {
			return fmt.Errorf("invalid time: %w", err)
		}
	}
	if err := s.device.SetRTCContext(ctx, t); err != nil {
		return err
	}
	s.output.OK("clock set to %s", t.UTC().Format(time.RFC3339))
	return nil
}

func runReset(ctx context.Context, s *session, _ []string) error {
	if err := s.device.ResetContext(ctx); err != nil {
		return err
	}
	s.output.OK("reset sent")
	return nil
}

func runRotate(relative bool) func(context.Context, *session, []string) error {
	return func(ctx context.Context, s *session, args []string) error {
		motor, err := parseMotor(args[0])
		if err != nil {
			return err
		}
		angle, err := parseFloat(args[1])
		if err != nil {
			return err
		}
		var velocity float32
		if len(args) == 3 {
			if velocity, err = parseFloat(args[2]); err != nil {
				return err
			}
		}

		if relative {
			err = s.device.MotorRotateRelativeContext(ctx, motor, angle, velocity)
		} else {
			err = s.device.MotorRotateContext(ctx, motor, angle, velocity)
		}
		if err != nil {
			return err
		}
		s.output.OK("motor %s rotating", motor)
		return nil
	}
}

func runMotor(action string) func(context.Context, *session, []string) error {
	return func(ctx context.Context, s *session, args []string) error {
		motor, err := parseMotor(args[0])
		if err != nil {
			return err
		}
		switch action {
		case "enable":
			err = s.device.MotorEnableContext(ctx, motor)
		case "disable":
			err = s.device.MotorDisableContext(ctx, motor)
		case "stop":
			err = s.device.MotorStopContext(ctx, motor)
		case "origin":
			err = s.device.MotorSetOriginContext(ctx, motor)
		}
		if err != nil {
			return err
		}
		s.output.OK("motor %s %s", motor, action)
		return nil
	}
}

func runPosition(ctx context.Context, s *session, args []string) error {
	if len(args) == 1 {
		motor, err := parseMotor(args[0])
		if err != nil {
			return err
		}
		if motor != frame.MotorAll {
			angle, err := s.device.MotorPositionContext(ctx, motor)
			if err != nil {
				return err
			}
			s.output.printf("%s: %.2f\n", motor, angle)
			return nil
		}
	}

	positions, err := s.device.MotorPositionsContext(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		s.output.printf("%s: %.2f\n", p.Motor, p.Angle)
	}
	return nil
}

func runTemp(ctx context.Context, s *session, args []string) error {
	sensor, err := parseUint8(args[0])
	if err != nil {
		return err
	}
	celsius, err := s.device.ReadTemperatureContext(ctx, sensor)
	if err != nil {
		return err
	}
	s.output.Temperatures(frame.Temperatures{{Sensor: sensor, Celsius: celsius}})
	return nil
}

func runSensors(ctx context.Context, s *session, _ []string) error {
	temps, err := s.device.ReadAllSensorsContext(ctx)
	if err != nil {
		return err
	}
	s.output.Temperatures(temps)
	return nil
}

func runDevice(ctx context.Context, s *session, args []string) error {
	id, err := parseDevice(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		state, err := s.device.DeviceStateContext(ctx, id)
		if err != nil {
			return err
		}
		s.output.printf("%s: %s\n", id, state)
		return nil
	}

	state, err := parseState(args[1])
	if err != nil {
		return err
	}
	if err := s.device.SetDeviceStateContext(ctx, id, state); err != nil {
		return err
	}
	s.output.OK("%s %s", id, state)
	return nil
}

func runRaw(ctx context.Context, s *session, args []string) error {
	cmd, err := parseCommand(args[0])
	if err != nil {
		return err
	}
	var payload []byte
	if len(args) > 1 {
		if payload, err = parseHex(args[1:]...); err != nil {
			return err
		}
	}

	reply, err := s.device.ExchangeContext(ctx, cmd, payload)
	if err != nil {
		return err
	}
	s.output.Verbose("%d attempt(s), %s", reply.Attempts, reply.Elapsed)
	s.output.Frame(reply.Frame)
	return nil
}

func runMonitor(ctx context.Context, s *session, _ []string) error {
	cfg := polling.DefaultConfig()
	cfg.Logger = s.logger.Named("monitor")
	cfg.PollInterval = s.config.Monitor.Interval
	cfg.MaxInterval = s.config.Monitor.MaxInterval
	cfg.ChangeThreshold = s.config.Monitor.ChangeThreshold
	cfg.PollTimeout = s.config.Timeout

	actor := polling.NewDeviceActor(s.device, cfg, polling.Callbacks{
		OnReading: s.output.Reading,
		OnChange:  s.output.Change,
		OnError:   func(err error) { s.output.Warning("%v", err) },
	})
	monitor := actor.Monitor()
	monitor.OnNotify = s.output.Notify

	if err := monitor.PollOnce(ctx); err != nil {
		return err
	}
	for _, r := range sortedReadings(monitor.State().Readings) {
		s.output.printf("sensor %d: %.2f C\n", r.Sensor, r.Celsius)
	}

	if err := actor.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-actor.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := actor.Stop(stopCtx)

	m := actor.GetMetrics()
	s.output.Info("%d poll(s), %d error(s), %d change(s), %d notification(s)",
		m.PollCycles, m.PollErrors, m.Changes, m.Notifications)
	return err
}

func sortedReadings(m map[uint8]polling.Reading) []polling.Reading {
	out := make([]polling.Reading, 0, len(m))
	for i := 0; i < 256 && len(out) < len(m); i++ {
		if r, ok := m[uint8(i)]; ok {
			out = append(out, r)
		}
	}
	return out
}

func usageText() string {
	var b strings.Builder
	b.WriteString("usage: vdmctl [flags] COMMAND [ARGS]\n\ncommands:\n")
	for _, c := range commands {
		line := c.name
		if c.usage != "" {
			line += " " + c.usage
		}
		fmt.Fprintf(&b, "  %-30s %s\n", line, c.summary)
	}
	return b.String()
}
