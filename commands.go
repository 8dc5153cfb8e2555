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

package vdm

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-vdm/frame"
)

// command sends p and accepts either an Ack or an empty Response
func (d *Device) command(ctx context.Context, p frame.Payload) error {
	_, err := d.Send(ctx, p)
	return err
}

// query sends p and decodes the response body as T
func query[T frame.Payload](ctx context.Context, d *Device, p frame.Payload) (T, error) {
	var zero T
	reply, err := d.Send(ctx, p)
	if err != nil {
		return zero, err
	}
	v, err := frame.ParseResponseAs[T](p.Command(), reply.Payload())
	if err != nil {
		return zero, NewTransportError(p.Command().String(), "",
			fmt.Errorf("%w: %w", ErrInvalidResponse, err), ErrorTypePermanent)
	}
	return v, nil
}

func checkMotor(m frame.MotorID) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unknown motor %s", ErrInvalidParameter, m)
	}
	return nil
}

// Ping checks that the MCU is answering
func (d *Device) Ping() error {
	return d.PingContext(context.Background())
}

// PingContext is Ping with context support
func (d *Device) PingContext(ctx context.Context) error {
	return d.command(ctx, frame.Bare(frame.CmdPing))
}

// FirmwareVersion returns the firmware and protocol version of the MCU
func (d *Device) FirmwareVersion() (frame.FirmwareInfo, error) {
	return d.FirmwareVersionContext(context.Background())
}

// FirmwareVersionContext is FirmwareVersion with context support
func (d *Device) FirmwareVersionContext(ctx context.Context) (frame.FirmwareInfo, error) {
	return query[frame.FirmwareInfo](ctx, d, frame.Bare(frame.CmdVersion))
}

// Reset restarts the MCU. The reply is sent before the restart.
func (d *Device) Reset() error {
	return d.ResetContext(context.Background())
}

// ResetContext is Reset with context support
func (d *Device) ResetContext(ctx context.Context) error {
	return d.command(ctx, frame.Bare(frame.CmdReset))
}

// Sleep puts the MCU into its low-power state
func (d *Device) Sleep() error {
	return d.SleepContext(context.Background())
}

// SleepContext is Sleep with context support
func (d *Device) SleepContext(ctx context.Context) error {
	return d.command(ctx, frame.Bare(frame.CmdSleep))
}

// Wakeup brings the MCU out of its low-power state
func (d *Device) Wakeup() error {
	return d.WakeupContext(context.Background())
}

// WakeupContext is Wakeup with context support
func (d *Device) WakeupContext(ctx context.Context) error {
	return d.command(ctx, frame.Bare(frame.CmdWakeup))
}

// SetRTC sets the MCU real-time clock. Sub-second precision is dropped.
func (d *Device) SetRTC(t time.Time) error {
	return d.SetRTCContext(context.Background(), t)
}

// SetRTCContext is SetRTC with context support
func (d *Device) SetRTCContext(ctx context.Context, t time.Time) error {
	if t.Unix() < 0 || t.Unix() > int64(^uint32(0)) {
		return fmt.Errorf("%w: %s outside the 32-bit unix range", ErrInvalidParameter, t)
	}
	return d.command(ctx, frame.SetRTC{Time: t})
}

// GetRTC reads the MCU real-time clock
func (d *Device) GetRTC() (time.Time, error) {
	return d.GetRTCContext(context.Background())
}

// GetRTCContext is GetRTC with context support
func (d *Device) GetRTCContext(ctx context.Context) (time.Time, error) {
	r, err := query[frame.RTCTime](ctx, d, frame.Bare(frame.CmdGetRTC))
	return r.Time, err
}

// TempControl enables or disables closed-loop heating of a heater towards
// target degrees Celsius
func (d *Device) TempControl(heater frame.DeviceID, enable bool, target float32) error {
	return d.TempControlContext(context.Background(), heater, enable, target)
}

// TempControlContext is TempControl with context support
func (d *Device) TempControlContext(ctx context.Context, heater frame.DeviceID, enable bool, target float32) error {
	if heater != frame.DeviceHeater1 && heater != frame.DeviceHeater2 {
		return fmt.Errorf("%w: %s is not a heater", ErrInvalidParameter, heater)
	}
	return d.command(ctx, frame.TempControl{Heater: heater, Enable: enable, Target: target})
}

// QueryPower reads the supply voltage and current
func (d *Device) QueryPower() (frame.PowerStatus, error) {
	return d.QueryPowerContext(context.Background())
}

// QueryPowerContext is QueryPower with context support
func (d *Device) QueryPowerContext(ctx context.Context) (frame.PowerStatus, error) {
	return query[frame.PowerStatus](ctx, d, frame.Bare(frame.CmdQueryPower))
}

// QueryStatus reads the MCU state and uptime
func (d *Device) QueryStatus() (frame.SystemStatus, error) {
	return d.QueryStatusContext(context.Background())
}

// QueryStatusContext is QueryStatus with context support
func (d *Device) QueryStatusContext(ctx context.Context) (frame.SystemStatus, error) {
	return query[frame.SystemStatus](ctx, d, frame.Bare(frame.CmdQueryStatus))
}

// QueryNetwork reads the link state and signal strength
func (d *Device) QueryNetwork() (frame.NetworkStatus, error) {
	return d.QueryNetworkContext(context.Background())
}

// QueryNetworkContext is QueryNetwork with context support
func (d *Device) QueryNetworkContext(ctx context.Context) (frame.NetworkStatus, error) {
	return query[frame.NetworkStatus](ctx, d, frame.Bare(frame.CmdQueryNetwork))
}

// MotorRotate turns a motor to an absolute angle in degrees at velocity
// degrees per second
func (d *Device) MotorRotate(motor frame.MotorID, angle, velocity float32) error {
	return d.MotorRotateContext(context.Background(), motor, angle, velocity)
}

// MotorRotateContext is MotorRotate with context support
func (d *Device) MotorRotateContext(ctx context.Context, motor frame.MotorID, angle, velocity float32) error {
	if err := checkMotor(motor); err != nil {
		return err
	}
	return d.command(ctx, frame.MotorRotate{Motor: motor, Angle: angle, Velocity: velocity})
}

// MotorRotateRelative turns a motor by delta degrees
func (d *Device) MotorRotateRelative(motor frame.MotorID, delta, velocity float32) error {
	return d.MotorRotateRelativeContext(context.Background(), motor, delta, velocity)
}

// MotorRotateRelativeContext is MotorRotateRelative with context support
func (d *Device) MotorRotateRelativeContext(ctx context.Context, motor frame.MotorID, delta, velocity float32) error {
	if err := checkMotor(motor); err != nil {
		return err
	}
	return d.command(ctx, frame.MotorRotate{Motor: motor, Angle: delta, Velocity: velocity, Relative: true})
}

func (d *Device) motorTarget(ctx context.Context, cmd frame.Command, motor frame.MotorID) error {
	if err := checkMotor(motor); err != nil {
		return err
	}
	return d.command(ctx, frame.MotorTarget{Cmd: cmd, Motor: motor})
}

// MotorEnable energises a motor driver
func (d *Device) MotorEnable(motor frame.MotorID) error {
	return d.MotorEnableContext(context.Background(), motor)
}

// MotorEnableContext is MotorEnable with context support
func (d *Device) MotorEnableContext(ctx context.Context, motor frame.MotorID) error {
	return d.motorTarget(ctx, frame.CmdMotorEnable, motor)
}

// MotorDisable releases a motor driver
func (d *Device) MotorDisable(motor frame.MotorID) error {
	return d.MotorDisableContext(context.Background(), motor)
}

// MotorDisableContext is MotorDisable with context support
func (d *Device) MotorDisableContext(ctx context.Context, motor frame.MotorID) error {
	return d.motorTarget(ctx, frame.CmdMotorDisable, motor)
}

// MotorStop halts a motor immediately
func (d *Device) MotorStop(motor frame.MotorID) error {
	return d.MotorStopContext(context.Background(), motor)
}

// MotorStopContext is MotorStop with context support
func (d *Device) MotorStopContext(ctx context.Context, motor frame.MotorID) error {
	return d.motorTarget(ctx, frame.CmdMotorStop, motor)
}

// MotorSetOrigin makes the current position of a motor its zero angle
func (d *Device) MotorSetOrigin(motor frame.MotorID) error {
	return d.MotorSetOriginContext(context.Background(), motor)
}

// MotorSetOriginContext is MotorSetOrigin with context support
func (d *Device) MotorSetOriginContext(ctx context.Context, motor frame.MotorID) error {
	return d.motorTarget(ctx, frame.CmdMotorSetOrigin, motor)
}

// MotorPosition reads the angle of one motor
func (d *Device) MotorPosition(motor frame.MotorID) (float32, error) {
	return d.MotorPositionContext(context.Background(), motor)
}

// MotorPositionContext is MotorPosition with context support
func (d *Device) MotorPositionContext(ctx context.Context, motor frame.MotorID) (float32, error) {
	if motor == frame.MotorAll {
		return 0, fmt.Errorf("%w: use MotorPositions for all motors", ErrInvalidParameter)
	}
	if err := checkMotor(motor); err != nil {
		return 0, err
	}
	pos, err := query[frame.MotorPosition](ctx, d, frame.MotorTarget{Cmd: frame.CmdMotorGetPos, Motor: motor})
	if err != nil {
		return 0, err
	}
	if pos.Motor != motor {
		return 0, fmt.Errorf("%w: asked for motor %s, got %s", ErrUnexpectedReply, motor, pos.Motor)
	}
	return pos.Angle, nil
}

// MotorSetVelocity sets the default velocity of a motor
func (d *Device) MotorSetVelocity(motor frame.MotorID, velocity float32) error {
	return d.MotorSetVelocityContext(context.Background(), motor, velocity)
}

// MotorSetVelocityContext is MotorSetVelocity with context support
func (d *Device) MotorSetVelocityContext(ctx context.Context, motor frame.MotorID, velocity float32) error {
	if err := checkMotor(motor); err != nil {
		return err
	}
	return d.command(ctx, frame.MotorVelocity{Motor: motor, Velocity: velocity})
}

// MotorPositions reads the angle of every motor
func (d *Device) MotorPositions() (frame.MotorPositions, error) {
	return d.MotorPositionsContext(context.Background())
}

// MotorPositionsContext is MotorPositions with context support
func (d *Device) MotorPositionsContext(ctx context.Context) (frame.MotorPositions, error) {
	return query[frame.MotorPositions](ctx, d, frame.Bare(frame.CmdMotorGetAll))
}

// ReadTemperature reads one temperature sensor in degrees Celsius
func (d *Device) ReadTemperature(sensor uint8) (float32, error) {
	return d.ReadTemperatureContext(context.Background(), sensor)
}

// ReadTemperatureContext is ReadTemperature with context support
func (d *Device) ReadTemperatureContext(ctx context.Context, sensor uint8) (float32, error) {
	t, err := query[frame.Temperature](ctx, d, frame.SensorRead{Sensor: sensor})
	if err != nil {
		return 0, err
	}
	if t.Sensor != sensor {
		return 0, fmt.Errorf("%w: asked for sensor %d, got %d", ErrUnexpectedReply, sensor, t.Sensor)
	}
	return t.Celsius, nil
}

// ReadAllSensors reads every temperature sensor
func (d *Device) ReadAllSensors() (frame.Temperatures, error) {
	return d.ReadAllSensorsContext(context.Background())
}

// ReadAllSensorsContext is ReadAllSensors with context support
func (d *Device) ReadAllSensorsContext(ctx context.Context) (frame.Temperatures, error) {
	return query[frame.Temperatures](ctx, d, frame.Bare(frame.CmdSensorReadAll))
}

// ConfigureSensor sets how often the MCU samples a sensor. The interval
// is sent in whole milliseconds and must fit 16 bits.
func (d *Device) ConfigureSensor(sensor uint8, interval time.Duration) error {
	return d.ConfigureSensorContext(context.Background(), sensor, interval)
}

// ConfigureSensorContext is ConfigureSensor with context support
func (d *Device) ConfigureSensorContext(ctx context.Context, sensor uint8, interval time.Duration) error {
	if interval < time.Millisecond || interval > 65535*time.Millisecond {
		return fmt.Errorf("%w: sensor interval %s out of range", ErrInvalidParameter, interval)
	}
	return d.command(ctx, frame.SensorConfig{Sensor: sensor, Interval: interval})
}

// SetDeviceState switches a peripheral
func (d *Device) SetDeviceState(device frame.DeviceID, state frame.DeviceState) error {
	return d.SetDeviceStateContext(context.Background(), device, state)
}

// SetDeviceStateContext is SetDeviceState with context support
func (d *Device) SetDeviceStateContext(ctx context.Context, device frame.DeviceID, state frame.DeviceState) error {
	cmd, ok := device.ControlCommand()
	if !ok {
		return fmt.Errorf("%w: unknown device %s", ErrInvalidParameter, device)
	}
	return d.command(ctx, frame.DeviceControl{Cmd: cmd, Device: device, State: state})
}

// DeviceState reads the switch state of a peripheral
func (d *Device) DeviceState(device frame.DeviceID) (frame.DeviceState, error) {
	return d.DeviceStateContext(context.Background(), device)
}

// DeviceStateContext is DeviceState with context support
func (d *Device) DeviceStateContext(ctx context.Context, device frame.DeviceID) (frame.DeviceState, error) {
	if !device.Valid() {
		return 0, fmt.Errorf("%w: unknown device %s", ErrInvalidParameter, device)
	}
	st, err := query[frame.DeviceStatus](ctx, d, frame.DeviceQuery{Device: device})
	if err != nil {
		return 0, err
	}
	if st.Device != device {
		return 0, fmt.Errorf("%w: asked for device %s, got %s", ErrUnexpectedReply, device, st.Device)
	}
	return st.State, nil
}
