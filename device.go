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
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ZaparooProject/go-vdm/detection"
	"github.com/ZaparooProject/go-vdm/frame"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for exchanges
	RetryConfig *RetryConfig
	// Timeout is how long one attempt waits for its reply
	Timeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Timeout:     500 * time.Millisecond,
	}
}

// NotifyHandler receives unsolicited notification frames. It runs on the
// goroutine that read the frame while the device lock is held, so it must
// not call back into the Device.
type NotifyHandler func(f frame.Frame)

// PassthroughHandler receives tunnelled secondary-bus traffic. The same
// locking rule as NotifyHandler applies.
type PassthroughHandler func(p frame.Passthrough)

// Reply is an accepted Ack or Response to a request
type Reply struct {
	Frame    frame.Frame
	Attempts int
	Elapsed  time.Duration
}

// Payload returns the reply body
func (r *Reply) Payload() []byte { return r.Frame.Payload }

// IsAck reports whether the MCU answered with a bare acknowledgement
func (r *Reply) IsAck() bool { return r.Frame.Type == frame.TypeAck }

// Device is a VDM MCU reached over a Transport.
//
// Thread Safety: Device is safe for concurrent use. Exchanges are
// serialised on an internal lock; each request waits for its own reply
// before the next one is written.
type Device struct {
	transport     Transport
	config        *DeviceConfig
	builder       *frame.Builder
	stream        *frame.Stream
	logger        *zap.Logger
	metrics       *Metrics
	limiter       *rate.Limiter
	onNotify      NotifyHandler
	onPassthrough PassthroughHandler
	firmware      *frame.FirmwareInfo
	readBuf       []byte
	writeBuf      []byte
	discarded     int
	oversized     int
	mu            sync.Mutex
	closed        bool
}

// New creates a device on the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		builder:   frame.NewBuilder(nil),
		logger:    zap.NewNop(),
		readBuf:   make([]byte, 512),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	maxPayload := frame.MaxPayloadSize
	if transport != nil {
		params := device.exchangeParams()
		maxPayload = params.MaxPayload
		if err := transport.SetTimeout(min(device.config.Timeout, params.ReadSlice)); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	device.stream = frame.NewStream(maxPayload)
	return device, nil
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	detectOptions          *detection.Options
	deviceOptions          []Option
	timeout                time.Duration
	autoDetect             bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDetectionOptions sets the options used for auto-detection
func WithDetectionOptions(opts *detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectOptions = opts
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds the handshake performed by ConnectDevice
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

// ConnectDevice opens a transport from a path or auto-detection, creates
// the device and performs the init handshake.
//
// Example usage:
//
//	// Connect to specific device
//	device, err := vdm.ConnectDevice(ctx, "/dev/ttyACM0", vdm.WithTransportFactory(openUART))
//
//	// Auto-detect device
//	device, err := vdm.ConnectDevice(ctx, "", vdm.WithAutoDetection(),
//	    vdm.WithTransportFromDeviceFactory(openDetected))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	transport, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}
	if err := device.InitContext(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	return device, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config.detectOptions, config.transportDeviceFactory)
	}
	return createManualTransport(path, config.transportFactory)
}

func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}
	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}
	return transport, nil
}

func createAutoDetectedTransport(
	ctx context.Context, opts *detection.Options, factory TransportFromDeviceFactory,
) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport device factory not provided")
	}
	if opts == nil {
		defaults := detection.DefaultOptions()
		defaults.Mode = detection.Safe
		opts = &defaults
	}

	devices, err := detection.DetectAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return factory(devices[0])
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Sequence returns the counter request sequence numbers are drawn from
func (d *Device) Sequence() *frame.Sequence {
	return d.builder.Sequence()
}

// Firmware returns the version reported during init, or nil before init
func (d *Device) Firmware() *frame.FirmwareInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// Init checks that the MCU answers and speaks this protocol version
func (d *Device) Init() error {
	return d.InitContext(context.Background())
}

// InitContext is Init with context support
func (d *Device) InitContext(ctx context.Context) error {
	if err := d.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	info, err := d.FirmwareVersionContext(ctx)
	if err != nil {
		return fmt.Errorf("firmware version failed: %w", err)
	}
	if info.Protocol != frame.Version {
		return fmt.Errorf("%w: MCU reports 0x%02X", frame.ErrVersionUnsupported, info.Protocol)
	}

	d.mu.Lock()
	d.firmware = &info
	d.mu.Unlock()
	d.logger.Info("device initialised",
		zap.String("transport", string(d.transport.Type())),
		zap.String("firmware", info.String()))
	return nil
}

// SetTimeout sets how long each attempt waits for its reply. It waits for
// an exchange in progress to finish.
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Timeout = timeout
	if d.transport == nil {
		return nil
	}
	slice := min(timeout, d.exchangeParams().ReadSlice)
	if err := d.transport.SetTimeout(slice); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.RetryConfig = config
	if tr, ok := d.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(config)
	}
}

// SetNotifyHandler replaces the notification handler and returns the
// previous one. It must not be called from inside a handler.
func (d *Device) SetNotifyHandler(h NotifyHandler) NotifyHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.onNotify
	d.onNotify = h
	return prev
}

// Exchange sends a request and waits for its Ack or Response
func (d *Device) Exchange(cmd frame.Command, payload []byte) (*Reply, error) {
	return d.ExchangeContext(context.Background(), cmd, payload)
}

// ExchangeContext sends a request and waits for the reply carrying the same
// sequence number and command. Replies with a bad checksum and missing
// replies are retried with a fresh sequence number. A Nack is returned as
// *NackError without retrying.
func (d *Device) ExchangeContext(ctx context.Context, cmd frame.Command, payload []byte) (*Reply, error) {
	if err := frame.ValidatePayload(frame.TypeRequest, cmd, payload); err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			return nil, NewDataTooLargeError("exchange", "")
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrTransportClosed
	}

	start := time.Now()
	attempts := 0
	var reply *Reply
	err := RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		attempts++
		if attempts > 1 {
			d.metrics.retry()
			d.logger.Warn("retrying exchange",
				zap.Stringer("cmd", cmd), zap.Int("attempt", attempts))
		}
		var err error
		reply, err = d.roundTrip(ctx, cmd, payload)
		return err
	})
	if err != nil {
		d.logger.Debug("exchange failed",
			zap.Stringer("cmd", cmd), zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}

	reply.Attempts = attempts
	reply.Elapsed = time.Since(start)
	d.metrics.observe(cmd.String(), reply.Elapsed.Seconds())
	return reply, nil
}

// Send exchanges a typed request payload
func (d *Device) Send(ctx context.Context, p frame.Payload) (*Reply, error) {
	return d.ExchangeContext(ctx, p.Command(), p.AppendTo(nil))
}

// SendPassthrough writes raw bytes for a secondary bus. Traffic coming back
// from the bus is delivered to the passthrough handler.
func (d *Device) SendPassthrough(ctx context.Context, bus uint8, data []byte) error {
	if _, err := frame.PassthroughType(bus); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if len(data) > frame.MaxPayloadSize {
		return NewDataTooLargeError("passthrough", "")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrTransportClosed
	}

	buf := d.frameBuf(len(data))
	n, seq, err := d.builder.Passthrough(buf, bus, data)
	if err != nil {
		return fmt.Errorf("build passthrough frame: %w", err)
	}
	d.logger.Debug("tx passthrough", zap.Uint8("bus", bus), zap.Uint8("seq", seq), zap.Int("len", len(data)))
	if _, err := AsTransportContext(d.transport).WriteContext(ctx, buf[:n]); err != nil {
		return d.writeError(ctx, err)
	}
	d.metrics.frameSent("passthrough")
	return nil
}

// Listen reads unsolicited frames until ctx ends, handing notifications and
// passthrough traffic to the configured handlers. Exchanges may run while
// Listen is active; the device lock is released between reads.
func (d *Device) Listen(ctx context.Context) error {
	tc := AsTransportContext(d.transport)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.pollOnce(ctx, tc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (d *Device) pollOnce(ctx context.Context, tc TransportContext) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrTransportClosed
	}

	n, err := tc.ReadContext(ctx, d.readBuf)
	if err != nil {
		return d.readError(ctx, err)
	}
	if n > 0 {
		_, _ = d.stream.Write(d.readBuf[:n])
	}
	for {
		f, ok := d.stream.Next()
		d.noteDiscards()
		if !ok {
			return nil
		}
		if !d.accept(f) {
			continue
		}
		if !d.dispatchUnsolicited(f) {
			d.logger.Debug("dropping unexpected frame", zap.Stringer("frame", f))
		}
	}
}

// Close closes the device connection
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

var errReplyDeadline = errors.New("reply deadline passed")

func (d *Device) roundTrip(ctx context.Context, cmd frame.Command, payload []byte) (*Reply, error) {
	tc := AsTransportContext(d.transport)
	params := d.exchangeParams()

	out, seq, err := d.builder.AppendRequest(d.writeBuf[:0], cmd, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	d.writeBuf = out

	d.logger.Debug("tx",
		zap.Stringer("type", frame.TypeRequest), zap.Uint8("seq", seq),
		zap.Stringer("cmd", cmd), zap.Int("len", len(payload)))
	if _, err := tc.WriteContext(ctx, out); err != nil {
		return nil, d.writeError(ctx, err)
	}
	d.metrics.frameSent(frame.TypeRequest.String())

	if params.Turnaround > 0 {
		if err := sleepContext(ctx, params.Turnaround); err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(d.config.Timeout)
	for {
		f, err := d.receive(ctx, tc, deadline)
		if errors.Is(err, errReplyDeadline) {
			d.metrics.timeout()
			d.dropStalledHead()
			return nil, NewTimeoutError("exchange "+cmd.String(), "")
		}
		if err != nil {
			return nil, err
		}

		if err := f.Verify(); err != nil {
			d.metrics.checksumError()
			d.logger.Warn("discarding frame with bad checksum", zap.Stringer("frame", f), zap.Error(err))
			d.flushInput()
			return nil, NewChecksumError("exchange "+cmd.String(), "", err)
		}
		if err := f.CheckVersion(); err != nil {
			return nil, NewTransportError("exchange "+cmd.String(), "", err, ErrorTypePermanent)
		}
		d.metrics.frameReceived(typeLabel(f.Type))
		d.logger.Debug("rx", zap.Stringer("type", f.Type), zap.Uint8("seq", f.Seq),
			zap.Stringer("cmd", f.Cmd), zap.Uint16("len", f.Len))

		if d.dispatchUnsolicited(f) {
			continue
		}
		if f.Seq != seq || f.Cmd != cmd {
			d.logger.Debug("ignoring stale reply", zap.Stringer("frame", f), zap.Uint8("want_seq", seq))
			continue
		}

		switch f.Type {
		case frame.TypeNack:
			code, ok := f.NackCode()
			if !ok {
				return nil, NewInvalidResponseError("exchange "+cmd.String(), "")
			}
			d.metrics.nack(code.String())
			return nil, &NackError{Cmd: cmd, Code: code, Seq: seq}
		case frame.TypeResponse:
			if err := frame.ValidatePayload(frame.TypeResponse, cmd, f.Payload); err != nil {
				return nil, NewTransportError("exchange "+cmd.String(), "",
					fmt.Errorf("%w: %w", ErrInvalidResponse, err), ErrorTypePermanent)
			}
			return &Reply{Frame: f}, nil
		case frame.TypeAck:
			return &Reply{Frame: f}, nil
		default:
			d.logger.Debug("ignoring frame", zap.Stringer("frame", f))
		}
	}
}

// receive returns the next structurally valid frame, reading from the
// transport in short slices until one is complete or the deadline passes.
func (d *Device) receive(ctx context.Context, tc TransportContext, deadline time.Time) (frame.Frame, error) {
	for {
		f, ok := d.stream.Next()
		d.noteDiscards()
		if ok {
			return f, nil
		}
		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}
		if time.Now().After(deadline) {
			return frame.Frame{}, errReplyDeadline
		}

		n, err := tc.ReadContext(ctx, d.readBuf)
		if err != nil {
			return frame.Frame{}, d.readError(ctx, err)
		}
		if n > 0 {
			_, _ = d.stream.Write(d.readBuf[:n])
		}
	}
}

// accept verifies an unsolicited frame, logging and dropping bad ones
func (d *Device) accept(f frame.Frame) bool {
	if err := f.Verify(); err != nil {
		d.metrics.checksumError()
		d.logger.Warn("discarding frame with bad checksum", zap.Stringer("frame", f), zap.Error(err))
		return false
	}
	if err := f.CheckVersion(); err != nil {
		d.logger.Warn("discarding frame", zap.Stringer("frame", f), zap.Error(err))
		return false
	}
	d.metrics.frameReceived(typeLabel(f.Type))
	return true
}

func (d *Device) dispatchUnsolicited(f frame.Frame) bool {
	if pt, ok := f.Passthrough(); ok {
		if d.onPassthrough != nil {
			d.onPassthrough(pt)
		} else {
			d.logger.Debug("no passthrough handler", zap.Uint8("bus", pt.Bus), zap.Int("len", len(pt.Data)))
		}
		return true
	}
	if f.Type == frame.TypeNotify {
		if d.onNotify != nil {
			d.onNotify(f)
		} else {
			d.logger.Debug("no notify handler", zap.Stringer("frame", f))
		}
		return true
	}
	return false
}

// dropStalledHead discards the first buffered byte after a reply deadline.
// A noise header with a plausible length otherwise holds the stream waiting
// for a frame that never completes, swallowing every later reply.
func (d *Device) dropStalledHead() {
	if d.stream.Buffered() == 0 {
		return
	}
	d.stream.Skip(1)
	d.noteDiscards()
}

func (d *Device) noteDiscards() {
	total := d.stream.Discarded()
	if total == d.discarded {
		return
	}
	d.metrics.discarded(total - d.discarded)
	d.logger.Warn("resynchronised frame stream", zap.Int("skipped", total-d.discarded))
	d.discarded = total

	if over := d.stream.Oversized(); over != d.oversized {
		d.logger.Warn("frame longer than transport payload limit dropped",
			zap.Int("frames", over-d.oversized),
			zap.Int("max_payload", d.exchangeParams().MaxPayload))
		d.oversized = over
	}
}

func (d *Device) flushInput() {
	d.stream.Reset()
	d.discarded = 0
	d.oversized = 0
	if f, ok := d.transport.(InputFlusher); ok {
		if err := f.FlushInput(); err != nil {
			d.logger.Debug("flush input failed", zap.Error(err))
		}
	}
}

func (d *Device) frameBuf(payloadLen int) []byte {
	size := frame.Size(payloadLen)
	if cap(d.writeBuf) < size {
		d.writeBuf = make([]byte, size)
	}
	return d.writeBuf[:size]
}

func (*Device) writeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, ErrTransportClosed) {
		return NewTransportError("write", "", err, ErrorTypePermanent)
	}
	return NewTransportError("write", "", fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
}

func (*Device) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, ErrTransportClosed) {
		return NewTransportError("read", "", err, ErrorTypePermanent)
	}
	return NewTransportError("read", "", fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
}

func typeLabel(t frame.Type) string {
	if frame.IsPassthrough(t) {
		return "passthrough"
	}
	return t.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
