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
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/ZaparooProject/go-vdm/frame"
	testutil "github.com/ZaparooProject/go-vdm/internal/testing"
)

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      2 * time.Second,
	}
}

func newTestDevice(t *testing.T, opts ...Option) (*Device, *MockTransport, *testutil.VirtualMCU) {
	t.Helper()

	mcu := testutil.NewVirtualMCU()
	mock := NewMockTransportWithHandler(mcu.Handle)
	base := []Option{WithTimeout(50 * time.Millisecond), WithRetryConfig(testRetryConfig())}
	device, err := New(mock, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, mock, mcu
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport Transport
		name      string
	}{
		{
			name:      "Valid_MockTransport",
			transport: NewMockTransport(),
		},
		{
			name:      "Nil_Transport",
			transport: nil, // New() doesn't validate nil transport, but exchanging on it will panic
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.transport)
			require.NoError(t, err)
			assert.NotNil(t, device)
			if tt.transport != nil {
				assert.Equal(t, tt.transport, device.Transport())
			}
			assert.Nil(t, device.Firmware())
		})
	}
}

func TestDevice_InitContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup          func(*testutil.VirtualMCU)
		name           string
		errorSubstring string
		wantErr        error
	}{
		{
			name:  "Successful_Initialization",
			setup: func(*testutil.VirtualMCU) {},
		},
		{
			name: "Ping_Rejected",
			setup: func(mcu *testutil.VirtualMCU) {
				mcu.SetNack(frame.CmdPing, frame.ErrCodeNotReady)
			},
			errorSubstring: "ping failed",
		},
		{
			name: "Version_Rejected",
			setup: func(mcu *testutil.VirtualMCU) {
				mcu.SetNack(frame.CmdVersion, frame.ErrCodeExecFailed)
			},
			errorSubstring: "firmware version failed",
		},
		{
			name: "Protocol_Mismatch",
			setup: func(mcu *testutil.VirtualMCU) {
				mcu.Firmware.Protocol = 0x20
			},
			wantErr: frame.ErrVersionUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, _, mcu := newTestDevice(t)
			tt.setup(mcu)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			err := device.InitContext(ctx)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, device.Firmware())
			case tt.errorSubstring != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorSubstring)
				assert.True(t, IsNack(err, 0))
			default:
				require.NoError(t, err)
				require.NotNil(t, device.Firmware())
				assert.Equal(t, testutil.TestFirmware, *device.Firmware())
				assert.Equal(t, 1, mcu.Calls(frame.CmdPing))
				assert.Equal(t, 1, mcu.Calls(frame.CmdVersion))
			}
		})
	}
}

func TestDevice_Exchange_WireFormat(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)

	// The motor is not enabled, so the MCU rejects the command
	err := device.MotorRotate(frame.MotorX, 90, 10)
	require.Error(t, err)
	assert.True(t, IsNack(err, frame.ErrCodeNotReady))

	written := mock.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "aa55100000300100090142b4000041200000a4b6", hex.EncodeToString(written[0]))
}

func TestDevice_Exchange_SequenceAdvances(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t, WithSequence(frame.NewSequence(254)))

	for range 4 {
		require.NoError(t, device.Ping())
	}

	var seqs []uint8
	for _, req := range mock.Requests() {
		seqs = append(seqs, req.Seq)
	}
	assert.Equal(t, []uint8{254, 255, 0, 1}, seqs)
	assert.Equal(t, uint8(2), device.Sequence().Peek())
}

func TestDevice_Exchange_Reply(t *testing.T) {
	t.Parallel()

	device, _, _ := newTestDevice(t)

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.True(t, reply.IsAck())
	assert.Empty(t, reply.Payload())
	assert.Equal(t, 1, reply.Attempts)
	assert.Positive(t, reply.Elapsed)

	reply, err = device.Exchange(frame.CmdVersion, nil)
	require.NoError(t, err)
	assert.False(t, reply.IsAck())
	assert.Equal(t, testutil.TestFirmware.AppendTo(nil), reply.Payload())
}

func TestDevice_Exchange_NackNotRetried(t *testing.T) {
	t.Parallel()

	device, mock, mcu := newTestDevice(t)
	mcu.SetNack(frame.CmdMotorStop, frame.ErrCodeDeviceBusy)

	err := device.MotorStop(frame.MotorY)
	require.Error(t, err)

	var nack *NackError
	require.ErrorAs(t, err, &nack)
	assert.Equal(t, frame.CmdMotorStop, nack.Cmd)
	assert.Equal(t, frame.ErrCodeDeviceBusy, nack.Code)
	assert.Equal(t, uint8(0), nack.Seq)
	assert.Len(t, mock.Requests(), 1)
}

func TestDevice_Exchange_ChecksumRetry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	device, mock, mcu := newTestDevice(t, WithMetrics(metrics))
	mock.CorruptNextReplies(1)

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Attempts)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.NotEqual(t, reqs[0].Seq, reqs[1].Seq, "retry must use a fresh sequence number")
	assert.Equal(t, 2, mcu.Calls(frame.CmdPing))

	assert.InDelta(t, 1, promtest.ToFloat64(metrics.ChecksumErrors), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(metrics.Retries), 0)
	assert.InDelta(t, 2, promtest.ToFloat64(metrics.FramesSent.WithLabelValues("request")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(metrics.FramesReceived.WithLabelValues("ack")), 0)
}

func TestDevice_Exchange_ChecksumExhausted(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.CorruptNextReplies(10)

	_, err := device.Exchange(frame.CmdPing, nil)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Len(t, mock.Requests(), 3)
}

func TestDevice_Exchange_TimeoutRetry(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics(nil)
	device, mock, _ := newTestDevice(t, WithMetrics(metrics))
	mock.DropNextRequests(1)

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Attempts)
	assert.InDelta(t, 1, promtest.ToFloat64(metrics.Timeouts), 0)
}

func TestDevice_Exchange_NoReply(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.SetHandler(nil)

	start := time.Now()
	_, err := device.Exchange(frame.CmdPing, nil)
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Len(t, mock.Requests(), 3)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDevice_Exchange_StaleReplyIgnored(t *testing.T) {
	t.Parallel()

	device, mock, mcu := newTestDevice(t)
	mock.SetHandler(func(req frame.Frame) [][]byte {
		stale := testutil.BuildAck(req.Seq-1, req.Cmd)
		other := testutil.BuildAck(req.Seq, frame.CmdReset)
		return append([][]byte{stale, other}, mcu.Handle(req)...)
	})

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Attempts)
	assert.Equal(t, frame.CmdPing, reply.Frame.Cmd)
}

func TestDevice_Exchange_NoiseResync(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics(nil)
	device, mock, mcu := newTestDevice(t, WithMetrics(metrics))
	mock.SetHandler(func(req frame.Frame) [][]byte {
		return append([][]byte{{0x00, 0x13, 0xAA, 0x13, 0x7F}}, mcu.Handle(req)...)
	})

	version, err := device.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, testutil.TestFirmware, version)
	assert.InDelta(t, 5, promtest.ToFloat64(metrics.BytesDiscarded), 0)
}

func TestDevice_Exchange_RecoversFromNoiseHeader(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics(nil)
	device, mock, _ := newTestDevice(t, WithMetrics(metrics))
	// Header-shaped noise declaring a 3000 byte payload
	mock.Inject([]byte{0xAA, 0x55, 0x10, 0x00, 0x00, 0x00, 0x01, 0x0B, 0xB8})

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Attempts)
	assert.InDelta(t, 9, promtest.ToFloat64(metrics.BytesDiscarded), 0)

	for range 3 {
		reply, err = device.Exchange(frame.CmdPing, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, reply.Attempts)
	}
}

func TestDevice_Exchange_OversizedFrameWarning(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	device, mock, _ := newTestDevice(t, WithLogger(zap.New(core)))
	// Debug reply header declaring 5000 bytes, above the mock link limit
	mock.Inject([]byte{0xAA, 0x55, 0x10, 0x02, 0x07, 0xF0, 0x01, 0x13, 0x88})

	reply, err := device.Exchange(frame.CmdPing, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Attempts)

	warnings := logs.FilterMessage("frame longer than transport payload limit dropped").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(4096), warnings[0].ContextMap()["max_payload"])
}

func TestDevice_Exchange_InvalidResponse(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.SetHandler(func(req frame.Frame) [][]byte {
		return [][]byte{testutil.BuildResponse(req.Seq, req.Cmd, []byte{0x10})}
	})

	_, err := device.FirmwareVersion()
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.False(t, IsRetryable(err))
	assert.Len(t, mock.Requests(), 1)
}

func TestDevice_Exchange_VersionMismatch(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.SetHandler(func(req frame.Frame) [][]byte {
		wire := testutil.BuildAck(req.Seq, req.Cmd)
		wire[2] = 0x20
		frame.PutUint16(wire[len(wire)-2:], frame.Checksum(wire[2:len(wire)-2]))
		return [][]byte{wire}
	})

	err := device.Ping()
	require.ErrorIs(t, err, frame.ErrVersionUnsupported)
	assert.Len(t, mock.Requests(), 1)
}

func TestDevice_Exchange_WriteError(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	mock.SetWriteError(errors.New("cable unplugged"))

	err := device.Ping()
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.Contains(t, err.Error(), "cable unplugged")
}

func TestDevice_Exchange_ContextCancelled(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport()
	defer func() { _ = blocking.Close() }()

	device, err := New(blocking, WithTimeout(5*time.Second), WithRetryConfig(testRetryConfig()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = device.PingContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDevice_NotifyDuringExchange(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var notes []frame.Frame
	var tunnelled []frame.Passthrough

	device, mock, mcu := newTestDevice(t,
		WithNotifyHandler(func(f frame.Frame) {
			mu.Lock()
			defer mu.Unlock()
			notes = append(notes, f)
		}),
		WithPassthroughHandler(func(p frame.Passthrough) {
			mu.Lock()
			defer mu.Unlock()
			tunnelled = append(tunnelled, p)
		}))

	mock.SetHandler(func(req frame.Frame) [][]byte {
		note := testutil.BuildNotify(req.Seq, 0x4003, []byte{0x01, 0x02})
		pt := testutil.BuildPassthrough(req.Seq, 2, []byte("rs485"))
		return append([][]byte{note, pt}, mcu.Handle(req)...)
	})

	require.NoError(t, device.Ping())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notes, 1)
	assert.Equal(t, frame.Command(0x4003), notes[0].Cmd)
	assert.Equal(t, []byte{0x01, 0x02}, notes[0].Payload)
	require.Len(t, tunnelled, 1)
	assert.Equal(t, uint8(2), tunnelled[0].Bus)
	assert.Equal(t, []byte("rs485"), tunnelled[0].Data)
}

func TestDevice_SetNotifyHandler(t *testing.T) {
	t.Parallel()

	first := make(chan frame.Frame, 1)
	second := make(chan frame.Frame, 1)
	device, mock, mcu := newTestDevice(t, WithNotifyHandler(func(f frame.Frame) { first <- f }))

	prev := device.SetNotifyHandler(func(f frame.Frame) { second <- f })
	require.NotNil(t, prev)

	mock.SetHandler(func(req frame.Frame) [][]byte {
		return append([][]byte{testutil.BuildNotify(req.Seq, 0x4003, []byte{0x07})}, mcu.Handle(req)...)
	})
	require.NoError(t, device.Ping())

	require.Len(t, second, 1)
	assert.Empty(t, first)

	// Restoring the previous handler routes notifications back to it
	device.SetNotifyHandler(prev)
	require.NoError(t, device.Ping())
	require.Len(t, first, 1)
	assert.Equal(t, []byte{0x07}, (<-first).Payload)
}

func TestDevice_Listen(t *testing.T) {
	t.Parallel()

	notes := make(chan frame.Frame, 4)
	device, mock, _ := newTestDevice(t, WithNotifyHandler(func(f frame.Frame) { notes <- f }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- device.Listen(ctx) }()

	mock.Inject(testutil.Corrupt(testutil.BuildNotify(1, 0x4003, []byte{0xEE})))
	mock.Inject(testutil.BuildNotify(2, 0x4003, []byte{0x42}))

	select {
	case f := <-notes:
		assert.Equal(t, uint8(2), f.Seq)
		assert.Equal(t, []byte{0x42}, f.Payload)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	// Exchanges still work while Listen holds the read side between polls
	require.NoError(t, device.Ping())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	assert.Empty(t, notes)
}

func TestDevice_SendPassthrough(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)
	require.NoError(t, device.SendPassthrough(context.Background(), 5, []byte{0x01, 0x03}))

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	pt, ok := reqs[0].Passthrough()
	require.True(t, ok)
	assert.Equal(t, uint8(5), pt.Bus)
	assert.Equal(t, []byte{0x01, 0x03}, pt.Data)
	assert.Equal(t, uint8(1), device.Sequence().Peek())
}

func TestDevice_RateLimit(t *testing.T) {
	t.Parallel()

	device, _, _ := newTestDevice(t, WithRateLimit(20, 1))

	start := time.Now()
	for range 3 {
		require.NoError(t, device.Ping())
	}
	// The burst covers the first ping; the other two wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestDevice_ConcurrentExchanges(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := device.ReadAllSensors()
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[uint8]bool)
	for _, req := range mock.Requests() {
		assert.False(t, seen[req.Seq], "sequence %d reused", req.Seq)
		seen[req.Seq] = true
	}
	assert.Len(t, seen, workers)
}

func TestDevice_Logging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	device, mock, _ := newTestDevice(t, WithLogger(zap.New(core)))
	mock.CorruptNextReplies(1)

	require.NoError(t, device.Init())

	assert.Equal(t, 1, logs.FilterMessage("device initialised").Len())
	assert.Equal(t, 1, logs.FilterMessage("retrying exchange").Len())
	assert.Equal(t, 1, logs.FilterMessage("discarding frame with bad checksum").Len())
	assert.NotZero(t, logs.FilterMessage("tx").Len())
}

func TestDevice_SetTimeout(t *testing.T) {
	t.Parallel()

	device, _, _ := newTestDevice(t)
	require.NoError(t, device.SetTimeout(200*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, device.config.Timeout)
	require.ErrorIs(t, device.SetTimeout(0), ErrInvalidParameter)
}

func TestDevice_SetTimeoutDuringExchanges(t *testing.T) {
	t.Parallel()

	device, _, _ := newTestDevice(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 20 {
			_, err := device.Exchange(frame.CmdPing, nil)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 20 {
			assert.NoError(t, device.SetTimeout(time.Duration(50+i)*time.Millisecond))
			device.SetRetryConfig(testRetryConfig())
		}
	}()
	wg.Wait()

	device.mu.Lock()
	defer device.mu.Unlock()
	assert.Equal(t, 69*time.Millisecond, device.config.Timeout)
}

func TestDevice_SetRetryConfig(t *testing.T) {
	t.Parallel()

	inner := NewMockTransport()
	wrapped := NewTransportWithRetry(inner, nil)
	device, err := New(wrapped)
	require.NoError(t, err)

	config := testRetryConfig()
	device.SetRetryConfig(config)
	assert.Same(t, config, device.config.RetryConfig)
	assert.Same(t, config, wrapped.config)

	require.NoError(t, WithMaxRetries(7)(device))
	assert.Equal(t, 7, wrapped.config.MaxAttempts)
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	device, mock, _ := newTestDevice(t)

	require.NoError(t, device.Close())
	require.NoError(t, device.Close(), "Close must be idempotent")
	assert.False(t, mock.IsConnected())

	err := device.Ping()
	require.ErrorIs(t, err, ErrTransportClosed)
	require.ErrorIs(t, device.SendPassthrough(context.Background(), 0, []byte{1}), ErrTransportClosed)
	require.ErrorIs(t, device.Listen(context.Background()), ErrTransportClosed)
}

func TestConnectDevice(t *testing.T) {
	t.Parallel()

	mcu := testutil.NewVirtualMCU()
	var opened string
	factory := func(path string) (Transport, error) {
		opened = path
		return NewMockTransportWithHandler(mcu.Handle), nil
	}

	device, err := ConnectDevice(context.Background(), "/dev/ttyACM0",
		WithTransportFactory(factory),
		WithConnectTimeout(time.Second),
		WithDeviceOptions(WithTimeout(50*time.Millisecond)))
	require.NoError(t, err)
	defer func() { _ = device.Close() }()

	assert.Equal(t, "/dev/ttyACM0", opened)
	require.NotNil(t, device.Firmware())
	assert.Equal(t, uint8(1), device.Firmware().Major)
}

func TestConnectDevice_Errors(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "/dev/ttyACM0")
	require.ErrorContains(t, err, "transport factory not provided")

	_, err = ConnectDevice(context.Background(), "/dev/ttyACM0",
		WithTransportFactory(func(string) (Transport, error) { return nil, ErrDeviceNotFound }))
	require.ErrorIs(t, err, ErrDeviceNotFound)

	// A silent MCU fails the handshake and the transport is closed
	silent := NewMockTransport()
	_, err = ConnectDevice(context.Background(), "/dev/ttyACM0",
		WithTransportFactory(func(string) (Transport, error) { return silent, nil }),
		WithDeviceOptions(WithTimeout(10*time.Millisecond), WithRetryConfig(testRetryConfig())))
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.False(t, silent.IsConnected())

	_, err = ConnectDevice(context.Background(), "", WithAutoDetection())
	require.ErrorContains(t, err, "transport device factory not provided")
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.frameSent("request")
		m.frameReceived("ack")
		m.checksumError()
		m.nack("busy")
		m.retry()
		m.timeout()
		m.discarded(3)
		m.observe("ping", 0.01)
	})
}

func TestMetricsRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	device, _, mcu := newTestDevice(t, WithMetrics(metrics))
	mcu.SetNack(frame.CmdReset, frame.ErrCodeExecFailed)

	require.NoError(t, device.Ping())
	require.Error(t, device.Reset())

	assert.InDelta(t, 1, promtest.ToFloat64(metrics.Nacks.WithLabelValues("execution failed")), 0)
	assert.Equal(t, 1, promtest.CollectAndCount(metrics.ExchangeTime))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "vdm_frames_sent_total")
	assert.Contains(t, names, "vdm_nacks_total")
}
