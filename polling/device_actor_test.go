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

package polling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-vdm/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceActor_StartStop(t *testing.T) {
	t.Parallel()
	device, _, _ := createMockDevice(t)

	var readings atomic.Int64
	actor := NewDeviceActor(device, fastConfig(), Callbacks{
		OnReading: func(Reading) { readings.Add(1) },
	})
	assert.Nil(t, actor.Done())

	require.NoError(t, actor.Start(context.Background()))
	require.ErrorIs(t, actor.Start(context.Background()), ErrAlreadyRunning)
	done := actor.Done()
	require.NotNil(t, done)

	require.Eventually(t, func() bool { return actor.GetMetrics().PollCycles >= 3 }, 2*time.Second, time.Millisecond)
	assert.Positive(t, readings.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, actor.Stop(ctx))

	select {
	case <-done:
	default:
		t.Fatal("goroutine still running after Stop")
	}
	assert.False(t, actor.Monitor().IsRunning())
	require.NoError(t, actor.Stop(ctx), "second stop is a no-op")
}

func TestDeviceActor_Restart(t *testing.T) {
	t.Parallel()
	device, _, _ := createMockDevice(t)

	actor := NewDeviceActor(device, fastConfig(), Callbacks{})
	ctx := context.Background()

	for range 2 {
		require.NoError(t, actor.Start(ctx))
		require.Eventually(t, actor.Monitor().IsRunning, time.Second, time.Millisecond)
		require.NoError(t, actor.Stop(ctx))
	}
}

func TestDeviceActor_Metrics(t *testing.T) {
	t.Parallel()
	device, _, mcu := createMockDevice(t)
	mcu.SetNack(frame.CmdSensorReadAll, frame.ErrCodeDeviceBusy)

	var errs atomic.Int64
	actor := NewDeviceActor(device, fastConfig(), Callbacks{
		OnError: func(error) { errs.Add(1) },
	})
	require.NoError(t, actor.Start(context.Background()))
	t.Cleanup(func() { _ = actor.Stop(context.Background()) })

	require.Eventually(t, func() bool { return actor.GetMetrics().PollErrors >= 2 }, 2*time.Second, time.Millisecond)
	m := actor.GetMetrics()
	assert.GreaterOrEqual(t, m.PollCycles, m.PollErrors)
	assert.Equal(t, 5*time.Millisecond, m.CurrentInterval)
	assert.Positive(t, errs.Load())
}

func TestDeviceActor_InvalidStart(t *testing.T) {
	t.Parallel()

	require.Error(t, NewDeviceActor(nil, nil, Callbacks{}).Start(context.Background()))

	device, _, _ := createMockDevice(t)
	require.Error(t, NewDeviceActor(device, &Config{}, Callbacks{}).Start(context.Background()))
}

func TestDeviceActor_ParentCancel(t *testing.T) {
	t.Parallel()
	device, _, _ := createMockDevice(t)

	actor := NewDeviceActor(device, fastConfig(), Callbacks{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, actor.Start(ctx))
	done := actor.Done()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("actor ignored parent cancellation")
	}
	require.NoError(t, actor.Stop(context.Background()))
}
