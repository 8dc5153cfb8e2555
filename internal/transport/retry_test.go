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

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vdm "github.com/ZaparooProject/go-vdm"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		wantErr    error
		name       string
		retryUntil int
		maxRetries int
		wantCalls  int
		permanent  bool
	}{
		{name: "first try", retryUntil: 0, maxRetries: 3, wantCalls: 1},
		{name: "after retries", retryUntil: 2, maxRetries: 3, wantCalls: 3},
		{name: "exhausted", retryUntil: 10, maxRetries: 2, wantCalls: 3, wantErr: vdm.ErrCommunicationFailed},
		{name: "permanent error", permanent: true, maxRetries: 3, wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls, retries := 0, 0
			config := RetryConfig{
				MaxRetries:  tt.maxRetries,
				RetryDelay:  time.Microsecond,
				Description: "read",
				OnRetry: func() error {
					retries++
					return nil
				},
			}
			got, err := WithRetry(context.Background(), config, func() (int, bool, error) {
				calls++
				if tt.permanent {
					return 0, false, errBoom
				}
				return calls, calls <= tt.retryUntil, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, got)
			assert.Equal(t, tt.wantCalls-1, retries)
		})
	}
}

func TestWithRetry_Callbacks(t *testing.T) {
	t.Parallel()

	errReset := errors.New("reset failed")
	_, err := WithRetry(context.Background(), RetryConfig{
		MaxRetries: 3,
		OnRetry:    func() error { return errReset },
	}, func() (int, bool, error) { return 0, true, nil })
	require.ErrorIs(t, err, errReset)

	errGiveUp := errors.New("give up")
	_, err = WithRetry(context.Background(), RetryConfig{
		MaxRetries:    1,
		OnRetryFailed: func() error { return errGiveUp },
	}, func() (int, bool, error) { return 0, true, nil })
	require.ErrorIs(t, err, errGiveUp)
}

func TestWithRetry_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := WithRetry(ctx, RetryConfig{MaxRetries: 3}, func() (int, bool, error) {
		calls++
		return 0, true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestTimeoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := TimeoutRetry(context.Background(), time.Second, time.Millisecond, func() (string, bool, error) {
		calls++
		return "ready", calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, 3, calls)

	start := time.Now()
	_, err = TimeoutRetry(context.Background(), 20*time.Millisecond, 2*time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, vdm.ErrTransportTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = TimeoutRetry(ctx, time.Second, 2*time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
