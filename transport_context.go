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
)

// TransportContext is a Transport whose reads and writes honour context
// cancellation.
type TransportContext interface {
	Transport

	// ReadContext reads like Read but returns early when ctx ends
	ReadContext(ctx context.Context, p []byte) (int, error)

	// WriteContext writes like Write but returns early when ctx ends
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// transportContextAdapter wraps a Transport to provide context support
type transportContextAdapter struct {
	Transport
}

type ioResult struct {
	err  error
	data []byte
	n    int
}

// ReadContext runs the read in a goroutine so a stuck transport cannot hold
// the caller past cancellation. The goroutine reads into its own buffer, so
// p is never touched after ReadContext returns.
//
// A read abandoned on cancellation keeps running, and whatever it returns is
// dropped: bytes it already took from the link are lost. Callers should
// treat the stream as out of sync after a cancelled read.
func (t *transportContextAdapter) ReadContext(ctx context.Context, p []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled before read: %w", ctx.Err())
	default:
	}

	resultChan := make(chan ioResult, 1)
	buf := make([]byte, len(p))
	go func() {
		n, err := t.Read(buf)
		resultChan <- ioResult{n: n, err: err, data: buf}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled while waiting for data: %w", ctx.Err())
	case res := <-resultChan:
		copy(p, res.data[:res.n])
		return res.n, res.err
	}
}

// WriteContext runs the write in a goroutine. A write abandoned on
// cancellation may still complete in the background.
func (t *transportContextAdapter) WriteContext(ctx context.Context, p []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled before write: %w", ctx.Err())
	default:
	}

	data := append([]byte(nil), p...)
	resultChan := make(chan ioResult, 1)
	go func() {
		n, err := t.Write(data)
		resultChan <- ioResult{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled while writing: %w", ctx.Err())
	case res := <-resultChan:
		return res.n, res.err
	}
}

// AsTransportContext converts a Transport to TransportContext
func AsTransportContext(t Transport) TransportContext {
	if tc, ok := t.(TransportContext); ok {
		return tc
	}
	return &transportContextAdapter{Transport: t}
}
