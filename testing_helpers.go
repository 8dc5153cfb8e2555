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
	"sync"
	"time"

	"github.com/ZaparooProject/go-vdm/frame"
)

// ReplyFunc produces the wire bytes an MCU sends back for one request.
// Each element is written to the read side in order; returning nothing
// simulates a lost request.
type ReplyFunc func(req frame.Frame) [][]byte

// MockTransport is an in-memory transport for tests. Written bytes are
// parsed into request frames and answered through a ReplyFunc; replies
// become readable immediately.
type MockTransport struct {
	handler     ReplyFunc
	writeErr    error
	readErr     error
	stream      *frame.Stream
	dataReady   chan struct{}
	done        chan struct{}
	rx          []byte
	written     [][]byte
	requests    []frame.Frame
	timeout     time.Duration
	corruptNext int
	dropNext    int
	mu          sync.Mutex
	closed      bool
}

// NewMockTransport creates a mock transport that answers nothing until a
// handler is set
func NewMockTransport() *MockTransport {
	return &MockTransport{
		stream:    frame.NewStream(0),
		dataReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
		timeout:   10 * time.Millisecond,
	}
}

// NewMockTransportWithHandler creates a mock transport answering through fn
func NewMockTransportWithHandler(fn ReplyFunc) *MockTransport {
	m := NewMockTransport()
	m.SetHandler(fn)
	return m
}

// SetHandler sets the function that answers requests
func (m *MockTransport) SetHandler(fn ReplyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// SetWriteError makes every following Write fail with err; nil clears it
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadError makes every following Read fail with err; nil clears it
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// CorruptNextReplies flips a checksum bit in the next n reply frames
func (m *MockTransport) CorruptNextReplies(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptNext = n
}

// DropNextRequests swallows the next n requests without answering
func (m *MockTransport) DropNextRequests(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropNext = n
}

// Inject queues raw bytes on the read side, as if sent unsolicited
func (m *MockTransport) Inject(b []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, b...)
	m.mu.Unlock()
	m.signal()
}

// Requests returns the request frames written so far
func (m *MockTransport) Requests() []frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame.Frame(nil), m.requests...)
}

// Written returns the raw buffers passed to Write
func (m *MockTransport) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	for i, w := range m.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Read returns queued reply bytes or waits up to the read timeout
func (m *MockTransport) Read(p []byte) (int, error) {
	return m.ReadContext(context.Background(), p)
}

// ReadContext is Read that also returns when ctx ends
func (m *MockTransport) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	if n, ok, err := m.readLocked(p); ok {
		m.mu.Unlock()
		return n, err
	}
	timeout := m.timeout
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-m.dataReady:
	case <-m.done:
	case <-timer.C:
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n, _, err := m.readLocked(p)
	return n, err
}

// WriteContext is Write with an up-front cancellation check
func (m *MockTransport) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.Write(p)
}

func (m *MockTransport) readLocked(p []byte) (int, bool, error) {
	switch {
	case m.closed:
		return 0, true, ErrTransportClosed
	case m.readErr != nil:
		return 0, true, m.readErr
	case len(m.rx) > 0:
		n := copy(p, m.rx)
		m.rx = m.rx[n:]
		return n, true, nil
	default:
		return 0, false, nil
	}
}

// Write records p, parses any complete requests and queues their replies
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrTransportClosed
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return 0, err
	}

	m.written = append(m.written, append([]byte(nil), p...))
	_, _ = m.stream.Write(p)
	queued := false
	for {
		req, ok := m.stream.Next()
		if !ok {
			break
		}
		m.requests = append(m.requests, req)
		if m.dropNext > 0 {
			m.dropNext--
			continue
		}
		if m.handler == nil {
			continue
		}
		for _, reply := range m.handler(req) {
			reply = append([]byte(nil), reply...)
			if m.corruptNext > 0 && len(reply) > 0 {
				m.corruptNext--
				reply[len(reply)-1] ^= 0x01
			}
			m.rx = append(m.rx, reply...)
			queued = true
		}
	}
	m.mu.Unlock()

	if queued {
		m.signal()
	}
	return len(p), nil
}

func (m *MockTransport) signal() {
	select {
	case m.dataReady <- struct{}{}:
	default:
	}
}

// Close marks the transport closed and wakes blocked readers
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// SetTimeout sets how long Read waits for data
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected returns true until Close is called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// BlockingMockTransport is a transport whose reads block until Unblock is
// called. It is used for testing deadlock scenarios and context
// cancellation.
type BlockingMockTransport struct {
	blockChan chan struct{}
	Response  []byte
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockTransport creates a new blocking mock transport
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		timeout:   5 * time.Second,
	}
}

// Read blocks until Unblock is called, the timeout expires or the
// transport is closed
func (m *BlockingMockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return 0, ErrTransportClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-blockChan:
	case <-timer.C:
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	return copy(p, m.Response), nil
}

// Write accepts everything immediately
func (m *BlockingMockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	return len(p), nil
}

// Unblock allows blocked reads to proceed
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks transport as closed
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetResponse sets the bytes returned by an unblocked read
func (m *BlockingMockTransport) SetResponse(response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = response
}

// SetTimeout configures the timeout for blocking reads
func (m *BlockingMockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected returns false once closed
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
