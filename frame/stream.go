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

package frame

import "bytes"

// Stream reassembles frames from a byte stream such as a serial line.
// Bytes that cannot start a frame are skipped one at a time until the next
// sync marker. Frames whose declared length exceeds the configured limit are
// treated as noise, which stops a corrupted length field from stalling the
// stream for up to 64 KiB. A Stream is not safe for concurrent use.
type Stream struct {
	buf        []byte
	maxPayload int
	discarded  int
	oversized  int
}

// NewStream returns a Stream that accepts payloads up to maxPayload bytes.
// Values outside (0, MaxPayloadSize] select MaxPayloadSize.
func NewStream(maxPayload int) *Stream {
	if maxPayload <= 0 || maxPayload > MaxPayloadSize {
		maxPayload = MaxPayloadSize
	}
	return &Stream{maxPayload: maxPayload}
}

// Write appends received bytes. It never fails.
func (s *Stream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. The returned payload is a copy and
// stays valid after further writes. Checksums are not verified.
func (s *Stream) Next() (Frame, bool) {
	skip, n, over, f := locate(s.buf, s.maxPayload)
	s.discarded += skip
	s.oversized += over
	if n == 0 {
		s.consume(skip)
		return Frame{}, false
	}
	f = f.Clone()
	s.consume(skip + n)
	return f, true
}

func (s *Stream) consume(n int) {
	if n == 0 {
		return
	}
	rest := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:rest]
}

// Buffered returns the number of bytes held waiting for a complete frame.
func (s *Stream) Buffered() int { return len(s.buf) }

// Discarded returns the number of noise bytes skipped so far.
func (s *Stream) Discarded() int { return s.discarded }

// Oversized returns how many otherwise well-formed headers were skipped
// because their declared length exceeds the stream limit. A non-zero count
// usually means the peer sent a reply too large for the link, not noise.
func (s *Stream) Oversized() int { return s.oversized }

// Skip drops up to n buffered bytes from the head of the stream and counts
// them as discarded. Callers use it to abandon a partial frame, after which
// Next resyncs on the following sync marker.
func (s *Stream) Skip(n int) {
	n = min(max(n, 0), len(s.buf))
	s.discarded += n
	s.consume(n)
}

// Reset drops buffered bytes and clears the discard counters.
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
	s.discarded = 0
	s.oversized = 0
}

// locate finds the first frame in buf. It returns the number of leading
// bytes to drop, the size of the frame that follows them (0 when none is
// complete yet), how many current-version headers were rejected for their
// length, and the frame itself.
func locate(buf []byte, maxPayload int) (skip, n, over int, f Frame) {
	for skip < len(buf) {
		i := bytes.IndexByte(buf[skip:], Sync1)
		if i < 0 {
			return len(buf), 0, over, Frame{}
		}
		skip += i
		rest := buf[skip:]
		if len(rest) > 1 && rest[offsetSync2] != Sync2 {
			skip++
			continue
		}
		if len(rest) >= offsetData && int(Uint16(rest[offsetLen:])) > maxPayload {
			if rest[offsetVersion] == Version {
				over++
			}
			skip++
			continue
		}
		fr, size, err := Decode(rest)
		if err != nil {
			// Too short or incomplete: wait for more bytes.
			return skip, 0, over, Frame{}
		}
		return skip, size, over, fr
	}
	return skip, 0, over, Frame{}
}

// Split is a bufio.SplitFunc yielding whole frames, for use with
// bufio.Scanner. Noise between frames is dropped. Tokens alias the scanner
// buffer; decode them with Decode before the next Scan. The default scanner
// buffer is smaller than MaxFrameSize, so call Scanner.Buffer when large
// payloads are expected.
func Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	skip, n, _, _ := locate(data, MaxPayloadSize)
	if n > 0 {
		return skip + n, data[skip : skip+n], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return skip, nil, nil
}
