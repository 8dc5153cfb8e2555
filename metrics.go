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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts frame traffic for one or more devices. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FramesSent     *prometheus.CounterVec // labels: type
	FramesReceived *prometheus.CounterVec // labels: type
	ChecksumErrors prometheus.Counter
	Nacks          *prometheus.CounterVec // labels: code
	Retries        prometheus.Counter
	Timeouts       prometheus.Counter
	BytesDiscarded prometheus.Counter
	ExchangeTime   *prometheus.HistogramVec // labels: cmd
}

// NewMetrics creates the device metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vdm_frames_sent_total",
			Help: "Frames written to the MCU by type.",
		}, []string{"type"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vdm_frames_received_total",
			Help: "Structurally valid frames read from the MCU by type.",
		}, []string{"type"}),
		ChecksumErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vdm_checksum_errors_total",
			Help: "Received frames whose CRC did not match.",
		}),
		Nacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vdm_nacks_total",
			Help: "Commands rejected by the MCU by error code.",
		}, []string{"code"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vdm_exchange_retries_total",
			Help: "Exchange attempts after the first.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vdm_exchange_timeouts_total",
			Help: "Exchange attempts that received no reply in time.",
		}),
		BytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vdm_bytes_discarded_total",
			Help: "Noise bytes skipped while resynchronising.",
		}),
		ExchangeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vdm_exchange_seconds",
			Help:    "Time from request to accepted reply by command.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"cmd"}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesSent, m.FramesReceived, m.ChecksumErrors, m.Nacks,
			m.Retries, m.Timeouts, m.BytesDiscarded, m.ExchangeTime)
	}
	return m
}

func (m *Metrics) frameSent(typ string) {
	if m != nil {
		m.FramesSent.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) frameReceived(typ string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) checksumError() {
	if m != nil {
		m.ChecksumErrors.Inc()
	}
}

func (m *Metrics) nack(code string) {
	if m != nil {
		m.Nacks.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

func (m *Metrics) discarded(n int) {
	if m != nil && n > 0 {
		m.BytesDiscarded.Add(float64(n))
	}
}

func (m *Metrics) observe(cmd string, seconds float64) {
	if m != nil {
		m.ExchangeTime.WithLabelValues(cmd).Observe(seconds)
	}
}
