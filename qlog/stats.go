/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package qlog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats registers one connection's counters/gauges with a
// prometheus.Registerer: packets sent/lost/acked, smoothed RTT, and
// congestion window, matching the teacher's prometheus/metrics package
// pattern of plain Counter/Gauge fields built at construction time and
// exposed only through update methods (never raw prometheus types to
// callers).
type PrometheusStats struct {
	packetsSent   prometheus.Counter
	packetsLost   prometheus.Counter
	packetsAcked  prometheus.Counter
	bytesSent     prometheus.Counter
	smoothedRTT   prometheus.Gauge
	congestionWnd prometheus.Gauge
}

// NewPrometheusStats builds and registers the metric set under reg,
// labeled by connID so multiple connections in one process don't
// collide. reg may be prometheus.DefaultRegisterer.
func NewPrometheusStats(reg prometheus.Registerer, connID string) (*PrometheusStats, error) {
	labels := prometheus.Labels{"conn_id": connID}

	s := &PrometheusStats{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "quic",
			Name:        "packets_sent_total",
			Help:        "Packets sent on this connection.",
			ConstLabels: labels,
		}),
		packetsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "quic",
			Name:        "packets_lost_total",
			Help:        "Packets declared lost on this connection.",
			ConstLabels: labels,
		}),
		packetsAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "quic",
			Name:        "packets_acked_total",
			Help:        "Packets acknowledged on this connection.",
			ConstLabels: labels,
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "quic",
			Name:        "bytes_sent_total",
			Help:        "Bytes sent on this connection.",
			ConstLabels: labels,
		}),
		smoothedRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "quic",
			Name:        "smoothed_rtt_seconds",
			Help:        "Current smoothed RTT estimate.",
			ConstLabels: labels,
		}),
		congestionWnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "quic",
			Name:        "congestion_window_bytes",
			Help:        "Current congestion window.",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{
		s.packetsSent, s.packetsLost, s.packetsAcked,
		s.bytesSent, s.smoothedRTT, s.congestionWnd,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStats) OnPacketSent(bytes int) {
	s.packetsSent.Inc()
	s.bytesSent.Add(float64(bytes))
}

func (s *PrometheusStats) OnPacketLost() { s.packetsLost.Inc() }

func (s *PrometheusStats) OnPacketAcked() { s.packetsAcked.Inc() }

func (s *PrometheusStats) OnRTTSample(rtt time.Duration) {
	s.smoothedRTT.Set(rtt.Seconds())
}

func (s *PrometheusStats) OnCongestionWindowChange(bytes uint64) {
	s.congestionWnd.Set(float64(bytes))
}

// Subscribe wires this sink to a Bus so conn only needs one Fire call
// site per event kind regardless of how many sinks are listening.
func (s *PrometheusStats) Subscribe(bus *Bus) (cancel func()) {
	return bus.Subscribe(EventPacketSent|EventPacketLost|EventPacketAcked, func(kind EventKind, data interface{}) {
		switch kind {
		case EventPacketSent:
			if n, ok := data.(int); ok {
				s.OnPacketSent(n)
			}
		case EventPacketLost:
			s.OnPacketLost()
		case EventPacketAcked:
			s.OnPacketAcked()
		}
	})
}
