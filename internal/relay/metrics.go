// Copyright (C) 2026  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors of the relay.
type Metrics struct {
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
	size     prometheus.Histogram
	inflight prometheus.Gauge
}

// NewMetrics creates and registers the relay metrics.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefrelay_relay_outcomes_total",
			Help: "Number of relay attempts by terminal state",
		}, []string{"state"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefrelay_relay_duration_seconds",
			Help:    "Duration of relay attempts from the first body chunk to the terminal state",
			Buckets: prometheus.DefBuckets,
		}),
		size: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefrelay_relay_message_bytes",
			Help:    "Size of received message bodies",
			Buckets: []float64{1 << 10, 10 << 10, 100 << 10, 1 << 20, 10 << 20, 50 << 20},
		}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "briefrelay_relay_inflight",
			Help: "Number of relay attempts in progress",
		}),
	}
}
