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

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors of the audit recorder.
type Metrics struct {
	records    *prometheus.CounterVec
	reconnects prometheus.Counter
	connected  prometheus.Gauge
}

// NewMetrics creates and registers the audit metrics.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefrelay_audit_records_total",
			Help: "Number of audit records by result",
		}, []string{"result"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefrelay_audit_reconnects_total",
			Help: "Number of attempts to reconnect to the audit store",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "briefrelay_audit_connected",
			Help: "Whether the audit store is connected",
		}),
	}
}

const (
	resultSaved   = "saved"
	resultFailed  = "failed"
	resultDropped = "dropped"
	resultInvalid = "invalid"
)
