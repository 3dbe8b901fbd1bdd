/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and gauges a Listener updates at the
// same control-flow points the original logs at: accept, dispatch,
// bytes moved, and currently-open connections.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	MessagesDispatched  prometheus.Counter
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
	Errors              *prometheus.CounterVec
}

// NewMetrics builds and registers a fresh Metrics set on reg. Passing
// a nil registry skips registration, useful in tests that build more
// than one Listener in the same process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultmesh_transport_connections_accepted_total",
			Help: "Total TCP connections accepted by the transport listener.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultmesh_transport_connections_active",
			Help: "Currently open transport connections.",
		}),
		MessagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultmesh_transport_messages_dispatched_total",
			Help: "Total messages handed to the application dispatch callback.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultmesh_transport_bytes_read_total",
			Help: "Total payload bytes read off the wire.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultmesh_transport_bytes_written_total",
			Help: "Total payload bytes written to the wire.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultmesh_transport_errors_total",
			Help: "Transport errors by condition.",
		}, []string{"condition"}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectionsAccepted, m.ConnectionsActive, m.MessagesDispatched, m.BytesRead, m.BytesWritten, m.Errors)
	}
	return m
}
