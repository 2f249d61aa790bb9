// Copyright (C) 2025 yaok-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelayReceived counts datagrams accepted by the relay's recv loop.
	RelayReceived = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "received_total",
			Help:      "Total number of datagrams received by the relay",
		},
	)

	// RelayForwarded counts successful fan-out sends.
	RelayForwarded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "forwarded_total",
			Help:      "Total number of datagrams forwarded by the relay",
		},
	)

	// RelayDropped counts datagrams dropped, by reason.
	RelayDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Total number of datagrams dropped by the relay",
		},
		[]string{"reason"}, // rate, size, peer_limit
	)

	// RelayActivePeers is the current size of the relay's peer table.
	RelayActivePeers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_peers",
			Help:      "Current number of peers known to the relay",
		},
	)

	// RelayRateEntries is the current size of the relay's rate table.
	RelayRateEntries = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rate_entries",
			Help:      "Current number of source IPs tracked by the rate limiter",
		},
	)
)
