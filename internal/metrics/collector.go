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
	"sync"
	"time"
)

// RelayCollector accumulates the in-process counters behind the relay's
// /metrics/json snapshot, independent of the Prometheus registry (§4.9).
type RelayCollector struct {
	mu sync.RWMutex

	Received         int64
	Forwarded        int64
	DroppedRate      int64
	DroppedSize      int64
	DroppedPeerLimit int64

	startTime time.Time
}

// NewRelayCollector creates a relay counter set starting from now.
func NewRelayCollector() *RelayCollector {
	return &RelayCollector{startTime: time.Now()}
}

// RecordReceived records one accepted-for-processing datagram.
func (c *RelayCollector) RecordReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Received++
}

// RecordForwarded records one successful fan-out send.
func (c *RelayCollector) RecordForwarded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Forwarded++
}

// RecordDroppedRate records one datagram dropped by the per-source rate
// limiter.
func (c *RelayCollector) RecordDroppedRate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DroppedRate++
}

// RecordDroppedSize records one datagram dropped for being empty or over
// the configured max_packet size.
func (c *RelayCollector) RecordDroppedSize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DroppedSize++
}

// RecordDroppedPeerLimit records one datagram dropped because the peer
// table was full and the source was not already known.
func (c *RelayCollector) RecordDroppedPeerLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DroppedPeerLimit++
}

// RelaySnapshot is a point-in-time view of relay counters plus live gauges
// supplied by the caller (active peers, rate-table entries).
type RelaySnapshot struct {
	Received         int64 `json:"received"`
	Forwarded        int64 `json:"forwarded"`
	DroppedRate      int64 `json:"dropped_rate"`
	DroppedSize      int64 `json:"dropped_size"`
	DroppedPeerLimit int64 `json:"dropped_peer_limit"`
	ActivePeers      int   `json:"active_peers"`
	RateEntries      int   `json:"rate_entries"`
	UptimeSecs       int64 `json:"uptime_secs"`
}

// Snapshot returns the current counters merged with the supplied gauges.
func (c *RelayCollector) Snapshot(activePeers, rateEntries int) RelaySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return RelaySnapshot{
		Received:         c.Received,
		Forwarded:        c.Forwarded,
		DroppedRate:      c.DroppedRate,
		DroppedSize:      c.DroppedSize,
		DroppedPeerLimit: c.DroppedPeerLimit,
		ActivePeers:      activePeers,
		RateEntries:      rateEntries,
		UptimeSecs:       int64(time.Since(c.startTime).Seconds()),
	}
}

// Reset zeroes every counter, keeping the original start time.
func (c *RelayCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Received = 0
	c.Forwarded = 0
	c.DroppedRate = 0
	c.DroppedSize = 0
	c.DroppedPeerLimit = 0
}

// Global relay collector instance, used by cmd/yaok-relay's default wiring.
var globalRelayCollector = NewRelayCollector()

// GetGlobalRelayCollector returns the global relay collector.
func GetGlobalRelayCollector() *RelayCollector {
	return globalRelayCollector
}
