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

// Package relay implements the stateless UDP fan-out reflector (§4.9): a
// blind relay that accepts datagrams from any source and forwards each to
// every other recently-seen source, subject to per-source rate limiting
// and peer-table capacity.
package relay

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/yaok-project/yaok-core/internal/logger"
	"github.com/yaok-project/yaok-core/internal/metrics"
)

// MaxPeers caps the relay's peer table (§5 resource caps).
const MaxPeers = 10_000

// MaxRateEntries caps the relay's per-source-IP rate table.
const MaxRateEntries = 50_000

// CleanupInterval is the number of received packets between sweeps of the
// peer and rate tables.
const CleanupInterval = 1_000

// RateEntryTTL is how long an idle rate-table entry survives a sweep.
const RateEntryTTL = 60 * time.Second

// rateEntry tracks a one-second token count for a single source IP.
type rateEntry struct {
	windowStart time.Time
	count       uint32
}

// Config carries the relay's tunable knobs (spec.md §4.9/§6).
type Config struct {
	MaxPacketSize int
	RateLimitPPS  uint32
	PeerTTL       time.Duration
}

// Relay is a single-goroutine UDP reflector. All mutable state (peers,
// rate table) is written only by the dispatch loop; mu lets Stats read it
// from other goroutines (§5 shared-resource policy).
type Relay struct {
	conn      net.PacketConn
	cfg       Config
	logger    *logger.StructuredLogger
	collector *metrics.RelayCollector

	mu    sync.RWMutex // guards peers/rate for the metrics/stats snapshot path only
	peers map[string]time.Time
	rate  map[string]*rateEntry

	received uint64
}

// New constructs a Relay bound to conn with cfg, recording into the given
// collector (pass metrics.GetGlobalRelayCollector() for the default
// process-wide instance).
func New(conn net.PacketConn, cfg Config, collector *metrics.RelayCollector) *Relay {
	if cfg.MaxPacketSize <= 0 {
		cfg.MaxPacketSize = 64000
	}
	if cfg.RateLimitPPS == 0 {
		cfg.RateLimitPPS = 200
	}
	if cfg.PeerTTL == 0 {
		cfg.PeerTTL = 300 * time.Second
	}
	if collector == nil {
		collector = metrics.NewRelayCollector()
	}
	return &Relay{
		conn:      conn,
		cfg:       cfg,
		logger:    logger.NewDefaultLogger(),
		collector: collector,
		peers:     make(map[string]time.Time),
		rate:      make(map[string]*rateEntry),
	}
}

// Run drives the relay's receive loop until ctx is canceled or the socket
// errors unrecoverably.
func (r *Relay) Run(ctx context.Context) error {
	buf := make([]byte, r.cfg.MaxPacketSize)
	r.logger.Info("relay listening", logger.String("addr", r.conn.LocalAddr().String()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if dl, ok := r.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = dl.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		}

		n, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				r.sweep()
				continue
			}
			r.logger.Error("relay read error", logger.Error(err))
			return err
		}
		r.handleDatagram(buf[:n], src)
	}
}

func (r *Relay) handleDatagram(payload []byte, src net.Addr) {
	metrics.RelayReceived.Inc()
	r.collector.RecordReceived()

	if len(payload) == 0 || len(payload) > r.cfg.MaxPacketSize {
		metrics.RelayDropped.WithLabelValues("size").Inc()
		r.collector.RecordDroppedSize()
		return
	}

	srcKey := src.String()
	srcIP := ipOf(src)

	if !r.allow(srcIP) {
		metrics.RelayDropped.WithLabelValues("rate").Inc()
		r.collector.RecordDroppedRate()
		return
	}

	r.mu.Lock()
	_, known := r.peers[srcKey]
	if !known && len(r.peers) >= MaxPeers {
		r.mu.Unlock()
		metrics.RelayDropped.WithLabelValues("peer_limit").Inc()
		r.collector.RecordDroppedPeerLimit()
		return
	}
	r.peers[srcKey] = time.Now()
	peerCount := len(r.peers)
	r.mu.Unlock()
	metrics.RelayActivePeers.Set(float64(peerCount))

	r.received++
	if r.received%CleanupInterval == 0 {
		r.sweep()
	}

	r.fanOut(payload, srcKey)
}

func (r *Relay) fanOut(payload []byte, srcKey string) {
	r.mu.RLock()
	dests := make([]string, 0, len(r.peers))
	for addr := range r.peers {
		if addr != srcKey {
			dests = append(dests, addr)
		}
	}
	r.mu.RUnlock()

	for _, addr := range dests {
		dst, err := net.ResolveUDPAddr(r.conn.LocalAddr().Network(), addr)
		if err != nil {
			continue
		}
		if _, err := r.conn.WriteTo(payload, dst); err == nil {
			metrics.RelayForwarded.Inc()
			r.collector.RecordForwarded()
		}
	}
}

// allow applies the fixed one-second-window token counter from spec.md
// §4.9 step 2, matching original_source/relay/src/main.rs's allow_packet.
func (r *Relay) allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.rate[ip]
	if !ok {
		if len(r.rate) >= MaxRateEntries {
			r.evictOldestRateLocked()
		}
		entry = &rateEntry{windowStart: now}
		r.rate[ip] = entry
	}

	if now.Sub(entry.windowStart) >= time.Second {
		entry.windowStart = now
		entry.count = 0
	}

	if entry.count >= r.cfg.RateLimitPPS {
		return false
	}
	entry.count++
	return true
}

// evictOldestRateLocked drops the oldest 10% of rate entries. Caller holds
// r.mu.
func (r *Relay) evictOldestRateLocked() {
	type keyed struct {
		ip string
		ts time.Time
	}
	entries := make([]keyed, 0, len(r.rate))
	for ip, e := range r.rate {
		entries = append(entries, keyed{ip, e.windowStart})
	}
	toEvict := len(entries) / 10
	if toEvict == 0 {
		toEvict = 1
	}
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].ts.Before(entries[i].ts) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	for i := 0; i < toEvict && i < len(entries); i++ {
		delete(r.rate, entries[i].ip)
	}
}

// sweep removes peers older than PeerTTL and rate entries idle longer than
// RateEntryTTL, then evicts the oldest 10% of rate entries if the table is
// still over MaxRateEntries (spec.md §4.9 step 5).
func (r *Relay) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for addr, lastSeen := range r.peers {
		if now.Sub(lastSeen) > r.cfg.PeerTTL {
			delete(r.peers, addr)
		}
	}
	for ip, entry := range r.rate {
		if now.Sub(entry.windowStart) > RateEntryTTL {
			delete(r.rate, ip)
		}
	}
	if len(r.rate) > MaxRateEntries {
		r.evictOldestRateLocked()
	}
	metrics.RelayActivePeers.Set(float64(len(r.peers)))
	metrics.RelayRateEntries.Set(float64(len(r.rate)))
}

// Stats returns a merged snapshot of counters and live table sizes for the
// /metrics/json endpoint (§6).
func (r *Relay) Stats() metrics.RelaySnapshot {
	r.mu.RLock()
	activePeers, rateEntries := len(r.peers), len(r.rate)
	r.mu.RUnlock()
	return r.collector.Snapshot(activePeers, rateEntries)
}

func ipOf(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
