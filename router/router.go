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

package router

import (
	"context"
	"sync"
	"time"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/internal/logger"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/store"
	"github.com/yaok-project/yaok-core/transport"
)

var log = logger.NewDefaultLogger()

// RoutingStats summarizes packet processing outcomes (§4.10).
type RoutingStats struct {
	ProcessedPackets  uint64
	DroppedPackets    uint64
	DuplicatePackets  uint64
	ForwardedPackets  uint64
}

// Router handles one peer's view of the DTN mesh: dedup, flooding, per-peer
// delivery, and acknowledgement bookkeeping (§4.6).
type Router struct {
	self_    *identity.Identity
	store    *store.Store
	manager  *transport.Manager
	queue    *Queue

	mu         sync.RWMutex
	knownPeers map[string]transport.Peer
	stats      RoutingStats
}

// New returns a Router for the local identity, backed by store and
// transport manager.
func New(self *identity.Identity, st *store.Store, manager *transport.Manager) *Router {
	return &Router{
		self_:      self,
		store:      st,
		manager:    manager,
		queue:      NewQueue(),
		knownPeers: make(map[string]transport.Peer),
	}
}

// UpdatePeers merges peers into the known-peer cache, keyed by peer id.
func (r *Router) UpdatePeers(peers []transport.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range peers {
		r.knownPeers[p.ID] = p
	}
}

// KnownPeer returns a cached peer by id.
func (r *Router) KnownPeer(id string) (transport.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.knownPeers[id]
	return p, ok
}

// HandlePacket processes one inbound packet: drops expired/over-hop
// packets, deduplicates against the seen-set, marks it seen, increments its
// hop count, and floods it onward (§4.6).
func (r *Router) HandlePacket(ctx context.Context, pkt *packet.Packet) error {
	if !pkt.CanBeForwarded() {
		r.mu.Lock()
		r.stats.DroppedPackets++
		r.mu.Unlock()
		return nil
	}

	seen, err := r.store.IsMessageSeen(pkt.MessageID)
	if err != nil {
		return err
	}
	if seen {
		r.mu.Lock()
		r.stats.DuplicatePackets++
		r.mu.Unlock()
		return nil
	}
	if err := r.store.MarkMessageSeen(pkt.MessageID); err != nil {
		return err
	}

	pkt.IncrementHops()

	if err := r.FloodPacket(ctx, pkt); err != nil {
		return err
	}

	r.mu.Lock()
	r.stats.ProcessedPackets++
	r.mu.Unlock()
	return nil
}

// SendTo routes a packet to a specific peer id: direct delivery if the peer
// address is known, flooding otherwise.
func (r *Router) SendTo(ctx context.Context, pkt *packet.Packet, destination string) error {
	if peer, ok := r.KnownPeer(destination); ok {
		return r.manager.SendPacket(ctx, pkt, peer.Address)
	}
	return r.FloodPacket(ctx, pkt)
}

// FloodPacket forwards pkt to every known peer, best-effort. With no known
// peers it stores the packet locally for later delivery instead of
// dropping it, matching the DTN store-and-forward contract (§4.6).
func (r *Router) FloodPacket(ctx context.Context, pkt *packet.Packet) error {
	r.mu.RLock()
	peers := make([]transport.Peer, 0, len(r.knownPeers))
	for _, p := range r.knownPeers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	if len(peers) == 0 {
		raw, err := packet.ToBytes(pkt)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		return r.store.StoreMessage(store.StoredMessage{
			ID:          pkt.MessageID,
			SenderID:    pkt.SenderID,
			MessageType: "packet",
			Payload:     raw,
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Duration(pkt.TTLSeconds) * time.Second),
		}, false)
	}

	forwarded := false
	for _, peer := range peers {
		if err := r.manager.SendPacket(ctx, pkt, peer.Address); err == nil {
			forwarded = true
		}
	}
	if forwarded {
		r.mu.Lock()
		r.stats.ForwardedPackets++
		r.mu.Unlock()
		return nil
	}

	log.Info("flood failed, queuing for retry",
		logger.MessageID(pkt.MessageID), logger.Priority(pkt.Priority))
	return r.queue.Enqueue(NewQueuedPacket(pkt, ""))
}

// ProcessQueue dequeues one retry-ready packet and attempts to forward it,
// re-enqueuing it (with its attempt counter bumped) if the forward fails
// and it has retries remaining.
func (r *Router) ProcessQueue(ctx context.Context) error {
	qp := r.queue.DequeueReady()
	if qp == nil {
		return nil
	}

	qp.MarkAttempt()

	var err error
	if qp.TargetPeer != "" {
		err = r.SendTo(ctx, qp.Packet, qp.TargetPeer)
	} else {
		err = r.FloodPacket(ctx, qp.Packet)
	}
	if err != nil && qp.RetryCount < MaxRetryAttempts {
		return r.queue.Enqueue(qp)
	}
	return err
}

// SendAck records a delivery acknowledgement for messageID from fromPeerID.
func (r *Router) SendAck(messageID, fromPeerID string, ackType store.AckType) error {
	return r.store.StoreAck(messageID, fromPeerID, ackType)
}

// HandleAck is an alias for SendAck used on the receiving side of an ack
// exchange, kept distinct for call-site clarity.
func (r *Router) HandleAck(messageID, fromPeerID string, ackType store.AckType) error {
	return r.SendAck(messageID, fromPeerID, ackType)
}

// Queue exposes the underlying retry queue for direct enqueuing by callers
// that already know a packet failed to send inline.
func (r *Router) Queue() *Queue {
	return r.queue
}

// GetStats returns a snapshot of routing counters.
func (r *Router) GetStats() RoutingStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// RecordDuplicate increments the duplicate-packet counter on behalf of a
// caller that performed its own seen-check outside HandlePacket (e.g. a
// direct-decrypt receive path that never calls HandlePacket itself).
func (r *Router) RecordDuplicate() {
	r.mu.Lock()
	r.stats.DuplicatePackets++
	r.mu.Unlock()
}

// RecordProcessed increments the processed-packet counter on behalf of a
// caller that handled a packet outside HandlePacket.
func (r *Router) RecordProcessed() {
	r.mu.Lock()
	r.stats.ProcessedPackets++
	r.mu.Unlock()
}
