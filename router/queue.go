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

// Package router implements the store-and-forward DTN queue and packet
// routing logic (§4.6).
package router

import (
	"errors"
	"sync"
	"time"

	"github.com/yaok-project/yaok-core/packet"
)

// MaxQueueSizePerPriority caps each priority lane; enqueuing past the cap
// drops the oldest entry (§4.6).
const MaxQueueSizePerPriority = 100

// MaxRetryAttempts bounds how many forwarding attempts a queued packet gets.
const MaxRetryAttempts = 3

// RetryBaseDelay is the base of the exponential retry backoff:
// delay = RetryBaseDelay * 2^retry_count.
const RetryBaseDelay = 5 * time.Second

var ErrInvalidPriority = errors.New("router: invalid priority")

// QueuedPacket wraps a packet awaiting forwarding with its retry state.
type QueuedPacket struct {
	Packet      *packet.Packet
	RetryCount  uint8
	LastAttempt time.Time
	TargetPeer  string
}

// NewQueuedPacket wraps pkt for enqueuing, optionally addressed to a known
// target peer.
func NewQueuedPacket(pkt *packet.Packet, targetPeer string) *QueuedPacket {
	return &QueuedPacket{Packet: pkt, TargetPeer: targetPeer}
}

// CanRetry reports whether another forwarding attempt is due now.
func (q *QueuedPacket) CanRetry() bool {
	if q.RetryCount >= MaxRetryAttempts {
		return false
	}
	if q.LastAttempt.IsZero() {
		return true
	}
	backoff := RetryBaseDelay * time.Duration(1<<q.RetryCount)
	return time.Since(q.LastAttempt) >= backoff
}

// MarkAttempt records a forwarding attempt.
func (q *QueuedPacket) MarkAttempt() {
	q.RetryCount++
	q.LastAttempt = time.Now()
}

// IsExpired reports whether the underlying packet can no longer be
// forwarded (TTL elapsed or hop limit reached).
func (q *QueuedPacket) IsExpired() bool {
	return !q.Packet.CanBeForwarded()
}

// Stats summarizes queue occupancy per priority lane.
type Stats struct {
	HighPriorityCount   int
	MediumPriorityCount int
	LowPriorityCount    int
}

// Queue is the three-lane (High/Medium/Low) DTN retry queue.
type Queue struct {
	mu     sync.Mutex
	queues map[packet.Priority][]*QueuedPacket
}

// NewQueue returns an empty three-lane queue.
func NewQueue() *Queue {
	return &Queue{
		queues: map[packet.Priority][]*QueuedPacket{
			packet.PriorityHigh:   {},
			packet.PriorityMedium: {},
			packet.PriorityLow:    {},
		},
	}
}

// Enqueue appends qp to its packet's priority lane, dropping the oldest
// entry in that lane first if it is already at capacity.
func (q *Queue) Enqueue(qp *QueuedPacket) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, ok := q.queues[qp.Packet.Priority]
	if !ok {
		return ErrInvalidPriority
	}
	if len(lane) >= MaxQueueSizePerPriority {
		lane = lane[1:]
	}
	q.queues[qp.Packet.Priority] = append(lane, qp)
	return nil
}

// DequeueReady scans lanes High, then Medium, then Low, returning the first
// packet that is both retry-eligible and not expired.
func (q *Queue) DequeueReady() *QueuedPacket {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, prio := range []packet.Priority{packet.PriorityHigh, packet.PriorityMedium, packet.PriorityLow} {
		lane := q.queues[prio]
		for i, qp := range lane {
			if qp.CanRetry() && !qp.IsExpired() {
				q.queues[prio] = append(lane[:i:i], lane[i+1:]...)
				return qp
			}
		}
	}
	return nil
}

// CleanupExpired removes expired packets from every lane, returning the
// count removed.
func (q *Queue) CleanupExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for prio, lane := range q.queues {
		kept := lane[:0:0]
		for _, qp := range lane {
			if qp.IsExpired() {
				removed++
				continue
			}
			kept = append(kept, qp)
		}
		q.queues[prio] = kept
	}
	return removed
}

// StatsSnapshot reports the current per-lane occupancy.
func (q *Queue) StatsSnapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		HighPriorityCount:   len(q.queues[packet.PriorityHigh]),
		MediumPriorityCount: len(q.queues[packet.PriorityMedium]),
		LowPriorityCount:    len(q.queues[packet.PriorityLow]),
	}
}

// TotalCount returns the total number of packets across all lanes.
func (q *Queue) TotalCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, lane := range q.queues {
		total += len(lane)
	}
	return total
}
