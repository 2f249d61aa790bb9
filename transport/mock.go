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

package transport

import (
	"context"
	"sync"

	"github.com/yaok-project/yaok-core/packet"
)

// Mock is an in-memory Transport double for router/gossip unit tests: it
// records every send and lets tests inject inbound packets directly.
type Mock struct {
	mu        sync.Mutex
	kind      Type
	available bool
	peers     []Peer
	sent      []mockSend
	handler   PacketHandler
	listening bool
}

type mockSend struct {
	Packet      *packet.Packet
	Destination string
}

// NewMock returns a Mock reporting as available for transport kind.
func NewMock(kind Type) *Mock {
	return &Mock{kind: kind, available: true}
}

func (m *Mock) Type() Type { return m.kind }

// SetAvailable toggles IsAvailable's response.
func (m *Mock) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetPeers configures DiscoverPeers' response.
func (m *Mock) SetPeers(peers []Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers = peers
}

func (m *Mock) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *Mock) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrNotAvailable
	}
	m.sent = append(m.sent, mockSend{Packet: pkt, Destination: destination})
	return nil
}

func (m *Mock) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrNotAvailable
	}
	return append([]Peer(nil), m.peers...), nil
}

func (m *Mock) StartListening(ctx context.Context, handler PacketHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		return ErrAlreadyListening
	}
	m.handler = handler
	m.listening = true
	return nil
}

func (m *Mock) StopListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return ErrNotListening
	}
	m.listening = false
	m.handler = nil
	return nil
}

// Deliver feeds pkt to the registered handler, simulating an inbound packet
// from fromAddress.
func (m *Mock) Deliver(pkt *packet.Packet, fromAddress string) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(pkt, fromAddress)
	}
}

// SentCount returns how many packets were accepted by SendPacket.
func (m *Mock) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastSent returns the most recently sent packet and destination, if any.
func (m *Mock) LastSent() (*packet.Packet, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil, "", false
	}
	last := m.sent[len(m.sent)-1]
	return last.Packet, last.Destination, true
}
