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

// Manager holds every registered transport and picks one per send according
// to the priority-ordered preference rule of §4.5: High-priority packets
// prefer UDP then wireless; Medium prefers wireless; Low accepts whatever is
// available, with short-range radio as the universal fallback.
type Manager struct {
	mu         sync.RWMutex
	transports map[Type]Transport
}

// NewManager returns an empty transport manager.
func NewManager() *Manager {
	return &Manager{transports: make(map[Type]Transport)}
}

// Register adds or replaces the transport for its Type().
func (m *Manager) Register(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports[t.Type()] = t
}

// Get returns the registered transport of the given type, if any.
func (m *Manager) Get(kind Type) (Transport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transports[kind]
	return t, ok
}

// Available lists the types of every currently-registered transport that
// reports itself available.
func (m *Manager) Available(ctx context.Context) []Type {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Type
	for _, kind := range []Type{TypeUDP, TypeWireless, TypeShortRange, TypeSatellite} {
		if t, ok := m.transports[kind]; ok && t.IsAvailable(ctx) {
			out = append(out, kind)
		}
	}
	return out
}

// preferenceOrder returns the transport type search order for a priority
// class (§4.5).
func preferenceOrder(prio packet.Priority) []Type {
	switch prio {
	case packet.PriorityHigh:
		return []Type{TypeUDP, TypeWireless, TypeShortRange, TypeSatellite}
	case packet.PriorityMedium:
		return []Type{TypeWireless, TypeUDP, TypeShortRange, TypeSatellite}
	default:
		return []Type{TypeShortRange, TypeWireless, TypeUDP, TypeSatellite}
	}
}

// SendPacket selects the best available transport for the packet's priority
// and sends it to destination, falling back through the preference order.
func (m *Manager) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for _, kind := range preferenceOrder(pkt.Priority) {
		t, ok := m.transports[kind]
		if !ok || !t.IsAvailable(ctx) {
			continue
		}
		err := t.SendPacket(ctx, pkt, destination)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrNoTransportAvailable
}

// DiscoverAllPeers queries every available transport for peers, ignoring
// individual transport failures (mirrors the original's discover_all_peers).
func (m *Manager) DiscoverAllPeers(ctx context.Context) []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []Peer
	for _, t := range m.transports {
		if !t.IsAvailable(ctx) {
			continue
		}
		peers, err := t.DiscoverPeers(ctx)
		if err != nil {
			continue
		}
		all = append(all, peers...)
	}
	return all
}
