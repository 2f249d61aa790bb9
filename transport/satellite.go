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
	"fmt"
	"sync"
	"time"

	"github.com/yaok-project/yaok-core/packet"
)

// Outbox is the minimal interface a satellite modem/gateway must provide: a
// store-and-forward queue that eventually transmits, with no synchronous
// delivery confirmation.
type Outbox interface {
	Enqueue(ctx context.Context, frame []byte, destination string) error
}

// Satellite adapts a high-latency store-and-forward channel to Transport.
// Sends never block on delivery; discovery is unsupported since satellite
// links have no peer-presence signaling (§4.5, §9).
type Satellite struct {
	outbox  Outbox
	latency time.Duration

	mu        sync.Mutex
	listening bool
	handler   PacketHandler
}

// NewSatellite wraps outbox as a Transport. latency is used only for
// availability/backoff bookkeeping by callers; the adapter itself never
// sleeps.
func NewSatellite(outbox Outbox, latency time.Duration) *Satellite {
	return &Satellite{outbox: outbox, latency: latency}
}

func (s *Satellite) Type() Type { return TypeSatellite }

func (s *Satellite) IsAvailable(ctx context.Context) bool {
	return s.outbox != nil
}

func (s *Satellite) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	if s.outbox == nil {
		return ErrNotAvailable
	}
	raw, err := packet.ToBytes(pkt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if err := s.outbox.Enqueue(ctx, raw, destination); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (s *Satellite) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	return nil, nil
}

// Deliver feeds a packet received via the satellite gateway to the
// registered handler.
func (s *Satellite) Deliver(pkt *packet.Packet, fromAddress string) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(pkt, fromAddress)
	}
}

func (s *Satellite) StartListening(ctx context.Context, handler PacketHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return ErrAlreadyListening
	}
	s.handler = handler
	s.listening = true
	return nil
}

func (s *Satellite) StopListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening {
		return ErrNotListening
	}
	s.listening = false
	s.handler = nil
	return nil
}
