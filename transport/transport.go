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

// Package transport abstracts the physical channels packets travel over:
// short-range radio, local wireless, TLS-tunneled UDP relay, and a
// high-latency satellite adapter (§4.5).
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/yaok-project/yaok-core/packet"
)

// Type identifies a physical channel kind.
type Type string

const (
	TypeShortRange Type = "short_range" // BLE-class radio
	TypeWireless   Type = "wireless"    // local Wi-Fi Direct-class link
	TypeUDP        Type = "udp"         // TLS-tunneled internet relay
	TypeSatellite  Type = "satellite"   // high-latency store-and-forward link
)

var (
	ErrNotAvailable         = errors.New("transport: not available")
	ErrNoTransportAvailable = errors.New("transport: no transport available")
	ErrSendFailed           = errors.New("transport: send failed")
	ErrDiscoveryFailed      = errors.New("transport: discovery failed")
	ErrInvalidAddress       = errors.New("transport: invalid address")
	ErrTimeout              = errors.New("transport: timeout")
	ErrMTUExceeded          = errors.New("transport: mtu exceeded")
	ErrAlreadyListening     = errors.New("transport: already listening")
	ErrNotListening         = errors.New("transport: not listening")
)

// Peer describes a discoverable remote endpoint on some transport.
type Peer struct {
	ID             string
	Transport      Type
	Address        string
	LastSeen       time.Time
	SignalStrength *int
	Ed25519Pub     []byte
	X25519Pub      []byte
}

// PacketHandler receives packets as they arrive on a listening transport.
type PacketHandler func(pkt *packet.Packet, fromAddress string)

// Transport is the interface every physical channel implements (§4.5).
type Transport interface {
	Type() Type
	IsAvailable(ctx context.Context) bool
	SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error
	DiscoverPeers(ctx context.Context) ([]Peer, error)
	StartListening(ctx context.Context, handler PacketHandler) error
	StopListening() error
}
