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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yaok-project/yaok-core/packet"
)

// Wireless implements Transport over local Wi-Fi Direct-class links using
// persistent WebSocket connections between directly-reachable peers (§4.5).
type Wireless struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	conns       map[string]*websocket.Conn
	listening   bool
	handler     PacketHandler
	dialer      *websocket.Dialer
	readTimeout time.Duration
}

// NewWireless returns a Wireless transport with default framing timeouts.
func NewWireless() *Wireless {
	return &Wireless{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:       make(map[string]*websocket.Conn),
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		readTimeout: 60 * time.Second,
	}
}

func (w *Wireless) Type() Type { return TypeWireless }

// IsAvailable reports true whenever the process can open sockets; wireless
// link presence itself is discovered lazily on send/dial.
func (w *Wireless) IsAvailable(ctx context.Context) bool {
	return true
}

func (w *Wireless) connFor(ctx context.Context, address string) (*websocket.Conn, error) {
	w.mu.RLock()
	conn, ok := w.conns[address]
	w.mu.RUnlock()
	if ok {
		return conn, nil
	}

	url := fmt.Sprintf("ws://%s/yaok/v1", address)
	conn, _, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	w.mu.Lock()
	w.conns[address] = conn
	w.mu.Unlock()
	return conn, nil
}

// SendPacket serializes pkt to canonical CBOR and writes it as one binary
// WebSocket frame to address, dialing a fresh connection on first use.
func (w *Wireless) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	conn, err := w.connFor(ctx, destination)
	if err != nil {
		return err
	}
	raw, err := packet.ToBytes(pkt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		w.mu.Lock()
		delete(w.conns, destination)
		w.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// DiscoverPeers is not implemented for wireless; peer discovery on this
// transport happens out-of-band (mDNS/Wi-Fi Direct service advertisement is
// platform-specific and out of scope, §9).
func (w *Wireless) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	return nil, nil
}

// ServeHTTP upgrades incoming connections and dispatches decoded packets to
// the registered handler. Callers mount this on an *http.ServeMux.
func (w *Wireless) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	w.mu.RLock()
	handler := w.handler
	listening := w.listening
	w.mu.RUnlock()
	if !listening {
		return
	}

	remote := conn.RemoteAddr().String()
	for {
		conn.SetReadDeadline(time.Now().Add(w.readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		pkt, err := packet.FromBytes(raw)
		if err != nil {
			continue
		}
		if handler != nil {
			handler(pkt, remote)
		}
	}
}

func (w *Wireless) StartListening(ctx context.Context, handler PacketHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listening {
		return ErrAlreadyListening
	}
	w.handler = handler
	w.listening = true
	return nil
}

func (w *Wireless) StopListening() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.listening {
		return ErrNotListening
	}
	w.listening = false
	w.handler = nil
	for addr, conn := range w.conns {
		conn.Close()
		delete(w.conns, addr)
	}
	return nil
}
