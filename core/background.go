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

package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yaok-project/yaok-core/gossip"
	"github.com/yaok-project/yaok-core/internal/logger"
	"github.com/yaok-project/yaok-core/router"
)

var bgLog = logger.NewDefaultLogger()

// gossipReadBufferSize bounds one gossip UDP datagram read; it is at least
// the largest possible UDP payload, so a datagram is never truncated here.
const gossipReadBufferSize = 64 * 1024

// gossipAddrEnvVar overrides the gossip UDP socket's bind/dial address,
// useful when more than one node runs on the same host.
const gossipAddrEnvVar = "YAOK_GOSSIP_ADDR"

// defaultGossipAddr is the gossip loop's default bind address.
const defaultGossipAddr = ":7946"

func gossipBindAddr() string {
	if v := os.Getenv(gossipAddrEnvVar); v != "" {
		return v
	}
	return defaultGossipAddr
}

// sendGossipFrame is the real, network-backed gossip.Sender: it dials a
// fresh UDP socket to address and writes frame as a single datagram. Gossip
// traffic runs over its own dedicated socket rather than through
// transport.Manager, since transport.PacketHandler only ever delivers
// decoded packets and has no raw-frame path for gossip's magic-prefixed
// wire format.
func sendGossipFrame(ctx context.Context, address string, frame []byte) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return fmt.Errorf("dial gossip peer: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write gossip frame: %w", err)
	}
	return nil
}

// startGossipLoop binds the gossip UDP socket and starts its receive loop,
// periodic peer-sync loop, and the router retry-queue drain loop. Called
// from StartListening; idempotent only in the sense that a second call
// while already running will fail to bind the same address.
func (s *State) startGossipLoop(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", gossipBindAddr())
	if err != nil {
		return fmt.Errorf("resolve gossip address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen gossip socket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.gossipConn = conn
	s.gossipCancel = cancel

	bgLog.Info("gossip loop listening", logger.TransportKind("udp"), logger.String("addr", conn.LocalAddr().String()))

	s.gossipWG.Add(3)
	go func() { defer s.gossipWG.Done(); s.gossipReceiveLoop(loopCtx) }()
	go func() { defer s.gossipWG.Done(); s.gossipSyncLoop(loopCtx) }()
	go func() { defer s.gossipWG.Done(); s.queueDrainLoop(loopCtx) }()
	return nil
}

// gossipReceiveLoop reads gossip frames off the dedicated socket and hands
// them to the protocol's message handler, mirroring relay.Relay.Run's
// deadline-poll-sweep receive idiom.
func (s *State) gossipReceiveLoop(ctx context.Context) {
	buf := make([]byte, gossipReadBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = s.gossipConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := s.gossipConn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		msg, ok, err := gossip.Unframe(buf[:n])
		if err != nil || !ok {
			continue
		}
		_ = s.gossip.HandleMessage(ctx, msg, addr.String())
	}
}

// gossipSyncLoop periodically initiates a digest sync with every known peer
// that has a recorded transport address. Peers added through the bare
// AddPeer(peerID, x25519Hex) path never set Address and are skipped; they
// can still be reached by direct send/flood, just not by gossip sync.
func (s *State) gossipSyncLoop(ctx context.Context) {
	ticker := time.NewTicker(gossip.MinSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range s.peerStore.List() {
				if p.Address == "" {
					continue
				}
				if err := s.gossip.SyncWithPeer(ctx, p.PeerID, p.Address); err != nil {
					bgLog.Warn("gossip sync failed", logger.PeerID(p.PeerID), logger.Error(err))
				}
			}
		}
	}
}

// queueDrainLoop periodically drains the router's retry queue. Without
// this, packets enqueued by FloodPacket when every known peer is briefly
// unreachable sit in the queue forever, since nothing else calls
// ProcessQueue (§4.6).
func (s *State) queueDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(router.RetryBaseDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attempts := s.router.Queue().TotalCount()
			for i := 0; i < attempts; i++ {
				if err := s.router.ProcessQueue(ctx); err != nil {
					break
				}
			}
		}
	}
}

// stopGossipLoop cancels and joins the gossip/queue-drain goroutines and
// closes the gossip socket. Safe to call when the loop was never started.
func (s *State) stopGossipLoop() {
	if s.gossipCancel != nil {
		s.gossipCancel()
	}
	if s.gossipConn != nil {
		s.gossipConn.Close()
	}
	s.gossipWG.Wait()
	s.gossipCancel = nil
	s.gossipConn = nil
}
