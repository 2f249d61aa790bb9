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
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yaok-project/yaok-core/packet"
)

// UDPConfig configures the TLS-tunneled relay transport. Despite the name
// (matched to the spec's "UDP" transport class for priority-selection
// purposes), the wire connection to the relay is a TCP+TLS stream — the
// relay itself fans packets back out over UDP to short-range peers (§4.5,
// §4.9).
type UDPConfig struct {
	RelayAddress string
	// PinnedFingerprint, when set, is the expected SHA-256 fingerprint of the
	// relay's leaf certificate (lowercase hex, no separators). Presenting a
	// chain-valid certificate with a different fingerprint fails the
	// handshake — chain validation and pinning both apply (§9 open question).
	PinnedFingerprint string
	DialTimeout       time.Duration
}

// UDP is the TLS-tunneled relay transport.
type UDP struct {
	cfg UDPConfig

	listening bool
	listener  net.Listener
	handler   PacketHandler
	stopCh    chan struct{}
}

// NewUDP returns a UDP transport for the given relay configuration.
func NewUDP(cfg UDPConfig) *UDP {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &UDP{cfg: cfg}
}

func (u *UDP) Type() Type { return TypeUDP }

func (u *UDP) IsAvailable(ctx context.Context) bool {
	host, _, err := net.SplitHostPort(u.cfg.RelayAddress)
	if err != nil {
		host = u.cfg.RelayAddress
	}
	resolver := &net.Resolver{}
	addrs, err := resolver.LookupHost(ctx, host)
	return err == nil && len(addrs) > 0
}

func (u *UDP) tlsConfig() *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if u.cfg.PinnedFingerprint == "" {
		return cfg
	}
	pinned := strings.ToLower(strings.ReplaceAll(u.cfg.PinnedFingerprint, ":", ""))
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("transport: no server certificate presented")
		}
		sum := sha256.Sum256(rawCerts[0])
		if hex.EncodeToString(sum[:]) != pinned {
			return fmt.Errorf("transport: certificate pin mismatch")
		}
		return nil
	}
	return cfg
}

// SendPacket dials the relay over TLS (standard chain validation always
// applies; pinning is layered on top when configured) and writes a
// length-prefixed canonical-CBOR frame: [4-byte big-endian length][packet].
func (u *UDP) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: u.cfg.DialTimeout}, Config: u.tlsConfig()}
	conn, err := dialer.DialContext(ctx, "tcp", u.cfg.RelayAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer conn.Close()

	raw, err := packet.ToBytes(pkt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if len(raw) > MaxWireFrameSize {
		return ErrMTUExceeded
	}

	frame := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(raw)))
	copy(frame[4:], raw)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// DiscoverPeers is not supported directly by the relay transport; peer
// lists come from the relay's own peer-table responses, out of scope here.
func (u *UDP) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	return nil, nil
}

// StartListening marks the transport ready to dispatch inbound packets to
// handler. No listener is bound here; inbound packets reach the handler
// only when a caller passes them to Deliver.
func (u *UDP) StartListening(ctx context.Context, handler PacketHandler) error {
	if u.listening {
		return ErrAlreadyListening
	}
	u.handler = handler
	u.listening = true
	u.stopCh = make(chan struct{})
	return nil
}

// Deliver feeds a decoded inbound packet to the registered handler.
func (u *UDP) Deliver(pkt *packet.Packet, fromAddress string) {
	if u.handler != nil {
		u.handler(pkt, fromAddress)
	}
}

func (u *UDP) StopListening() error {
	if !u.listening {
		return ErrNotListening
	}
	close(u.stopCh)
	u.listening = false
	u.handler = nil
	return nil
}

// MaxWireFrameSize bounds the length-prefixed relay frame (§4.9's 64000
// byte relay max_packet_size default plus framing slack).
const MaxWireFrameSize = 96 * 1024
