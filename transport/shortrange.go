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
	"hash/crc32"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/yaok-project/yaok-core/packet"
)

// MaxRadioFrameSize is the per-write ceiling for short-range radio links
// (BLE characteristic/ATT payload class), far below the chunker's
// MaxChunkSize (§4.5).
const MaxRadioFrameSize = 512

// Radio is the narrow interface a platform's BLE/LoRa driver must provide;
// the transport layer never touches platform-specific radio APIs directly.
type Radio interface {
	Available(ctx context.Context) bool
	Write(ctx context.Context, frame []byte, destination string) error
	Peers(ctx context.Context) ([]Peer, error)
}

// ShortRange implements Transport over a size-constrained radio link by
// chunking every packet into MaxRadioFrameSize-capped fragments and
// reassembling them on receipt.
type ShortRange struct {
	radio        Radio
	reassembler  *Reassembler

	mu        sync.Mutex
	listening bool
	handler   PacketHandler
}

// NewShortRange wraps radio as a Transport.
func NewShortRange(radio Radio) *ShortRange {
	return &ShortRange{radio: radio, reassembler: NewReassembler()}
}

func (sr *ShortRange) Type() Type { return TypeShortRange }

func (sr *ShortRange) IsAvailable(ctx context.Context) bool {
	return sr.radio != nil && sr.radio.Available(ctx)
}

// SendPacket splits pkt's wire bytes into chunks of at most 384 data bytes
// (well under MaxChunkSize), each wrapped in a radio frame no larger than
// MaxRadioFrameSize, and writes them in order.
func (sr *ShortRange) SendPacket(ctx context.Context, pkt *packet.Packet, destination string) error {
	if sr.radio == nil {
		return ErrNotAvailable
	}
	raw, err := packet.ToBytes(pkt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	// Data per chunk leaves room for the chunk's CBOR framing (message id,
	// indices, checksum) inside one MaxRadioFrameSize frame.
	const radioChunkDataSize = 384
	total := (len(raw) + radioChunkDataSize - 1) / radioChunkDataSize
	for i := 0; i < total; i++ {
		end := (i + 1) * radioChunkDataSize
		if end > len(raw) {
			end = len(raw)
		}
		data := raw[i*radioChunkDataSize : end]
		chunk := Chunk{MessageID: pkt.MessageID, ChunkIndex: uint16(i), TotalChunks: uint16(total), Data: data, Checksum: crc32.ChecksumIEEE(data)}
		frame, err := cbor.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		if len(frame) > MaxRadioFrameSize {
			return ErrMTUExceeded
		}
		if err := sr.radio.Write(ctx, frame, destination); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
	}
	return nil
}

func (sr *ShortRange) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	if sr.radio == nil {
		return nil, ErrNotAvailable
	}
	peers, err := sr.radio.Peers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	return peers, nil
}

// DeliverFrame feeds one received radio frame through the reassembler,
// dispatching a reconstituted packet to the registered handler once
// complete.
func (sr *ShortRange) DeliverFrame(frame []byte, fromAddress string) error {
	var chunk Chunk
	if err := cbor.Unmarshal(frame, &chunk); err != nil {
		return fmt.Errorf("transport: decode radio frame: %w", err)
	}
	payload, err := sr.reassembler.AddChunk(chunk)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	pkt, err := packet.FromBytes(payload)
	if err != nil {
		return fmt.Errorf("transport: decode reassembled packet: %w", err)
	}

	sr.mu.Lock()
	handler := sr.handler
	sr.mu.Unlock()
	if handler != nil {
		handler(pkt, fromAddress)
	}
	return nil
}

func (sr *ShortRange) StartListening(ctx context.Context, handler PacketHandler) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.listening {
		return ErrAlreadyListening
	}
	sr.handler = handler
	sr.listening = true
	return nil
}

func (sr *ShortRange) StopListening() error {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if !sr.listening {
		return ErrNotListening
	}
	sr.listening = false
	sr.handler = nil
	return nil
}
