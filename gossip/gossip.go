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

// Package gossip implements periodic digest/message anti-entropy
// synchronization between peers (§4.7).
package gossip

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/store"
)

// FramePrefix tags a gossip frame on the wire so a listener can distinguish
// it from an ordinary packet frame sharing the same transport.
const FramePrefix = "__gossip__:"

// MinSyncInterval is the minimum time between two sync sessions with the
// same peer, avoiding redundant chatter (§4.7).
const MinSyncInterval = 5 * time.Minute

// DefaultLookback bounds how far back a digest request reaches when a peer
// has never been synced with before.
const DefaultLookback = 24 * time.Hour

// DefaultMaxDigests caps how many digests one DigestResponse carries.
const DefaultMaxDigests = 100

var (
	ErrSerializationFailed = errors.New("gossip: serialization failed")
	ErrSendFailed          = errors.New("gossip: send failed")
)

// Kind discriminates the GossipMessage union.
type Kind string

const (
	KindDigestRequest  Kind = "digest_request"
	KindDigestResponse Kind = "digest_response"
	KindMessageRequest Kind = "message_request"
	KindMessageResponse Kind = "message_response"
)

// Digest is a compact fingerprint of one stored message, exchanged instead
// of the full payload during the digest phase.
type Digest struct {
	MessageID string    `cbor:"1,keyasint"`
	SenderID  string    `cbor:"2,keyasint"`
	Timestamp time.Time `cbor:"3,keyasint"`
	Hash      [32]byte  `cbor:"4,keyasint"`
}

// Message is the gossip protocol's wire envelope: exactly one of the
// per-kind fields is populated, selected by Kind.
type Message struct {
	Kind Kind `cbor:"1,keyasint"`

	Since    time.Time `cbor:"2,keyasint,omitempty"`
	MaxCount int       `cbor:"3,keyasint,omitempty"`

	Digests []Digest `cbor:"4,keyasint,omitempty"`

	MessageIDs []string `cbor:"5,keyasint,omitempty"`

	Messages [][]byte `cbor:"6,keyasint,omitempty"` // canonical-CBOR-encoded message.Message payloads
}

// Stats summarizes gossip activity (§4.10).
type Stats struct {
	SyncSessions      uint64
	MessagesExchanged uint64
	FailedSyncs       uint64
}

// Sender delivers an already-framed gossip message to a peer address. The
// concrete transport used is up to the caller; core's sender writes each
// frame as one datagram on a dedicated UDP socket.
type Sender func(ctx context.Context, address string, frame []byte) error

// Protocol runs digest/message anti-entropy against peers.
type Protocol struct {
	store *store.Store
	send  Sender

	mu       sync.Mutex
	lastSync map[string]time.Time
	stats    Stats
}

// New returns a gossip protocol instance backed by st, using send to
// deliver framed messages to peers.
func New(st *store.Store, send Sender) *Protocol {
	return &Protocol{store: st, send: send, lastSync: make(map[string]time.Time)}
}

func computeDigest(msg *message.Message) (Digest, error) {
	raw, err := cbor.Marshal(msg)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return Digest{
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Timestamp: msg.Timestamp,
		Hash:      sha256.Sum256(raw),
	}, nil
}

// Frame serializes a gossip message to its on-wire form: the magic prefix
// followed by base64 of its canonical CBOR encoding.
func Frame(msg Message) ([]byte, error) {
	raw, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return []byte(FramePrefix + base64.StdEncoding.EncodeToString(raw)), nil
}

// Unframe parses a gossip wire frame. It returns ok=false if frame does not
// carry the gossip magic prefix (i.e. it is some other kind of frame).
func Unframe(frame []byte) (msg Message, ok bool, err error) {
	s := string(frame)
	if len(s) < len(FramePrefix) || s[:len(FramePrefix)] != FramePrefix {
		return Message{}, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(FramePrefix):])
	if err != nil {
		return Message{}, true, fmt.Errorf("gossip: decode frame: %w", err)
	}
	if err := cbor.Unmarshal(raw, &msg); err != nil {
		return Message{}, true, fmt.Errorf("gossip: decode message: %w", err)
	}
	return msg, true, nil
}

func (p *Protocol) sendMessage(ctx context.Context, address string, msg Message) error {
	frame, err := Frame(msg)
	if err != nil {
		return err
	}
	if err := p.send(ctx, address, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// SyncWithPeer initiates a digest exchange with peerID/address, skipping it
// if the last session was within MinSyncInterval.
func (p *Protocol) SyncWithPeer(ctx context.Context, peerID, address string) error {
	p.mu.Lock()
	last, hasLast := p.lastSync[peerID]
	if hasLast && time.Since(last) < MinSyncInterval {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	since := time.Now().Add(-DefaultLookback)
	if hasLast {
		since = last
	}

	req := Message{Kind: KindDigestRequest, Since: since, MaxCount: DefaultMaxDigests}
	if err := p.sendMessage(ctx, address, req); err != nil {
		p.mu.Lock()
		p.stats.FailedSyncs++
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.lastSync[peerID] = time.Now()
	p.stats.SyncSessions++
	p.mu.Unlock()
	return nil
}

// HandleMessage processes one received gossip message from a peer at
// address, replying as needed via the configured Sender.
func (p *Protocol) HandleMessage(ctx context.Context, msg Message, fromAddress string) error {
	switch msg.Kind {
	case KindDigestRequest:
		return p.handleDigestRequest(ctx, msg, fromAddress)
	case KindDigestResponse:
		return p.handleDigestResponse(ctx, msg, fromAddress)
	case KindMessageRequest:
		return p.handleMessageRequest(ctx, msg, fromAddress)
	case KindMessageResponse:
		return p.handleMessageResponse(msg)
	default:
		return nil
	}
}

func (p *Protocol) handleDigestRequest(ctx context.Context, msg Message, fromAddress string) error {
	stored, err := p.store.GetMessagesSince(msg.Since)
	if err != nil {
		return err
	}
	maxCount := msg.MaxCount
	if maxCount <= 0 || maxCount > len(stored) {
		maxCount = len(stored)
	}

	digests := make([]Digest, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		var m message.Message
		if err := cbor.Unmarshal(stored[i].Payload, &m); err != nil {
			continue
		}
		d, err := computeDigest(&m)
		if err != nil {
			continue
		}
		digests = append(digests, d)
	}

	return p.sendMessage(ctx, fromAddress, Message{Kind: KindDigestResponse, Digests: digests})
}

func (p *Protocol) handleDigestResponse(ctx context.Context, msg Message, fromAddress string) error {
	var missing []string
	for _, d := range msg.Digests {
		seen, err := p.store.IsMessageSeen(d.MessageID)
		if err != nil {
			return err
		}
		if !seen {
			missing = append(missing, d.MessageID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return p.sendMessage(ctx, fromAddress, Message{Kind: KindMessageRequest, MessageIDs: missing})
}

func (p *Protocol) handleMessageRequest(ctx context.Context, msg Message, fromAddress string) error {
	var payloads [][]byte
	for _, id := range msg.MessageIDs {
		stored, err := p.store.GetMessageByID(id)
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
			continue
		}
		if err != nil {
			return err
		}
		payloads = append(payloads, stored.Payload)
	}
	return p.sendMessage(ctx, fromAddress, Message{Kind: KindMessageResponse, Messages: payloads})
}

func (p *Protocol) handleMessageResponse(msg Message) error {
	for _, raw := range msg.Messages {
		var m message.Message
		if err := cbor.Unmarshal(raw, &m); err != nil {
			continue
		}
		now := time.Now().UTC()
		_ = p.store.StoreMessage(store.StoredMessage{
			ID:          m.ID,
			SenderID:    m.SenderID,
			MessageType: string(m.Type),
			Payload:     raw,
			CreatedAt:   m.Timestamp,
			ExpiresAt:   now.Add(DefaultLookback),
		}, false)
		p.mu.Lock()
		p.stats.MessagesExchanged++
		p.mu.Unlock()
	}
	return nil
}

// GetStats returns a snapshot of gossip activity counters.
func (p *Protocol) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
