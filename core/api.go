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
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/policy"
	"github.com/yaok-project/yaok-core/store"
	"github.com/yaok-project/yaok-core/transport"
)

// defaultMaxStoredMessages is the row cap Init and CreateIdentity open the
// store with; SetPolicy does not change it.
const defaultMaxStoredMessages = 1000

// Stats is the aggregated get_stats result (§4.10): store occupancy plus
// router/gossip activity counters from the currently loaded state.
type Stats struct {
	Store  store.Stats
	Router RoutingStats
	Gossip GossipStats
}

// RoutingStats and GossipStats alias their owning packages' stat shapes so
// callers of this package need not import router/gossip directly.
type RoutingStats = struct {
	ProcessedPackets uint64
	DroppedPackets   uint64
	DuplicatePackets uint64
	ForwardedPackets uint64
}
type GossipStats = struct {
	SyncSessions      uint64
	MessagesExchanged uint64
	FailedSyncs       uint64
}

// Init loads the identity persisted at baseDir, creating one if none exists,
// and builds the full in-process state (store, peer registry, router,
// gossip, policy). Re-calling Init after Init or CreateIdentity builds the
// new state first, swaps it in, and only then closes the old one. The peer
// store opens once per directory per process, so re-initialising with a
// baseDir already opened in this process fails with
// identity.ErrAlreadyInitialized.
func (c *Core) Init(baseDir string) error {
	var (
		self *identity.Identity
		err  error
	)
	if identity.Exists(baseDir) {
		self, _, err = identity.Load(baseDir)
	} else {
		self, err = identity.New()
		if err == nil {
			err = self.Save(baseDir)
		}
	}
	if err != nil {
		return fmt.Errorf("core: init identity: %w", err)
	}
	return c.loadState(baseDir, self)
}

// CreateIdentity discards any identity persisted at baseDir and generates a
// fresh one, rebuilding state around it. Used when the embedder explicitly
// wants a new peer-id rather than reusing a saved one.
func (c *Core) CreateIdentity(baseDir string) error {
	self, err := identity.New()
	if err != nil {
		return fmt.Errorf("core: create identity: %w", err)
	}
	if err := self.Save(baseDir); err != nil {
		return fmt.Errorf("core: save identity: %w", err)
	}
	return c.loadState(baseDir, self)
}

func (c *Core) loadState(baseDir string, self *identity.Identity) error {
	st, err := newState(baseDir, self, defaultMaxStoredMessages)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.state
	c.state = st
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// GetIdentityID returns the hex-encoded Ed25519-derived peer id.
func (c *Core) GetIdentityID() (string, error) {
	st, err := c.current()
	if err != nil {
		return "", err
	}
	return st.self.ID(), nil
}

// GetIdentityX25519PublicKeyHex returns this identity's key-agreement public
// key, hex-encoded, for out-of-band exchange with a new peer.
func (c *Core) GetIdentityX25519PublicKeyHex() (string, error) {
	st, err := c.current()
	if err != nil {
		return "", err
	}
	return st.self.X25519PublicHex(), nil
}

// AddPeer registers a known peer's key-agreement public key, hex-encoded.
func (c *Core) AddPeer(peerID, x25519Hex string) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	xPub, err := hex.DecodeString(x25519Hex)
	if err != nil {
		return fmt.Errorf("core: decode x25519 hex: %w", err)
	}
	if len(xPub) != packet.PubKeySize {
		return fmt.Errorf("core: x25519 key must be %d bytes", packet.PubKeySize)
	}
	return st.peerStore.Add(identity.Peer{PeerID: peerID, X25519Pub: xPub})
}

// PeerStoreAdd inserts or refreshes a full known-peer entry (§4.2), for
// callers that already hold a transport.Peer-shaped record.
func (c *Core) PeerStoreAdd(p identity.Peer) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	return st.peerStore.Add(p)
}

// PeerStoreList returns every known peer, sorted by peer id.
func (c *Core) PeerStoreList() ([]identity.Peer, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	return st.peerStore.List(), nil
}

// PeerStoreRemove drops a known peer.
func (c *Core) PeerStoreRemove(peerID string) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	return st.peerStore.Remove(peerID)
}

func (s *State) buildMessage(msgType message.Type, text string, status message.StatusType, voice []byte) (*message.Message, error) {
	var (
		msg *message.Message
		err error
	)
	switch msgType {
	case message.TypeStatus:
		msg, err = message.NewStatus(s.self.ID(), status)
	case message.TypeText:
		msg, err = message.NewText(s.self.ID(), text)
	case message.TypeVoice:
		msg, err = message.NewVoice(s.self.ID(), voice)
	}
	if err != nil {
		return nil, err
	}
	if err := s.policyMgr.ValidateMessage(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyViolation, err)
	}
	return msg, nil
}

// broadcast builds one packet per known peer (each individually encrypted
// under that peer's X25519 key) and routes it, skipping peers with no
// recorded key-agreement key. Packet construction (asymmetric crypto) runs
// concurrently across peers via errgroup; routing each built packet still
// happens inline once it's ready. It returns the packets actually built.
func (s *State) broadcast(ctx context.Context, msg *message.Message) ([]*packet.Packet, error) {
	peers := s.peerStore.List()
	targets := make([]identity.Peer, 0, len(peers))
	for _, p := range peers {
		if len(p.X25519Pub) == packet.PubKeySize {
			targets = append(targets, p)
		}
	}

	pkts := make([]*packet.Packet, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range targets {
		i, p := i, p
		g.Go(func() error {
			pkt, err := packet.FromMessage(msg, s.self, p.X25519Pub)
			if err != nil {
				return err
			}
			pkts[i] = pkt
			_ = s.router.SendTo(gctx, pkt, p.PeerID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pkts, nil
}

func (s *State) sendTo(ctx context.Context, msg *message.Message, peerID string) (*packet.Packet, error) {
	p, ok := s.peerStore.Get(peerID)
	if !ok {
		return nil, ErrUnknownPeer
	}
	if len(p.X25519Pub) != packet.PubKeySize {
		return nil, ErrUnknownPeer
	}
	pkt, err := packet.FromMessage(msg, s.self, p.X25519Pub)
	if err != nil {
		return nil, err
	}
	if err := s.router.SendTo(ctx, pkt, peerID); err != nil {
		return nil, err
	}
	return pkt, nil
}

// SendStatus broadcasts a presence status to every known peer.
func (c *Core) SendStatus(ctx context.Context, status message.StatusType) ([]*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeStatus, "", status, nil)
	if err != nil {
		return nil, err
	}
	return st.broadcast(ctx, msg)
}

// SendStatusTo sends a presence status to a single known peer.
func (c *Core) SendStatusTo(ctx context.Context, peerID string, status message.StatusType) (*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeStatus, "", status, nil)
	if err != nil {
		return nil, err
	}
	return st.sendTo(ctx, msg, peerID)
}

// SendText broadcasts a text message to every known peer.
func (c *Core) SendText(ctx context.Context, text string) ([]*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeText, text, "", nil)
	if err != nil {
		return nil, err
	}
	return st.broadcast(ctx, msg)
}

// SendTextTo sends a text message to a single known peer.
func (c *Core) SendTextTo(ctx context.Context, peerID, text string) (*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeText, text, "", nil)
	if err != nil {
		return nil, err
	}
	return st.sendTo(ctx, msg, peerID)
}

// SendVoice broadcasts a voice clip to every known peer.
func (c *Core) SendVoice(ctx context.Context, voice []byte) ([]*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeVoice, "", "", voice)
	if err != nil {
		return nil, err
	}
	return st.broadcast(ctx, msg)
}

// SendVoiceTo sends a voice clip to a single known peer.
func (c *Core) SendVoiceTo(ctx context.Context, peerID string, voice []byte) (*packet.Packet, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := st.buildMessage(message.TypeVoice, "", "", voice)
	if err != nil {
		return nil, err
	}
	return st.sendTo(ctx, msg, peerID)
}

// receivePacket is the decrypt-dedup-store-or-relay contract shared by
// every path that can receive a packet addressed to this identity: a packet
// this identity can decrypt is deduplicated against the seen-set and, if
// new, stored as a delivered message; a packet that fails decryption is not
// addressed to this identity and is handed to the router's dedup/flood path
// instead, as an in-transit relay hop would be (§2, §4.6).
func (s *State) receivePacket(ctx context.Context, pkt *packet.Packet) (*message.Message, error) {
	msg, derr := packet.Decrypt(pkt, s.self)
	if derr != nil {
		if err := s.router.HandlePacket(ctx, pkt); err != nil {
			return nil, err
		}
		return nil, nil
	}

	seen, err := s.store.IsMessageSeen(pkt.MessageID)
	if err != nil {
		return nil, err
	}
	if seen {
		s.router.RecordDuplicate()
		return msg, nil
	}
	if err := s.store.MarkMessageSeen(pkt.MessageID); err != nil {
		return nil, err
	}

	plaintext, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("core: encode received message: %w", err)
	}
	if err := s.store.StoreMessage(store.StoredMessage{
		ID: msg.ID, SenderID: msg.SenderID, MessageType: string(msg.Type),
		Payload: plaintext, CreatedAt: msg.Timestamp, ExpiresAt: msg.Timestamp.Add(defaultImportTTL),
	}, true); err != nil {
		return nil, err
	}
	s.router.RecordProcessed()
	return msg, nil
}

// HandleIncomingPacket decrypts and routes a raw wire packet. A packet
// addressed to this identity is deduplicated and stored, and its decoded
// message is returned; a packet that is not addressed to this identity is
// relayed onward and a nil message is returned.
func (c *Core) HandleIncomingPacket(ctx context.Context, raw []byte) (*message.Message, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	pkt, err := packet.FromBytes(raw)
	if err != nil {
		return nil, err
	}
	return st.receivePacket(ctx, pkt)
}

// HandleIncomingPacketWithPeer is HandleIncomingPacket plus bookkeeping for
// a known transport-level sender: the peer's last_seen is refreshed and a
// transport-receipt ack is recorded.
func (c *Core) HandleIncomingPacketWithPeer(ctx context.Context, raw []byte, peerID string) (*message.Message, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	msg, err := c.HandleIncomingPacket(ctx, raw)
	if err != nil {
		return nil, err
	}
	st.peerStore.Touch(peerID)
	if msg != nil {
		_ = st.store.StoreAck(msg.ID, peerID, store.AckReceived)
	}
	return msg, nil
}

// ExportPendingMessages returns stored application messages (every row
// other than raw packets) not yet delivered, for transfer to another instance sharing no live
// transport (§4.10).
func (c *Core) ExportPendingMessages() ([]store.StoredMessage, error) {
	return c.exportPending(false)
}

// ExportPendingPackets returns undelivered wire packets queued by the
// router's store-and-forward path (§4.6) for out-of-band transfer.
func (c *Core) ExportPendingPackets() ([]store.StoredMessage, error) {
	return c.exportPending(true)
}

func (c *Core) exportPending(wantPackets bool) ([]store.StoredMessage, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	all, err := st.store.GetPendingMessages()
	if err != nil {
		return nil, err
	}
	out := make([]store.StoredMessage, 0, len(all))
	for _, m := range all {
		isPacket := m.MessageType == "packet"
		if isPacket == wantPackets {
			out = append(out, m)
		}
	}
	return out, nil
}

// ImportMessages stores canonical-CBOR-encoded message.Message blobs
// received out-of-band (e.g. via sneakernet transfer between two
// instances), matching the shape gossip itself stores.
func (c *Core) ImportMessages(raw [][]byte) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	for _, b := range raw {
		var m message.Message
		if err := cbor.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("core: decode imported message: %w", err)
		}
		if err := st.store.StoreMessage(store.StoredMessage{
			ID: m.ID, SenderID: m.SenderID, MessageType: string(m.Type),
			Payload: b, CreatedAt: m.Timestamp, ExpiresAt: m.Timestamp.Add(defaultImportTTL),
		}, false); err != nil {
			return err
		}
	}
	return nil
}

// ImportMessagesWithPeer imports messages and records an ack from peerID
// for each.
func (c *Core) ImportMessagesWithPeer(raw [][]byte, peerID string) error {
	if err := c.ImportMessages(raw); err != nil {
		return err
	}
	st, err := c.current()
	if err != nil {
		return err
	}
	for _, b := range raw {
		var m message.Message
		if err := cbor.Unmarshal(b, &m); err == nil {
			_ = st.store.StoreAck(m.ID, peerID, store.AckReceived)
		}
	}
	return nil
}

// ImportPackets decodes raw wire packets received out-of-band, as if they
// had just arrived over a transport. A packet this identity can decrypt is
// treated as delivered: the decoded message is stored. A packet that fails
// decryption is not addressed to this identity and is handed to the
// router's dedup/flood path instead, as an in-transit relay hop would.
func (c *Core) ImportPackets(ctx context.Context, raw [][]byte) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	for _, b := range raw {
		pkt, err := packet.FromBytes(b)
		if err != nil {
			return err
		}
		if _, err := st.receivePacket(ctx, pkt); err != nil {
			return err
		}
	}
	return nil
}

// ImportPacketsWithPeer is ImportPackets plus a refreshed last_seen for
// peerID.
func (c *Core) ImportPacketsWithPeer(ctx context.Context, raw [][]byte, peerID string) error {
	if err := c.ImportPackets(ctx, raw); err != nil {
		return err
	}
	st, err := c.current()
	if err != nil {
		return err
	}
	st.peerStore.Touch(peerID)
	return nil
}

// defaultImportTTL bounds how long an imported message stays eligible for
// further gossip before CleanupExpired reclaims it.
const defaultImportTTL = 24 * time.Hour

// MarkDelivered flips a stored message's delivered flag.
func (c *Core) MarkDelivered(messageID string) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	return st.store.MarkDelivered(messageID)
}

// GetAcksForMessage returns every recorded ack for a message id.
func (c *Core) GetAcksForMessage(messageID string) ([]store.Ack, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	return st.store.GetAcksForMessage(messageID)
}

// GetRecentMessages returns up to limit stored message records, newest
// first, without decoding their payload.
func (c *Core) GetRecentMessages(limit int) ([]store.StoredMessage, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	return st.store.GetRecentMessages(limit)
}

// GetRecentMessagesFull is GetRecentMessages with each payload decoded back
// into a message.Message where possible (packet-shaped payloads, which
// carry only encrypted content, are omitted).
func (c *Core) GetRecentMessagesFull(limit int) ([]*message.Message, error) {
	st, err := c.current()
	if err != nil {
		return nil, err
	}
	rows, err := st.store.GetRecentMessages(limit)
	if err != nil {
		return nil, err
	}
	out := make([]*message.Message, 0, len(rows))
	for _, row := range rows {
		if row.MessageType == "packet" {
			continue
		}
		var m message.Message
		if err := cbor.Unmarshal(row.Payload, &m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// SetPolicy switches the active adaptation policy by name: "default",
// "military", "collapse", or "offline" (§4.8).
func (c *Core) SetPolicy(name string) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	var p policy.Policy
	switch name {
	case "default":
		p = policy.Default()
	case "military":
		p = policy.Military()
	case "collapse":
		p = policy.Collapse()
	case "offline":
		p = policy.Offline()
	default:
		return fmt.Errorf("core: unknown policy %q", name)
	}
	st.policyMgr.SetPolicy(p)
	return nil
}

// StartListening starts every registered transport's receive loop, the
// gossip anti-entropy loop, and the retry-queue drain loop. Inbound packets
// follow the decrypt-dedup-store-or-relay contract: a packet addressed to
// this identity is stored, anything else is relayed onward (§2, §4.6, §4.7).
func (c *Core) StartListening(ctx context.Context) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	handler := func(pkt *packet.Packet, fromAddress string) {
		_, _ = st.receivePacket(ctx, pkt)
	}
	var firstErr error
	for _, kind := range registeredTransportTypes {
		t, ok := st.manager.Get(kind)
		if !ok {
			continue
		}
		if err := t.StartListening(ctx, handler); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := st.startGossipLoop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// registeredTransportTypes enumerates every physical channel kind the
// manager may have a transport registered for (§4.5).
var registeredTransportTypes = []transport.Type{
	transport.TypeUDP, transport.TypeWireless, transport.TypeShortRange, transport.TypeSatellite,
}

// StopListening stops every registered transport's receive loop along with
// the gossip and retry-queue drain loops.
func (c *Core) StopListening() error {
	st, err := c.current()
	if err != nil {
		return err
	}
	st.stopGossipLoop()
	var firstErr error
	for _, kind := range registeredTransportTypes {
		t, ok := st.manager.Get(kind)
		if !ok {
			continue
		}
		if err := t.StopListening(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetStats returns a merged snapshot of store occupancy and routing/gossip
// activity counters.
func (c *Core) GetStats() (Stats, error) {
	st, err := c.current()
	if err != nil {
		return Stats{}, err
	}
	storeStats, err := st.store.GetStats()
	if err != nil {
		return Stats{}, err
	}
	rs := st.router.GetStats()
	gs := st.gossip.GetStats()
	return Stats{
		Store:  storeStats,
		Router: RoutingStats{ProcessedPackets: rs.ProcessedPackets, DroppedPackets: rs.DroppedPackets, DuplicatePackets: rs.DuplicatePackets, ForwardedPackets: rs.ForwardedPackets},
		Gossip: GossipStats{SyncSessions: gs.SyncSessions, MessagesExchanged: gs.MessagesExchanged, FailedSyncs: gs.FailedSyncs},
	}, nil
}

// WipeLocalData clears the in-process singleton, closes the old state and
// irrecoverably deletes every file this instance persisted under baseDir.
// A fresh Init or CreateIdentity is required before the Core is usable
// again; within the same process that call fails with
// identity.ErrAlreadyInitialized for the same baseDir, because the peer
// store opens once per directory per process. Resolved via Core.swap rather
// than mutating the live State in place (§9).
func (c *Core) WipeLocalData(baseDir string) error {
	st, err := c.current()
	if err != nil {
		return err
	}
	c.swap(nil)
	st.Close()

	names := []string{"yaok_identity.json", "yaok_peers.json", "yaok_store.db", "yaok_store.db-wal", "yaok_store.db-shm", "db_key.config"}
	var firstErr error
	for _, name := range names {
		if err := os.Remove(filepath.Join(baseDir, name)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
