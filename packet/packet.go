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

// Package packet implements the signed, authenticated-encrypted wire
// envelope carried between peers (§3, §4.3).
package packet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	yaokcrypto "github.com/yaok-project/yaok-core/crypto"
	"github.com/yaok-project/yaok-core/crypto/keys"
	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
)

// Priority orders packets in the DTN router's retry queue. Values match the
// wire encoding and the original's Low=0/Medium=1/High=2 ordinal scheme.
type Priority uint8

const (
	PriorityLow    Priority = 0 // voice
	PriorityMedium Priority = 1 // text
	PriorityHigh   Priority = 2 // status
)

func priorityFor(t message.Type) Priority {
	switch t {
	case message.TypeStatus:
		return PriorityHigh
	case message.TypeText:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

const (
	DefaultTTLSeconds = 3600
	DefaultMaxHops    = 10

	// MaxWireSize is the §3 total-packet size bound.
	MaxWireSize = 128 * 1024
	// MaxCiphertextSize is the §3 ciphertext size bound.
	MaxCiphertextSize = 64 * 1024
	// SignatureSize is the raw Ed25519 signature length.
	SignatureSize = ed25519.SignatureSize
	// PubKeySize is the raw Ed25519/X25519 public key length.
	PubKeySize = 32
)

var (
	ErrSerializationFailed   = errors.New("packet: serialization failed")
	ErrDeserializationFailed = errors.New("packet: deserialization failed")
	ErrInvalidSignature      = errors.New("packet: invalid signature")
	ErrInvalidSenderKey      = errors.New("packet: invalid sender key")
	ErrInvalidReceiverKey    = errors.New("packet: invalid receiver key")
	ErrPacketTooLarge        = errors.New("packet: exceeds maximum wire size")
)

// EncryptedPayload is the AEAD envelope around the serialized message.
type EncryptedPayload struct {
	Ciphertext            []byte `cbor:"1,keyasint" json:"ciphertext"`
	Nonce                 []byte `cbor:"2,keyasint" json:"nonce"`
	EphemeralSenderX25519 []byte `cbor:"3,keyasint" json:"ephemeral_sender_x25519_pub"`
}

// Packet is the transport envelope around one message (§3).
type Packet struct {
	MessageID       string           `cbor:"1,keyasint" json:"message_id"`
	SenderID        string           `cbor:"2,keyasint" json:"sender_id"`
	SenderEd25519   []byte           `cbor:"3,keyasint" json:"sender_ed25519_pub"`
	SenderX25519    []byte           `cbor:"4,keyasint" json:"sender_x25519_pub"`
	Timestamp       time.Time        `cbor:"5,keyasint" json:"timestamp"`
	TTLSeconds      uint32           `cbor:"6,keyasint" json:"ttl_seconds"`
	Hops            uint32           `cbor:"7,keyasint" json:"hops"`
	MaxHops         uint32           `cbor:"8,keyasint" json:"max_hops"`
	Priority        Priority         `cbor:"9,keyasint" json:"priority"`
	EncryptedPayload EncryptedPayload `cbor:"10,keyasint" json:"encrypted_payload"`
	Signature       []byte           `cbor:"11,keyasint" json:"signature"`
}

// canonicalEncMode is the deterministic CBOR encoder used for both wire
// serialization and the signed form (§3: "canonical encoding is
// deterministic binary (CBOR)").
var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("packet: building canonical cbor encoder: %v", err))
	}
	return m
}()

// FromMessage builds a signed, encrypted packet for msg, addressed to a peer
// whose X25519 public key is receiverXPub (§4.3 builder steps 1-4).
func FromMessage(msg *message.Message, sender *identity.Identity, receiverXPub []byte) (*Packet, error) {
	if len(receiverXPub) != PubKeySize {
		return nil, ErrInvalidReceiverKey
	}

	msgBytes, err := canonicalEncMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	ciphertext, nonce, err := yaokcrypto.EncryptPayload(ephemeral.ECDH, receiverXPub, msgBytes)
	if err != nil {
		return nil, err
	}

	pkt := &Packet{
		MessageID:     msg.ID,
		SenderID:      msg.SenderID,
		SenderEd25519: sender.EdPublicBytes(),
		SenderX25519:  sender.X25519PublicBytes(),
		Timestamp:     msg.Timestamp,
		TTLSeconds:    DefaultTTLSeconds,
		Hops:          0,
		MaxHops:       DefaultMaxHops,
		Priority:      priorityFor(msg.Type),
		EncryptedPayload: EncryptedPayload{
			Ciphertext:            ciphertext,
			Nonce:                 nonce,
			EphemeralSenderX25519: ephemeral.PublicBytes(),
		},
	}

	signingBytes, err := pkt.signingBytes()
	if err != nil {
		return nil, err
	}
	pkt.Signature = sender.Sign(signingBytes)

	return pkt, nil
}

// signingBytes returns the canonical encoding of the packet with
// Signature cleared, the data actually signed/verified (§4.3 step 4, §4.3
// decrypt step 2).
func (p *Packet) signingBytes() ([]byte, error) {
	cp := *p
	cp.Signature = nil
	b, err := canonicalEncMode.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return b, nil
}

// Decrypt verifies and decrypts pkt, returning the original message.
// receiver's X25519 private key performs ECDH against the embedded ephemeral sender key
// (§4.3 decrypt steps 1-5).
func Decrypt(pkt *Packet, receiver *identity.Identity) (*message.Message, error) {
	if err := pkt.structuralCheck(); err != nil {
		return nil, err
	}

	senderPub, err := keys.Ed25519VerifierFromPublicBytes(pkt.SenderEd25519)
	if err != nil {
		return nil, ErrInvalidSenderKey
	}

	signingBytes, err := pkt.signingBytes()
	if err != nil {
		return nil, err
	}
	if err := keys.Verify(senderPub, signingBytes, pkt.Signature); err != nil {
		return nil, ErrInvalidSignature
	}

	if keys.PeerIDFromPublic(senderPub) != pkt.SenderID {
		return nil, ErrInvalidSenderKey
	}

	plaintext, err := yaokcrypto.DecryptPayload(
		receiver.X25519KeyPair().ECDH,
		pkt.EncryptedPayload.EphemeralSenderX25519,
		pkt.EncryptedPayload.Ciphertext,
		pkt.EncryptedPayload.Nonce,
	)
	if err != nil {
		return nil, err
	}

	var msg message.Message
	if err := cbor.Unmarshal(plaintext, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return &msg, nil
}

// structuralCheck rejects malformed envelopes before any crypto work
// (§4.3 decrypt step 1).
func (p *Packet) structuralCheck() error {
	if len(p.SenderEd25519) != PubKeySize || len(p.SenderX25519) != PubKeySize {
		return ErrInvalidSenderKey
	}
	if len(p.EncryptedPayload.EphemeralSenderX25519) != PubKeySize {
		return ErrInvalidSenderKey
	}
	if len(p.Signature) != SignatureSize {
		return ErrInvalidSignature
	}
	if len(p.EncryptedPayload.Ciphertext) > MaxCiphertextSize {
		return ErrPacketTooLarge
	}
	b, err := ToBytes(p)
	if err != nil {
		return err
	}
	if len(b) > MaxWireSize {
		return ErrPacketTooLarge
	}
	return nil
}

// CanBeForwarded checks hops<max_hops AND elapsed<ttl using a single time
// reading, avoiding the TOCTOU window a separate is_expired()+can_forward()
// pair would introduce (§4.3, §9).
func (p *Packet) CanBeForwarded() bool {
	now := time.Now()
	elapsed := now.Sub(p.Timestamp)
	return p.Hops < p.MaxHops && elapsed < time.Duration(p.TTLSeconds)*time.Second
}

// IncrementHops bumps the hop counter in place.
func (p *Packet) IncrementHops() {
	p.Hops++
}

// ToBytes serializes the packet to its canonical CBOR wire form.
func ToBytes(p *Packet) ([]byte, error) {
	b, err := canonicalEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return b, nil
}

// FromBytes parses a packet from its canonical CBOR wire form, rejecting
// oversized input before allocating a destination struct.
func FromBytes(b []byte) (*Packet, error) {
	if len(b) > MaxWireSize {
		return nil, ErrPacketTooLarge
	}
	var p Packet
	if err := cbor.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return &p, nil
}

// String renders a short human-readable summary, mirroring the original's
// Display implementation.
func (p *Packet) String() string {
	id := p.MessageID
	if len(id) > 8 {
		id = id[:8]
	}
	sender := p.SenderID
	if len(sender) > 8 {
		sender = sender[:8]
	}
	return fmt.Sprintf("Packet(id=%s, sender=%s, priority=%d, hops=%d/%d)",
		id, sender, p.Priority, p.Hops, p.MaxHops)
}
