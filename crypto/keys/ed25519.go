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

// Package keys holds the concrete Ed25519 and X25519 key pair types used
// to build a peer's identity.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	yaokcrypto "github.com/yaok-project/yaok-core/crypto"
)

// Ed25519KeyPair is a peer's long-term signing identity. The peer-id is the
// lowercase hex encoding of the full 32-byte public key.
type Ed25519KeyPair struct {
	PrivateKey ed25519.PrivateKey
	Public     ed25519.PublicKey
}

// GenerateEd25519KeyPair draws a fresh signing key pair from the OS CSPRNG.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Ed25519KeyPair{PrivateKey: priv, Public: pub}, nil
}

// Ed25519FromPrivateBytes reconstructs a key pair from a 64-byte (or 32-byte
// seed) private key, as loaded from the identity file.
func Ed25519FromPrivateBytes(b []byte) (*Ed25519KeyPair, error) {
	switch len(b) {
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(append([]byte(nil), b...))
		pub := priv.Public().(ed25519.PublicKey)
		return &Ed25519KeyPair{PrivateKey: priv, Public: pub}, nil
	case ed25519.SeedSize:
		priv := ed25519.NewKeyFromSeed(b)
		pub := priv.Public().(ed25519.PublicKey)
		return &Ed25519KeyPair{PrivateKey: priv, Public: pub}, nil
	default:
		return nil, fmt.Errorf("%w: ed25519 private key must be %d or %d bytes, got %d",
			yaokcrypto.ErrInvalidKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}

// Ed25519VerifierFromPublicBytes builds a verify-only identity from a bare
// 32-byte Ed25519 public key, as used when reconstructing a sender's
// identity from an inbound packet.
func Ed25519VerifierFromPublicBytes(b []byte) (ed25519.PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d",
			yaokcrypto.ErrInvalidKey, ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(append([]byte(nil), b...)), nil
}

// ID returns the peer-id: lowercase hex of the full public key.
func (kp *Ed25519KeyPair) ID() string {
	return hex.EncodeToString(kp.Public)
}

// Sign produces a detached 64-byte Ed25519 signature over message.
func (kp *Ed25519KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// Verify checks a detached signature. Wraps crypto.ErrInvalidSignature on mismatch.
func Verify(pub ed25519.PublicKey, message, signature []byte) error {
	if len(signature) != ed25519.SignatureSize {
		return yaokcrypto.ErrInvalidSignature
	}
	if !ed25519.Verify(pub, message, signature) {
		return yaokcrypto.ErrInvalidSignature
	}
	return nil
}

// PeerIDFromPublic returns the hex peer-id for an arbitrary Ed25519 public key.
func PeerIDFromPublic(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
