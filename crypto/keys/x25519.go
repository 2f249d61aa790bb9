// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 yaok-project
//
// This file is part of yaok-core.
//
// yaok-core is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// yaok-core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with yaok-core. If not, see <https://www.gnu.org/licenses/>.

package keys

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	yaokcrypto "github.com/yaok-project/yaok-core/crypto"
)

// X25519KeyPair is a peer's long-term key-agreement identity, independent of
// its Ed25519 signing key.
type X25519KeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
}

// GenerateX25519KeyPair draws a fresh X25519 key pair from the OS CSPRNG.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate x25519 key: %w", err)
	}
	return &X25519KeyPair{privateKey: priv, publicKey: priv.PublicKey()}, nil
}

// X25519FromPrivateBytes reconstructs a key pair from a 32-byte scalar, as
// loaded from the identity file.
func X25519FromPrivateBytes(b []byte) (*X25519KeyPair, error) {
	priv, err := ecdh.X25519().NewPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", yaokcrypto.ErrInvalidKey, err)
	}
	return &X25519KeyPair{privateKey: priv, publicKey: priv.PublicKey()}, nil
}

// PublicBytes returns the 32-byte public key.
func (kp *X25519KeyPair) PublicBytes() []byte {
	return kp.publicKey.Bytes()
}

// PrivateBytes returns the 32-byte private scalar, for persistence.
func (kp *X25519KeyPair) PrivateBytes() []byte {
	return kp.privateKey.Bytes()
}

// ECDH computes the raw 32-byte X25519 shared point with a peer's public key.
// Callers must run the result through a KDF before using it as an AEAD key;
// see crypto.EncryptPayload / crypto.DecryptPayload.
func (kp *X25519KeyPair) ECDH(peerPubBytes []byte) ([]byte, error) {
	peerPub, err := ecdh.X25519().NewPublicKey(peerPubBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", yaokcrypto.ErrInvalidKey, err)
	}
	shared, err := kp.privateKey.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", yaokcrypto.ErrInvalidKey, err)
	}
	return shared, nil
}
