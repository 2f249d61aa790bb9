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

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"
)

// NonceSize is the width of the random XChaCha20-Poly1305 nonce (192 bits).
const NonceSize = chacha20poly1305.NonceSizeX

// hkdfInfo is the fixed HKDF-Expand context string binding the derived key
// to this protocol's payload encryption, distinguishing it from any other
// consumer of the same ECDH shared secret.
const hkdfInfo = "yaok-core/packet-payload/v1"

// AEADEncrypt seals plaintext under key32 using XChaCha20-Poly1305 with a
// random 192-bit nonce drawn from the OS CSPRNG. Returns ciphertext and the
// nonce used.
func AEADEncrypt(key32, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(key32)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// AEADDecrypt opens ciphertext under key32 with the given nonce.
func AEADDecrypt(key32, ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	aead, err := chacha20poly1305.NewX(key32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// deriveAEADKey runs a raw X25519 ECDH point through HKDF-SHA256 to produce
// a uniform 32-byte AEAD key, rather than using the raw ECDH output directly.
func deriveAEADKey(sharedSecret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return key, nil
}

// ecdhFunc computes a raw shared secret given a local private scalar and a
// peer public key; satisfied by *keys.X25519KeyPair.ECDH.
type ecdhFunc func(peerPub []byte) ([]byte, error)

// EncryptPayload performs ECDH(senderPriv, receiverPub) and AEAD-encrypts
// plaintext under the HKDF-derived key. senderECDH is typically
// (*keys.X25519KeyPair).ECDH bound to the sender's (possibly ephemeral) key.
func EncryptPayload(senderECDH ecdhFunc, receiverXPub, plaintext []byte) (ciphertext, nonce []byte, err error) {
	shared, err := senderECDH(receiverXPub)
	if err != nil {
		return nil, nil, err
	}
	key, err := deriveAEADKey(shared)
	if err != nil {
		return nil, nil, err
	}
	return AEADEncrypt(key, plaintext)
}

// DecryptPayload performs ECDH(receiverPriv, senderEphemeralPub) and
// AEAD-decrypts ciphertext under the HKDF-derived key.
func DecryptPayload(receiverECDH ecdhFunc, senderXPub, ciphertext, nonce []byte) ([]byte, error) {
	shared, err := receiverECDH(senderXPub)
	if err != nil {
		return nil, err
	}
	key, err := deriveAEADKey(shared)
	if err != nil {
		return nil, err
	}
	return AEADDecrypt(key, ciphertext, nonce)
}
