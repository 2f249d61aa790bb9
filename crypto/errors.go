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

// Package crypto implements the signing, key-agreement, and AEAD primitives
// the rest of the module builds on: Ed25519 signatures, X25519 ECDH, and
// XChaCha20-Poly1305 authenticated encryption.
package crypto

import "errors"

var (
	// ErrInvalidSignature is returned when a signature fails verification.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
	// ErrInvalidKey is returned when key material has the wrong length or is malformed.
	ErrInvalidKey = errors.New("crypto: invalid key")
	// ErrInvalidNonce is returned when a nonce has the wrong length.
	ErrInvalidNonce = errors.New("crypto: invalid nonce")
	// ErrEncryptionFailed wraps AEAD seal failures.
	ErrEncryptionFailed = errors.New("crypto: encryption failed")
	// ErrDecryptionFailed wraps AEAD open failures (includes forged/corrupt ciphertext).
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)
