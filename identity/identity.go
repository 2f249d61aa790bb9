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

// Package identity owns a peer's long-term keys and its registry of known
// peers.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yaok-project/yaok-core/crypto/keys"
)

// identityFileName is the persisted identity's file name, fixed so every
// core instance sharing a base directory finds the same file.
const identityFileName = "yaok_identity.json"

// identityFile is the on-disk JSON representation: hex signing key bytes and
// hex X25519 secret bytes.
type identityFile struct {
	Ed25519PrivateHex string `json:"ed25519_private_hex"`
	X25519PrivateHex  string `json:"x25519_private_hex,omitempty"`
}

// Identity is a peer's signing + key-agreement identity. The X25519 pair is
// independently random from the Ed25519 pair (see §3 Invariant).
type Identity struct {
	ed *keys.Ed25519KeyPair
	x  *keys.X25519KeyPair
}

// New generates a fresh identity: independently random Ed25519 and X25519
// key pairs.
func New() (*Identity, error) {
	ed, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	x, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return &Identity{ed: ed, x: x}, nil
}

// VerifierFromPublicBytes constructs a verify-only identity (no private
// material) from a bare Ed25519 public key, used to check signatures on
// decoded inbound packets without ever holding the sender's private key.
func VerifierFromPublicBytes(edPub []byte) (ed25519.PublicKey, error) {
	return keys.Ed25519VerifierFromPublicBytes(edPub)
}

// ID returns the peer-id: lowercase hex of the Ed25519 public key.
func (id *Identity) ID() string {
	return id.ed.ID()
}

// EdPublicBytes returns the raw 32-byte Ed25519 public key.
func (id *Identity) EdPublicBytes() []byte {
	return append([]byte(nil), id.ed.Public...)
}

// X25519PublicBytes returns the raw 32-byte X25519 public key.
func (id *Identity) X25519PublicBytes() []byte {
	return id.x.PublicBytes()
}

// X25519PublicHex is a convenience accessor for the embedding API.
func (id *Identity) X25519PublicHex() string {
	return hex.EncodeToString(id.X25519PublicBytes())
}

// Sign produces a 64-byte Ed25519 signature over message.
func (id *Identity) Sign(message []byte) []byte {
	return id.ed.Sign(message)
}

// Verify checks a signature under this identity's own public key.
func (id *Identity) Verify(message, signature []byte) error {
	return keys.Verify(id.ed.Public, message, signature)
}

// X25519KeyPair exposes the underlying key-agreement pair for the packet
// builder/decrypt path.
func (id *Identity) X25519KeyPair() *keys.X25519KeyPair {
	return id.x
}

// Ed25519KeyPair exposes the underlying signing pair.
func (id *Identity) Ed25519KeyPair() *keys.Ed25519KeyPair {
	return id.ed
}

// Load reads and parses an identity from baseDir/yaok_identity.json. If the
// file lacks an X25519 secret (an older identity file), a new X25519 pair is
// generated and the caller is signaled via regenerated=true so it can
// persist the repaired file; see SPEC_FULL.md §9 on this best-effort
// behavior and its documented migration gap.
func Load(baseDir string) (id *Identity, regenerated bool, err error) {
	path := filepath.Join(baseDir, identityFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	var f identityFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false, fmt.Errorf("parse identity file: %w", err)
	}

	edBytes, err := hex.DecodeString(f.Ed25519PrivateHex)
	if err != nil {
		return nil, false, fmt.Errorf("decode ed25519 private hex: %w", err)
	}
	ed, err := keys.Ed25519FromPrivateBytes(edBytes)
	if err != nil {
		return nil, false, err
	}

	var x *keys.X25519KeyPair
	if f.X25519PrivateHex == "" {
		x, err = keys.GenerateX25519KeyPair()
		if err != nil {
			return nil, false, err
		}
		regenerated = true
	} else {
		xBytes, err2 := hex.DecodeString(f.X25519PrivateHex)
		if err2 != nil {
			return nil, false, fmt.Errorf("decode x25519 private hex: %w", err2)
		}
		x, err = keys.X25519FromPrivateBytes(xBytes)
		if err != nil {
			return nil, false, err
		}
	}

	return &Identity{ed: ed, x: x}, regenerated, nil
}

// Save persists the identity atomically: write to a temp file in the same
// directory, then rename over the target so a crash never leaves a partial
// identity file.
func (id *Identity) Save(baseDir string) error {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	f := identityFile{
		Ed25519PrivateHex: hex.EncodeToString(id.ed.PrivateKey),
		X25519PrivateHex:  hex.EncodeToString(id.x.PrivateBytes()),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	path := filepath.Join(baseDir, identityFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write identity temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename identity file: %w", err)
	}
	return nil
}

// Exists reports whether an identity file is already present under baseDir.
func Exists(baseDir string) bool {
	_, err := os.Stat(filepath.Join(baseDir, identityFileName))
	return err == nil
}
