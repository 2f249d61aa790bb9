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

package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// dbKeyConfigFileName is the persisted key-derivation parameters file, next
// to the database (§6 "Persisted state layout"). It stores parameters, not
// the key itself.
const dbKeyConfigFileName = "db_key.config"

// PBKDF2Iterations is the iteration count written into new key configs,
// above §4.4's floor of 100,000.
const PBKDF2Iterations = 120_000

type dbKeyConfig struct {
	SaltHex    string `json:"salt"`
	Iterations int    `json:"iterations"`
	Version    int    `json:"version"`
}

// DeriveDBKey derives (or loads) the 256-bit at-rest encryption key for the
// store at baseDir, from a device fingerprint plus a random salt via
// PBKDF2-SHA256, persisting the salt alongside the database so the same key
// can be rederived on the next run (§4.4). The derived key is handed to the
// storage engine's own at-rest encryption mechanism when the engine supports
// one; engines that don't (see DESIGN.md) leave the database file in
// plaintext, in which case nothing checks the key and it protects nothing.
func DeriveDBKey(baseDir, deviceFingerprint string) ([]byte, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}

	path := filepath.Join(baseDir, dbKeyConfigFileName)
	cfg, err := loadKeyConfig(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		cfg = dbKeyConfig{SaltHex: hex.EncodeToString(salt), Iterations: PBKDF2Iterations, Version: 1}
		if err := saveKeyConfig(path, cfg); err != nil {
			return nil, err
		}
	}

	salt, err := hex.DecodeString(cfg.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	key := pbkdf2.Key([]byte(deviceFingerprint), salt, cfg.Iterations, 32, sha256.New)
	return key, nil
}

func loadKeyConfig(path string) (dbKeyConfig, error) {
	var cfg dbKeyConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse db key config: %w", err)
	}
	return cfg, nil
}

func saveKeyConfig(path string, cfg dbKeyConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
