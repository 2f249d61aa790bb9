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
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

// NonceTTLSeconds bounds how long a used AEAD nonce is remembered for replay
// rejection: 24h, independent of packet TTL, since a node that has been
// offline for up to a day must still recognize a nonce it saw before going
// dark (§3, §4.4, §5).
const NonceTTLSeconds = 86400

// IsNonceUsed reports whether nonce (paired with senderID, since nonces are
// only required to be unique per-sender) has already been consumed.
func (s *Store) IsNonceUsed(nonce []byte, senderID string) (bool, error) {
	key := nonceKey(nonce, senderID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM used_nonces WHERE nonce_hex = ?`, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check nonce: %w", err)
	}
	return true, nil
}

// MarkNonceUsed records nonce as consumed.
func (s *Store) MarkNonceUsed(nonce []byte, senderID string) error {
	key := nonceKey(nonce, senderID)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO used_nonces (nonce_hex, sender_id, used_at) VALUES (?, ?, ?) ON CONFLICT(nonce_hex) DO NOTHING`,
		key, senderID, unixNow(),
	)
	if err != nil {
		return fmt.Errorf("mark nonce used: %w", err)
	}
	return nil
}

// CleanupExpiredNonces deletes nonce records older than NonceTTLSeconds and
// reclaims the freed pages via incremental_vacuum (§4.4).
func (s *Store) CleanupExpiredNonces() (int64, error) {
	s.mu.Lock()
	res, err := s.db.Exec(`DELETE FROM used_nonces WHERE used_at < ?`, unixNow()-NonceTTLSeconds)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("cleanup nonces: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := s.db.Exec(`PRAGMA incremental_vacuum;`); err != nil {
		s.mu.Unlock()
		return n, fmt.Errorf("incremental vacuum: %w", err)
	}
	s.mu.Unlock()
	return n, nil
}

func nonceKey(nonce []byte, senderID string) string {
	return senderID + ":" + hex.EncodeToString(nonce)
}
