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
	"errors"
	"fmt"
)

// IsMessageSeen reports whether id is already in the dedup set, the router's
// flood-suppression check (§4.6).
func (s *Store) IsMessageSeen(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM seen_messages WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return true, nil
}

// MarkMessageSeen records id in the dedup set.
func (s *Store) MarkMessageSeen(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO seen_messages (id, seen_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, unixNow(),
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// CleanupSeenOlderThan deletes dedup entries older than maxAgeSeconds,
// bounding the seen-set's memory footprint over long uptimes.
func (s *Store) CleanupSeenOlderThan(maxAgeSeconds int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM seen_messages WHERE seen_at < ?`, unixNow()-maxAgeSeconds)
	if err != nil {
		return 0, fmt.Errorf("cleanup seen: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
