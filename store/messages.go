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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredMessage is a persisted record of one message's wire payload plus its
// delivery bookkeeping (§4.4).
type StoredMessage struct {
	ID          string
	SenderID    string
	MessageType string
	Payload     []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Delivered   bool
}

func validMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// StoreMessage inserts msg, rejecting the write once maxRows is reached
// (§4.4 "max_stored_messages" policy gate). Re-storing an id already present
// is a no-op, matching the original's idempotent store semantics.
func (s *Store) StoreMessage(msg StoredMessage, delivered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRows > 0 {
		var count int64
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		if count >= int64(s.maxRows) {
			return ErrStoreFull
		}
	}

	delivFlag := 0
	if delivered {
		delivFlag = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, sender_id, message_type, payload, created_at, expires_at, delivered)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		msg.ID, msg.SenderID, msg.MessageType, msg.Payload, msg.CreatedAt.Unix(), msg.ExpiresAt.Unix(), delivFlag,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MarkDelivered flips the delivered flag for id.
func (s *Store) MarkDelivered(id string) error {
	if err := validMessageID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE messages SET delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingMessages returns undelivered messages, oldest first, for
// retry/flood dispatch.
func (s *Store) GetPendingMessages() ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryMessages(`SELECT id, sender_id, message_type, payload, created_at, expires_at, delivered
		FROM messages WHERE delivered = 0 ORDER BY created_at ASC`)
}

// GetRecentMessages returns up to limit messages, newest first.
func (s *Store) GetRecentMessages(limit int) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryMessages(`SELECT id, sender_id, message_type, payload, created_at, expires_at, delivered
		FROM messages ORDER BY created_at DESC LIMIT ?`, limit)
}

// GetMessagesFrom returns all messages from a given sender, newest first
// (supplemented from the original's broader query surface).
func (s *Store) GetMessagesFrom(senderID string) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryMessages(`SELECT id, sender_id, message_type, payload, created_at, expires_at, delivered
		FROM messages WHERE sender_id = ? ORDER BY created_at DESC`, senderID)
}

// GetMessagesSince returns messages created at or after since.
func (s *Store) GetMessagesSince(since time.Time) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryMessages(`SELECT id, sender_id, message_type, payload, created_at, expires_at, delivered
		FROM messages WHERE created_at >= ? ORDER BY created_at ASC`, since.Unix())
}

// GetMessageByID fetches a single message. The id must parse as a UUID;
// anything else (including SQL-injection attempts) is rejected before ever
// reaching the query layer (§8).
func (s *Store) GetMessageByID(id string) (StoredMessage, error) {
	if err := validMessageID(id); err != nil {
		return StoredMessage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryMessagesLocked(`SELECT id, sender_id, message_type, payload, created_at, expires_at, delivered
		FROM messages WHERE id = ?`, id)
	if err != nil {
		return StoredMessage{}, err
	}
	if len(rows) == 0 {
		return StoredMessage{}, ErrNotFound
	}
	return rows[0], nil
}

// CleanupExpired deletes messages past their expiry, reclaims the freed
// pages via incremental_vacuum, and returns the count removed (§4.4).
func (s *Store) CleanupExpired() (int64, error) {
	s.mu.Lock()
	res, err := s.db.Exec(`DELETE FROM messages WHERE expires_at < ?`, unixNow())
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("cleanup expired messages: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := s.db.Exec(`PRAGMA incremental_vacuum;`); err != nil {
		s.mu.Unlock()
		return n, fmt.Errorf("incremental vacuum: %w", err)
	}
	s.mu.Unlock()
	return n, nil
}

func (s *Store) queryMessages(query string, args ...any) ([]StoredMessage, error) {
	return s.queryMessagesLocked(query, args...)
}

// queryMessagesLocked assumes s.mu is already held.
func (s *Store) queryMessagesLocked(query string, args ...any) ([]StoredMessage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var created, expires int64
		var delivered int
		if err := rows.Scan(&m.ID, &m.SenderID, &m.MessageType, &m.Payload, &created, &expires, &delivered); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.Unix(created, 0).UTC()
		m.ExpiresAt = time.Unix(expires, 0).UTC()
		m.Delivered = delivered != 0
		out = append(out, m)
	}
	return out, rows.Err()
}
