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
)

// AckType distinguishes transport-layer receipt from application-level
// delivery confirmation (§4.6).
type AckType string

const (
	AckReceived  AckType = "received"
	AckDelivered AckType = "delivered"
)

// Ack is one recorded acknowledgement for a message.
type Ack struct {
	MessageID  string
	FromPeerID string
	Type       AckType
	ReceivedAt time.Time
}

// StoreAck records an acknowledgement, marking the message delivered when
// ack is an application-level AckDelivered.
func (s *Store) StoreAck(messageID, fromPeerID string, ackType AckType) error {
	if err := validMessageID(messageID); err != nil {
		return err
	}
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT INTO acks (message_id, from_peer_id, ack_type, received_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_id, from_peer_id, ack_type) DO NOTHING`,
		messageID, fromPeerID, string(ackType), unixNow(),
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store ack: %w", err)
	}
	if ackType == AckDelivered {
		return s.MarkDelivered(messageID)
	}
	return nil
}

// GetAcksForMessage returns every recorded ack for id.
func (s *Store) GetAcksForMessage(id string) ([]Ack, error) {
	if err := validMessageID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT message_id, from_peer_id, ack_type, received_at FROM acks WHERE message_id = ? ORDER BY received_at ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query acks: %w", err)
	}
	defer rows.Close()

	var out []Ack
	for rows.Next() {
		var a Ack
		var receivedAt int64
		var ackType string
		if err := rows.Scan(&a.MessageID, &a.FromPeerID, &ackType, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan ack: %w", err)
		}
		a.Type = AckType(ackType)
		a.ReceivedAt = time.Unix(receivedAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
