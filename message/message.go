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

// Package message defines the three message kinds peers exchange: presence
// status, short text, and short voice clips.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a message's payload kind.
type Type string

const (
	TypeStatus Type = "status"
	TypeText   Type = "text"
	TypeVoice  Type = "voice"
)

// StatusType is the closed set of presence statuses.
type StatusType string

const (
	StatusOK    StatusType = "ok"
	StatusBusy  StatusType = "busy"
	StatusLater StatusType = "later"
)

const (
	// MaxTextBytes is the hard ceiling on text message length (§3).
	MaxTextBytes = 256
	// MaxVoiceBytes is the hard ceiling on voice message length (§3).
	MaxVoiceBytes = 56000
)

var (
	ErrInvalidStatus   = errors.New("message: invalid status value")
	ErrEmptyText       = errors.New("message: text must not be empty")
	ErrTextTooLong     = fmt.Errorf("message: text exceeds %d bytes", MaxTextBytes)
	ErrInvalidTextChar = errors.New("message: text contains a disallowed character")
	ErrEmptyVoice      = errors.New("message: voice payload must not be empty")
	ErrVoiceTooLong    = fmt.Errorf("message: voice payload exceeds %d bytes", MaxVoiceBytes)
)

// Message is an immutable unit of presence/text/voice content (§3).
// Exactly one of Status, Text, Voice is populated, selected by Type.
type Message struct {
	ID        string     `cbor:"1,keyasint" json:"id"`
	SenderID  string     `cbor:"2,keyasint" json:"sender_id"`
	Timestamp time.Time  `cbor:"3,keyasint" json:"timestamp"`
	Type      Type       `cbor:"4,keyasint" json:"message_type"`
	Status    StatusType `cbor:"5,keyasint,omitempty" json:"status,omitempty"`
	Text      string     `cbor:"6,keyasint,omitempty" json:"text,omitempty"`
	Voice     []byte     `cbor:"7,keyasint,omitempty" json:"voice,omitempty"`
}

// allowedTextChar permits alphanumerics, whitespace, and ".,!?" as required
// by §3's text construction rule.
func allowedTextChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	case r == '.' || r == ',' || r == '!' || r == '?':
		return true
	default:
		return false
	}
}

func validateText(text string) error {
	if len(text) == 0 {
		return ErrEmptyText
	}
	if len(text) > MaxTextBytes {
		return ErrTextTooLong
	}
	for _, r := range text {
		if !allowedTextChar(r) {
			return ErrInvalidTextChar
		}
	}
	return nil
}

func validateStatus(s StatusType) error {
	switch s {
	case StatusOK, StatusBusy, StatusLater:
		return nil
	default:
		return ErrInvalidStatus
	}
}

func validateVoice(voice []byte) error {
	if len(voice) == 0 {
		return ErrEmptyVoice
	}
	if len(voice) > MaxVoiceBytes {
		return ErrVoiceTooLong
	}
	return nil
}

// NewStatus constructs a validated status message.
func NewStatus(senderID string, status StatusType) (*Message, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	return &Message{
		ID: uuid.NewString(), SenderID: senderID, Timestamp: time.Now().UTC(),
		Type: TypeStatus, Status: status,
	}, nil
}

// NewText constructs a validated text message.
func NewText(senderID, text string) (*Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	return &Message{
		ID: uuid.NewString(), SenderID: senderID, Timestamp: time.Now().UTC(),
		Type: TypeText, Text: text,
	}, nil
}

// NewVoice constructs a validated voice message.
func NewVoice(senderID string, voice []byte) (*Message, error) {
	if err := validateVoice(voice); err != nil {
		return nil, err
	}
	cp := append([]byte(nil), voice...)
	return &Message{
		ID: uuid.NewString(), SenderID: senderID, Timestamp: time.Now().UTC(),
		Type: TypeVoice, Voice: cp,
	}, nil
}
