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

// Package policy defines the environment-adaptation limits the rest of the
// module enforces before any crypto or storage work runs (§4.8). A policy
// is not a "mode" — it is an adaptation to present conditions (bandwidth,
// battery, hostility of the environment).
package policy

import (
	"fmt"
	"sync"

	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/transport"
)

// Policy bounds message sizes, storage, transport use, and TTL/hop limits.
type Policy struct {
	MaxTextSize       int
	MaxVoiceSeconds   uint8
	MaxStoredMessages int
	AllowedTransports map[transport.Type]bool
	PrioritizeStatus  bool
	MaxTTLSeconds     uint32
	MaxHops           uint32
	EnableCompression bool
	EnableAutoCleanup bool
}

// ErrTextTooLong, ErrVoiceTooLong, and ErrTransportNotAllowed report the
// specific policy check that failed.
type ErrTextTooLong struct{ Size, Max int }

func (e ErrTextTooLong) Error() string {
	return fmt.Sprintf("policy: text too long: %d bytes (max %d)", e.Size, e.Max)
}

type ErrVoiceTooLong struct{ Seconds, Max uint8 }

func (e ErrVoiceTooLong) Error() string {
	return fmt.Sprintf("policy: voice too long: %ds (max %ds)", e.Seconds, e.Max)
}

type ErrTransportNotAllowed struct{ Transport transport.Type }

func (e ErrTransportNotAllowed) Error() string {
	return fmt.Sprintf("policy: transport not allowed: %s", e.Transport)
}

func transportSet(kinds ...transport.Type) map[transport.Type]bool {
	set := make(map[transport.Type]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// Default is the civilian-environment policy: generous limits, every
// transport allowed.
func Default() Policy {
	return Policy{
		MaxTextSize:       256,
		MaxVoiceSeconds:   7,
		MaxStoredMessages: 1000,
		AllowedTransports: transportSet(transport.TypeShortRange, transport.TypeWireless, transport.TypeUDP, transport.TypeSatellite),
		PrioritizeStatus:  false,
		MaxTTLSeconds:     3600,
		MaxHops:           10,
		EnableCompression: true,
		EnableAutoCleanup: true,
	}
}

// Military is the hardened-environment policy: tight limits, radio and
// satellite only.
func Military() Policy {
	return Policy{
		MaxTextSize:       128,
		MaxVoiceSeconds:   3,
		MaxStoredMessages: 100,
		AllowedTransports: transportSet(transport.TypeShortRange, transport.TypeSatellite),
		PrioritizeStatus:  true,
		MaxTTLSeconds:     1800,
		MaxHops:           5,
		EnableCompression: true,
		EnableAutoCleanup: true,
	}
}

// Collapse is the minimal-capability policy for total infrastructure loss:
// voice disabled, radio-only, compression off to save battery.
func Collapse() Policy {
	return Policy{
		MaxTextSize:       64,
		MaxVoiceSeconds:   0,
		MaxStoredMessages: 50,
		AllowedTransports: transportSet(transport.TypeShortRange),
		PrioritizeStatus:  true,
		MaxTTLSeconds:     900,
		MaxHops:           3,
		EnableCompression: false,
		EnableAutoCleanup: true,
	}
}

// Offline is Default with internet-dependent transports removed.
func Offline() Policy {
	p := Default()
	delete(p.AllowedTransports, transport.TypeUDP)
	delete(p.AllowedTransports, transport.TypeSatellite)
	p.MaxStoredMessages = 500
	return p
}

// IsTransportAllowed reports whether kind may be used under this policy.
func (p Policy) IsTransportAllowed(kind transport.Type) bool {
	return p.AllowedTransports[kind]
}

// ValidateTextSize checks text against MaxTextSize.
func (p Policy) ValidateTextSize(text string) error {
	if len(text) > p.MaxTextSize {
		return ErrTextTooLong{Size: len(text), Max: p.MaxTextSize}
	}
	return nil
}

// ValidateVoiceLength checks an estimated voice clip duration against
// MaxVoiceSeconds.
func (p Policy) ValidateVoiceLength(seconds uint8) error {
	if seconds > p.MaxVoiceSeconds {
		return ErrVoiceTooLong{Seconds: seconds, Max: p.MaxVoiceSeconds}
	}
	return nil
}

// ShouldCleanupStorage reports whether storage occupancy exceeds the
// configured cap.
func (p Policy) ShouldCleanupStorage(currentCount int) bool {
	return currentCount > p.MaxStoredMessages
}

// GetMessagePriority returns the retry-queue priority for a message type
// under this policy. Status is already the highest packet priority; when
// PrioritizeStatus is unset, a text message is still ranked below status
// but above voice, matching the packet package's default ordering.
func (p Policy) GetMessagePriority(t message.Type) packet.Priority {
	switch t {
	case message.TypeStatus:
		return packet.PriorityHigh
	case message.TypeText:
		return packet.PriorityMedium
	default:
		return packet.PriorityLow
	}
}

// estimatedVoiceBytesPerSecond approximates voice bitrate (64kbps ≈ 8KB/s)
// for duration validation without decoding the payload.
const estimatedVoiceBytesPerSecond = 8000

// ValidateMessage gates a constructed message against this policy before
// it is ever encrypted or enqueued (§4.8).
func (p Policy) ValidateMessage(msg *message.Message) error {
	switch msg.Type {
	case message.TypeText:
		return p.ValidateTextSize(msg.Text)
	case message.TypeVoice:
		estimatedSeconds := uint8(len(msg.Voice) / estimatedVoiceBytesPerSecond)
		return p.ValidateVoiceLength(estimatedSeconds)
	default:
		return nil
	}
}

// Manager wraps the currently active policy behind a mutex so it can be
// swapped at runtime (e.g. switching from Default to Collapse when
// infrastructure degrades) without disrupting in-flight callers.
type Manager struct {
	mu     sync.RWMutex
	active Policy
}

// NewManager returns a Manager starting from the given policy.
func NewManager(initial Policy) *Manager {
	return &Manager{active: initial}
}

// SetPolicy replaces the active policy.
func (m *Manager) SetPolicy(p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = p
}

// GetPolicy returns the active policy.
func (m *Manager) GetPolicy() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ValidateMessage validates msg against the currently active policy.
func (m *Manager) ValidateMessage(msg *message.Message) error {
	return m.GetPolicy().ValidateMessage(msg)
}

// ValidateTransport checks whether kind is allowed under the active policy.
func (m *Manager) ValidateTransport(kind transport.Type) error {
	if !m.GetPolicy().IsTransportAllowed(kind) {
		return ErrTransportNotAllowed{Transport: kind}
	}
	return nil
}
