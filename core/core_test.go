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

package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/core"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
)

// TestStatusPropagation is the §8 seed scenario 1: Alice creates an
// identity, learns Bob's key-agreement key, sends a status, and Bob imports
// the resulting pending packet out-of-band.
func TestStatusPropagation(t *testing.T) {
	alice := core.New()
	require.NoError(t, alice.Init(t.TempDir()))

	bob := core.New()
	require.NoError(t, bob.Init(t.TempDir()))

	bobID, err := bob.GetIdentityID()
	require.NoError(t, err)
	bobXPub, err := bob.GetIdentityX25519PublicKeyHex()
	require.NoError(t, err)

	require.NoError(t, alice.AddPeer(bobID, bobXPub))

	_, err = alice.SendStatus(context.Background(), message.StatusOK)
	require.NoError(t, err)

	pending, err := alice.ExportPendingPackets()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	raw := [][]byte{pending[0].Payload}
	require.NoError(t, bob.ImportPackets(context.Background(), raw))

	recent, err := bob.GetRecentMessagesFull(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	aliceID, err := alice.GetIdentityID()
	require.NoError(t, err)
	require.Equal(t, aliceID, recent[0].SenderID)
	require.Equal(t, message.TypeStatus, recent[0].Type)
	require.Equal(t, message.StatusOK, recent[0].Status)
}

// TestRejectSizeViolatingText is the §8 seed scenario 2: an over-long text
// message is rejected at message construction before any store write
// happens.
func TestRejectSizeViolatingText(t *testing.T) {
	alice := core.New()
	baseDir := t.TempDir()
	require.NoError(t, alice.Init(baseDir))

	bob := core.New()
	require.NoError(t, bob.Init(t.TempDir()))
	bobID, err := bob.GetIdentityID()
	require.NoError(t, err)
	bobXPub, err := bob.GetIdentityX25519PublicKeyHex()
	require.NoError(t, err)
	require.NoError(t, alice.AddPeer(bobID, bobXPub))

	before, err := alice.GetStats()
	require.NoError(t, err)

	_, err = alice.SendText(context.Background(), strings.Repeat("A", 257))
	require.Error(t, err)

	after, err := alice.GetStats()
	require.NoError(t, err)
	require.Equal(t, before.Store.TotalMessages, after.Store.TotalMessages)
}

// TestDuplicatePacketDrop is the §8 seed scenario 3: feeding the same
// packet to HandleIncomingPacket twice only stores one copy and dedups the
// second delivery.
func TestDuplicatePacketDrop(t *testing.T) {
	alice := core.New()
	require.NoError(t, alice.Init(t.TempDir()))
	bob := core.New()
	require.NoError(t, bob.Init(t.TempDir()))

	bobID, err := bob.GetIdentityID()
	require.NoError(t, err)
	bobXPub, err := bob.GetIdentityX25519PublicKeyHex()
	require.NoError(t, err)
	require.NoError(t, alice.AddPeer(bobID, bobXPub))

	pkts, err := alice.SendText(context.Background(), "hello bob")
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	raw, err := packet.ToBytes(pkts[0])
	require.NoError(t, err)

	_, err = bob.HandleIncomingPacket(context.Background(), raw)
	require.NoError(t, err)
	_, err = bob.HandleIncomingPacket(context.Background(), raw)
	require.NoError(t, err)

	statsAfter, err := bob.GetStats()
	require.NoError(t, err)
	require.EqualValues(t, 1, statsAfter.Router.DuplicatePackets)

	stored, err := bob.GetRecentMessagesFull(10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "hello bob", stored[0].Text)
}
