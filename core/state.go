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

// Package core integrates identity, storage, transport, routing, gossip,
// and policy behind the embedding API surface (§4.10).
package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/yaok-project/yaok-core/gossip"
	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/policy"
	"github.com/yaok-project/yaok-core/router"
	"github.com/yaok-project/yaok-core/store"
	"github.com/yaok-project/yaok-core/transport"
)

// Version is the core module's version, reported by the embedding API.
const Version = "0.1.0"

// State bundles everything one initialized core instance owns. It is held
// behind Core's swappable pointer so wipe_local_data (§4.10) can replace a
// live instance atomically instead of trying to reset one in place.
type State struct {
	baseDir string

	self      *identity.Identity
	peerStore *identity.PeerStore
	store     *store.Store
	manager   *transport.Manager
	router    *router.Router
	gossip    *gossip.Protocol
	policyMgr *policy.Manager

	gossipConn   net.PacketConn
	gossipCancel context.CancelFunc
	gossipWG     sync.WaitGroup
}

// newState opens storage and wires the router/gossip/transport layers for
// an already-loaded identity.
func newState(baseDir string, self *identity.Identity, maxStoredMessages int) (*State, error) {
	dbKey, err := store.DeriveDBKey(baseDir, self.ID())
	if err != nil {
		return nil, fmt.Errorf("derive db key: %w", err)
	}

	st, err := store.Open(baseDir, maxStoredMessages, dbKey)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	peerStore, err := identity.NewPeerStore(baseDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open peer store: %w", err)
	}

	mgr := transport.NewManager()
	r := router.New(self, st, mgr)
	g := gossip.New(st, sendGossipFrame)

	return &State{
		baseDir:   baseDir,
		self:      self,
		peerStore: peerStore,
		store:     st,
		manager:   mgr,
		router:    r,
		gossip:    g,
		policyMgr: policy.NewManager(policy.Default()),
	}, nil
}

// Close stops any running gossip loop and releases the state's storage
// handle.
func (s *State) Close() error {
	s.stopGossipLoop()
	return s.store.Close()
}

// Core is the FFI-facing singleton: a swappable *State behind a
// sync.RWMutex, resolving the "can't reset the singleton" design note
// (§9) without reintroducing global mutable package state.
type Core struct {
	mu    sync.RWMutex
	state *State
}

// New returns an uninitialized Core; callers must call Init before any
// other method.
func New() *Core {
	return &Core{}
}

func (c *Core) current() (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, ErrNotInitialized
	}
	return c.state, nil
}

func (c *Core) swap(s *State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}
