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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeConfigPeer is one known-peer entry in a node's YAML config file.
type NodeConfigPeer struct {
	ID        string `yaml:"id"`
	X25519Hex string `yaml:"x25519_hex"`
}

// NodeConfig is the on-disk, human-editable bootstrap config for a
// yaok-node instance: which policy to start under and which peers to
// register before listening begins.
type NodeConfig struct {
	Policy string           `yaml:"policy"`
	Peers  []NodeConfigPeer `yaml:"peers"`
}

// LoadNodeConfig reads and parses a node config file. A missing path is not
// an error; it returns the zero NodeConfig.
func LoadNodeConfig(path string) (NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NodeConfig{}, nil
		}
		return NodeConfig{}, fmt.Errorf("read node config: %w", err)
	}
	var cfg NodeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("parse node config: %w", err)
	}
	return cfg, nil
}
