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

// Command yaok-node is a reference CLI embedder of the core package,
// demonstrating the same operation surface the cgo lib/export.go layer
// exposes to non-Go embedders (§4.10).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaok-project/yaok-core/core"
	"github.com/yaok-project/yaok-core/internal/config"
	"github.com/yaok-project/yaok-core/message"
)

var (
	baseDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "yaok-node",
	Short: "yaok-node - reference CLI embedder of the core mesh-messaging library",
}

func main() {
	config.LoadDotEnv(".env")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", ".", "directory holding this node's identity, peers, and message store")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "node.yaml", "optional YAML file bootstrapping policy and known peers on init")

	rootCmd.AddCommand(initCmd, idCmd, addPeerCmd, peersCmd, sendTextCmd, sendStatusCmd,
		recentCmd, statsCmd, setPolicyCmd, wipeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadedCore() (*core.Core, error) {
	c := core.New()
	if err := c.Init(baseDir); err != nil {
		return nil, err
	}
	return c, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "create or load this node's identity under --base-dir, applying --config if present",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		id, err := c.GetIdentityID()
		if err != nil {
			return err
		}
		fmt.Println(id)
		return applyNodeConfig(c)
	},
}

// applyNodeConfig reads the optional --config YAML file and, if present,
// switches to its named policy and registers its listed peers. A missing
// file is not an error; node.yaml is an opt-in convenience, not a
// requirement, for nodes otherwise driven by add-peer/set-policy.
func applyNodeConfig(c *core.Core) error {
	cfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Policy != "" {
		if err := c.SetPolicy(cfg.Policy); err != nil {
			return err
		}
	}
	for _, p := range cfg.Peers {
		if err := c.AddPeer(p.ID, p.X25519Hex); err != nil {
			return err
		}
	}
	return nil
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "print this node's peer id and X25519 public key",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		id, err := c.GetIdentityID()
		if err != nil {
			return err
		}
		xpub, err := c.GetIdentityX25519PublicKeyHex()
		if err != nil {
			return err
		}
		fmt.Printf("peer_id: %s\nx25519_pub: %s\n", id, xpub)
		return nil
	},
}

var addPeerCmd = &cobra.Command{
	Use:   "add-peer <peer-id> <x25519-hex>",
	Short: "register a known peer's key-agreement public key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		return c.AddPeer(args[0], args[1])
	},
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "list known peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		peers, err := c.PeerStoreList()
		if err != nil {
			return err
		}
		for _, p := range peers {
			fmt.Printf("%s\tlast_seen=%s\n", p.PeerID, p.LastSeen.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

var sendTextCmd = &cobra.Command{
	Use:   "send-text <text>",
	Short: "broadcast a text message to every known peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		pkts, err := c.SendText(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("sent to %d peer(s)\n", len(pkts))
		return nil
	},
}

var sendStatusCmd = &cobra.Command{
	Use:   "send-status <ok|busy|later>",
	Short: "broadcast a presence status to every known peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		pkts, err := c.SendStatus(context.Background(), message.StatusType(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("sent to %d peer(s)\n", len(pkts))
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "show recently stored messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		msgs, err := c.GetRecentMessagesFull(20)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("%s\t%s\t%s\t%s\n", m.Timestamp.Format("15:04:05"), m.SenderID, m.Type, m.Text)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show store, routing, and gossip counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		st, err := c.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("messages: total=%d pending=%d seen=%d\n", st.Store.TotalMessages, st.Store.PendingMessages, st.Store.SeenMessages)
		fmt.Printf("routing: processed=%d forwarded=%d dropped=%d duplicate=%d\n",
			st.Router.ProcessedPackets, st.Router.ForwardedPackets, st.Router.DroppedPackets, st.Router.DuplicatePackets)
		fmt.Printf("gossip: sessions=%d exchanged=%d failed=%d\n", st.Gossip.SyncSessions, st.Gossip.MessagesExchanged, st.Gossip.FailedSyncs)
		return nil
	},
}

var setPolicyCmd = &cobra.Command{
	Use:   "set-policy <default|military|collapse|offline>",
	Short: "switch the active environment-adaptation policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		return c.SetPolicy(args[0])
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "irrecoverably delete this node's identity, peers, and stored messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedCore()
		if err != nil {
			return err
		}
		return c.WipeLocalData(baseDir)
	},
}
