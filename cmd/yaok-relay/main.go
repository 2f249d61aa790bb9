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

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaok-project/yaok-core/internal/config"
	"github.com/yaok-project/yaok-core/internal/logger"
	"github.com/yaok-project/yaok-core/internal/metrics"
	"github.com/yaok-project/yaok-core/relay"
)

var rootCmd = &cobra.Command{
	Use:   "yaok-relay",
	Short: "yaok-relay - stateless UDP fan-out reflector",
	Long: `yaok-relay accepts datagrams from any source and forwards each to every
other recently-seen source, subject to per-source rate limiting and a
bounded peer table. It carries no message content knowledge: every packet
it forwards is already signed and encrypted end-to-end by its sender.`,
	RunE: run,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv(".env")
	cfg := config.LoadRelayConfig()
	log := logger.NewDefaultLogger()

	conn, err := net.ListenPacket("udp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	defer conn.Close()

	r := relay.New(conn, relay.Config{
		MaxPacketSize: cfg.MaxPacketSize,
		RateLimitPPS:  cfg.RateLimitPPS,
		PeerTTL:       time.Duration(cfg.PeerTTLSecs) * time.Second,
	}, metrics.GetGlobalRelayCollector())

	srv := relay.NewServer(r)
	metricsAddr := fmt.Sprintf(":%d", cfg.MetricsPort)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("relay metrics server listening", logger.String("addr", metricsAddr))
		if err := srv.ListenAndServe(metricsAddr); err != nil {
			log.Error("relay metrics server stopped", logger.Error(err))
		}
	}()

	log.Info("relay started", logger.String("bind", cfg.Bind), logger.Int("rate_limit_pps", int(cfg.RateLimitPPS)))
	return r.Run(ctx)
}
