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
)

// RelayConfig holds the yaok-relay environment configuration (spec.md §6).
type RelayConfig struct {
	Port                uint16
	MaxPacketSize       int
	RateLimitPPS        uint32
	PeerTTLSecs         uint64
	MetricsIntervalSecs uint64
	MetricsPort         uint16
	Bind                string
	FallbackRelay       string
}

// LoadRelayConfig reads RELAY_PORT, MAX_PACKET_SIZE, RATE_LIMIT_PPS,
// PEER_TTL_SECS, METRICS_INTERVAL_SECS, METRICS_PORT, RELAY_BIND, and
// FALLBACK_RELAY from the environment, applying spec.md §6's defaults.
func LoadRelayConfig() RelayConfig {
	port := envUint16("RELAY_PORT", 40100)
	cfg := RelayConfig{
		Port:                port,
		MaxPacketSize:       envInt("MAX_PACKET_SIZE", 64000),
		RateLimitPPS:        uint32(envInt("RATE_LIMIT_PPS", 200)),
		PeerTTLSecs:         uint64(envInt("PEER_TTL_SECS", 300)),
		MetricsIntervalSecs: uint64(envInt("METRICS_INTERVAL_SECS", 60)),
		MetricsPort:         envUint16("METRICS_PORT", 9090),
		Bind:                envString("RELAY_BIND", fmt.Sprintf("0.0.0.0:%d", port)),
		FallbackRelay:       os.Getenv("FALLBACK_RELAY"),
	}
	return cfg
}
