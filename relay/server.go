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

package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yaok-project/yaok-core/internal/metrics"
)

// Version is the relay build version reported by /health.
const Version = "0.1.0"

// healthResponse is the /health JSON shape (§6).
type healthResponse struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_secs"`
	Version    string `json:"version"`
}

// Server serves the relay's diagnostic HTTP endpoints on a port separate
// from the UDP relay socket (§4.9).
type Server struct {
	relay     *Relay
	startTime time.Time
}

// NewServer returns an HTTP server exposing relay's metrics.
func NewServer(r *Relay) *Server {
	return &Server{relay: r, startTime: time.Now()}
}

// Handler returns the stdlib mux serving /metrics, /metrics/json, and
// /health (chi is gosuda-portal's dependency, not this module's — see
// DESIGN.md).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/json", s.handleMetricsJSON)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe starts the diagnostic HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.relay.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		UptimeSecs: int64(time.Since(s.startTime).Seconds()),
		Version:    Version,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
