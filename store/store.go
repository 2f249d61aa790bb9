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

// Package store implements the local SQLite-backed message, dedup, ack, and
// nonce ledger (§3, §4.4).
package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const dbFileName = "yaok_store.db"

var (
	ErrNotFound      = errors.New("store: not found")
	ErrInvalidID     = errors.New("store: invalid message id")
	ErrStoreFull     = errors.New("store: maximum stored message count reached")
	ErrClosed        = errors.New("store: store is closed")
)

// Store is the local persistence layer. A single *sql.DB handle is shared
// across all accessors, serialized behind mu: modernc.org/sqlite allows only
// one writer at a time, and a blocking mutex here avoids SQLITE_BUSY churn
// under concurrent senders/routers (§4.4, §9).
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	maxRows int
}

// Open creates (or reopens) the store database at baseDir/yaok_store.db,
// running schema migrations and enabling WAL mode for concurrent readers.
// dbKey, when non-empty, is the at-rest encryption key derived by
// DeriveDBKey (§4.4, §6); pass nil where no key file is in play (e.g. tests).
func Open(baseDir string, maxStoredMessages int, dbKey []byte) (*Store, error) {
	path := filepath.Join(baseDir, dbFileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// page_size and auto_vacuum mode only take effect before the first table
	// is created, so both must run ahead of migrate() (§4.4).
	if _, err := db.Exec(`PRAGMA page_size=4096;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set page size: %w", err)
	}
	if _, err := db.Exec(`PRAGMA auto_vacuum=INCREMENTAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set auto_vacuum: %w", err)
	}
	if len(dbKey) > 0 {
		// modernc.org/sqlite is pure Go and carries no cipher extension, so
		// this PRAGMA has nothing to bind to and is a no-op against what
		// actually lands on disk; it is issued anyway so a future build
		// linked against a cipher-capable SQLite (e.g. SQLCipher) picks up
		// encryption-at-rest for free, and so db_key.config stays
		// load-bearing rather than an orphaned file (§6, see DESIGN.md).
		keyStmt := fmt.Sprintf(`PRAGMA key="x'%s'";`, hex.EncodeToString(dbKey))
		if _, err := db.Exec(keyStmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("set encryption key: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	s := &Store{db: db, path: path, maxRows: maxStoredMessages}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// IncrementalVacuum reclaims free pages accumulated by expiry sweeps,
// bounded by auto_vacuum=INCREMENTAL so it only moves a bounded number of
// pages per call rather than rewriting the whole file (§4.4).
func (s *Store) IncrementalVacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`PRAGMA incremental_vacuum;`); err != nil {
		return fmt.Errorf("incremental vacuum: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			message_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			delivered INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender_id ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_delivered ON messages(delivered);`,
		`CREATE TABLE IF NOT EXISTS seen_messages (
			id TEXT PRIMARY KEY,
			seen_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS acks (
			message_id TEXT NOT NULL,
			from_peer_id TEXT NOT NULL,
			ack_type TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			PRIMARY KEY (message_id, from_peer_id, ack_type)
		);`,
		`CREATE TABLE IF NOT EXISTS used_nonces (
			nonce_hex TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			used_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_used_nonces_used_at ON used_nonces(used_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Stats summarizes store occupancy for get_stats (§4.10).
type Stats struct {
	TotalMessages     int64
	PendingMessages   int64
	SeenMessages      int64
	UsedNonces        int64
	OldestMessageUnix int64
}

// GetStats reports aggregate counters across all tables.
func (s *Store) GetStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(MIN(created_at), 0) FROM messages`)
	if err := row.Scan(&st.TotalMessages, &st.OldestMessageUnix); err != nil {
		return st, fmt.Errorf("count messages: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE delivered = 0`).Scan(&st.PendingMessages); err != nil {
		return st, fmt.Errorf("count pending: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM seen_messages`).Scan(&st.SeenMessages); err != nil {
		return st, fmt.Errorf("count seen: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM used_nonces`).Scan(&st.UsedNonces); err != nil {
		return st, fmt.Errorf("count nonces: %w", err)
	}
	return st, nil
}

func unixNow() int64 {
	return time.Now().Unix()
}
