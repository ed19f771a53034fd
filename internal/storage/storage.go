// Package storage provides persistent storage for swap state using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides persistent storage for the swap engine daemon.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "swapengine.db")

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// schemaVersion is the current PRAGMA user_version. initSchema applies
// each migration step from the database's recorded version up to here;
// every step is idempotent on re-run (IF NOT EXISTS guards), so a
// crash between a step and the version bump is harmless.
const schemaVersion = 2

// migrations holds one SQL batch per version step. Index i migrates a
// database at user_version i to i+1.
var migrations = []string{
	// 0 -> 1: the active_swaps table, the single table this engine
	// persists to. Order books, trade matching, wallet UTXO tracking,
	// and peer-message queues live outside this engine and own no
	// schema here.
	`
	-- Active swaps: the durable copy of every in-flight swapfsm.Swap,
	-- recovered on daemon restart and swept for past-deadline refunds.
	CREATE TABLE IF NOT EXISTS active_swaps (
		id TEXT PRIMARY KEY,

		-- Role and currencies, kept as plain columns (in addition to
		-- method_data) so recovery/sweep queries never need to decode
		-- the blob just to filter.
		role               TEXT NOT NULL,
		sold_currency      TEXT NOT NULL,
		purchased_currency TEXT NOT NULL,

		-- Coarse state, derived from the swap's StateFlags at save time.
		state TEXT NOT NULL DEFAULT 'init',

		-- The full swapfsm.Swap, JSON-encoded: secret, secret_hash,
		-- every tx ID, and the monotonic flag set. This is the
		-- authoritative recovery data; the columns around it exist for
		-- queryability only.
		method_data TEXT,

		payment_txid       TEXT,
		party_payment_txid TEXT,
		redeem_txid        TEXT,
		refund_txid        TEXT,

		-- This leg's own lock_time (swap.LocalDeadline), UTC unix
		-- seconds, 0 if unknown. Used to find swaps past their refund
		-- deadline without decoding method_data.
		deadline_at INTEGER NOT NULL DEFAULT 0,

		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_active_swaps_state ON active_swaps(state);
	`,
	// 1 -> 2: indexes for the deadline sweep and recovery ordering,
	// added once those queries moved from full scans to indexed reads.
	`
	CREATE INDEX IF NOT EXISTS idx_active_swaps_deadline ON active_swaps(deadline_at);
	CREATE INDEX IF NOT EXISTS idx_active_swaps_updated ON active_swaps(updated_at);
	`,
}

// initSchema walks the migration ladder from the database's recorded
// user_version to schemaVersion, bumping the version after each step.
func (s *Storage) initSchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than this binary supports (%d)", version, schemaVersion)
	}

	for v := version; v < schemaVersion; v++ {
		if _, err := s.db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate schema %d -> %d: %w", v, v+1, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("record schema version %d: %w", v+1, err)
		}
	}
	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
