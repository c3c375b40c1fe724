// Package store is the SQLite-backed persistence and query engine for
// killmails: idempotent ingestion, windowed history/relations/activity
// queries, and retention sweeps over a single database file.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultPoolSize bounds concurrent checkouts of the shared handle.
	// SQLite serializes writers itself; readers in WAL mode proceed in
	// parallel up to this bound.
	DefaultPoolSize = 4

	// busyTimeout is how long a connection waits on the write lock
	// before the operation surfaces ErrBusy.
	busyTimeout = 5 * time.Second
)

// Store manages the SQLite connection pool and schema.
type Store struct {
	db *sql.DB
}

// NewStore opens the database, configures the pooled-checkout
// discipline, and ensures the schema exists. Failure here is fatal to
// startup; the engine cannot operate without its schema.
func NewStore(dbPath string) (*Store, error) {
	return NewStoreWithPool(dbPath, DefaultPoolSize)
}

// NewStoreWithPool is NewStore with an explicit pool bound.
func NewStoreWithPool(dbPath string, poolSize int) (*Store, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	// Pragmas go in the DSN so database/sql applies them to every
	// pooled connection, not just the one that would run an Exec.
	// WAL lets readers run concurrently with the single active writer;
	// foreign keys keep participants from outliving their killmail.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Bounded checkout: callers block on the pool (subject to their
	// context deadline) instead of failing when the store is busy.
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the two relations and their indices if absent.
// Idempotent; never drops or alters existing data.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS killmails (
		killmail_id INTEGER NOT NULL PRIMARY KEY,
		killmail_time TEXT NOT NULL,
		solar_system_id INTEGER NOT NULL
	);

	-- Range scans for the lookback window and retention sweep.
	CREATE INDEX IF NOT EXISTS idx_killmails_time ON killmails(killmail_time);

	CREATE TABLE IF NOT EXISTS participants (
		killmail_id INTEGER NOT NULL,
		character_id INTEGER,
		corporation_id INTEGER,
		alliance_id INTEGER,
		ship_type_id INTEGER,
		damage INTEGER NOT NULL,
		is_victim INTEGER NOT NULL,
		UNIQUE(killmail_id, character_id, is_victim),
		FOREIGN KEY(killmail_id) REFERENCES killmails(killmail_id)
	);

	-- Equality lookups by any single subject column.
	CREATE INDEX IF NOT EXISTS idx_participants_subject
		ON participants(character_id, corporation_id, alliance_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create killmail tables: %w", err)
	}

	return nil
}
