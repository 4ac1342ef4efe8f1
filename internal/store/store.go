package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/flowbuilder/internal/flow"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added UNIQUE index on flow_revisions(flow_id, content_hash)
// 2 - Dropped content-hash uniqueness so A, B, A histories can be stored
const currentSchemaVersion = 2

// Store is a SQLite flow revision store.
type Store struct {
	db  *sql.DB
	ids flow.IDGenerator
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets how revision ids are minted. Default: UUIDv7.
func WithIDGenerator(g flow.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the time source for saved_at stamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:  db,
		ids: flow.UUIDv7Generator{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV2 removes the content-hash uniqueness from databases created
// at version 1, where it was either a named index or a table constraint.
// A table carrying the constraint is rebuilt with its rows.
func migrateToV2(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.Exec(`DROP INDEX IF EXISTS idx_flow_revisions_hash_unique`); err != nil {
		return fmt.Errorf("migrate to v2: drop index: %w", err)
	}

	var ddl string
	if err := tx.QueryRow(
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'flow_revisions'`,
	).Scan(&ddl); err != nil {
		return fmt.Errorf("migrate to v2: read table: %w", err)
	}
	if strings.Contains(strings.ReplaceAll(ddl, " ", ""), "UNIQUE(flow_id,content_hash)") {
		stmts := []string{
			`ALTER TABLE flow_revisions RENAME TO flow_revisions_v1`,
			`DROP INDEX IF EXISTS idx_flow_revisions_flow_seq`,
			schemaSQL,
			`INSERT INTO flow_revisions
			 (id, flow_id, seq, content_hash, snapshot, node_count, edge_count, saved_at)
			 SELECT id, flow_id, seq, content_hash, snapshot, node_count, edge_count, saved_at
			 FROM flow_revisions_v1`,
			`DROP TABLE flow_revisions_v1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migrate to v2: rebuild revisions: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v2: commit: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
