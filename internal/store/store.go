package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Reserved point value keys.
const (
	// KeyFormIdentifier holds the remote form identifier once the first
	// create succeeded.
	KeyFormIdentifier = "formIdentifier"

	// KeySessionKey holds the idempotency key minted for the questionnaire.
	KeySessionKey = "sessionKey"
)

// migration upgrades the schema to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order on databases whose user_version is lower.
// Append only.
var migrations = []migration{
	// One group per seq value. Seq is always MAX(seq)+1 inside the write
	// transaction, so existing databases already satisfy it.
	{version: 1, stmt: `CREATE UNIQUE INDEX IF NOT EXISTS idx_field_groups_seq_unique ON field_groups(seq)`},
}

// connPragmas configure every connection. WAL keeps snapshot reads
// cheap while a page is being written.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store provides durable storage for questionnaire answers.
type Store struct {
	db *sql.DB
}

// Open creates or opens the answer database at path and brings its
// schema up to date. ":memory:" gives a private in-memory store.
//
// Opening the same file again is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite has a single writer and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.checkVersion(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, pragma := range connPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

// migrate applies every migration newer than the stored user_version,
// each in its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// checkVersion rejects databases migrated by a newer build.
func (s *Store) checkVersion(ctx context.Context) error {
	raw, err := s.pragma(ctx, "user_version")
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("user_version %q: %w", raw, err)
	}
	if latest := migrations[len(migrations)-1].version; version > latest {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, latest)
	}
	return nil
}

// pragma reads a single pragma value.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}
