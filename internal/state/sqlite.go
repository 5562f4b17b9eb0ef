package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS poolwatch_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	sqliteGetSQL = `SELECT value FROM poolwatch_state WHERE key = ?;`

	sqlitePutSQL = `INSERT INTO poolwatch_state (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`
)

// SQLite stores state rows in a single-file database.
type SQLite struct {
	ints
	db *sql.DB
}

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite state dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite state: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite state schema: %w", err)
	}
	return &SQLite{ints: ints{backend: sqliteBackend{db: db}}, db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (b sqliteBackend) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, sqliteGetSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

func (b sqliteBackend) put(ctx context.Context, key, value string) error {
	if _, err := b.db.ExecContext(ctx, sqlitePutSQL, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}

var _ Store = (*SQLite)(nil)
