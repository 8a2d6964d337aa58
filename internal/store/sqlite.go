package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS inputs (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// sqliteBackend keeps one JSON document per key.
type sqliteBackend struct {
	conn *sql.DB
	path string
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string, log zerolog.Logger) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := newStore(&sqliteBackend{conn: conn, path: dbPath}, log)
	s.log.Debug().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (b *sqliteBackend) get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.conn.QueryRowContext(ctx, `SELECT data FROM inputs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (b *sqliteBackend) put(ctx context.Context, key string, data []byte, at time.Time) error {
	_, err := b.conn.ExecContext(ctx, `
		INSERT INTO inputs (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), at.Format(time.RFC3339Nano))
	return err
}

func (b *sqliteBackend) remove(ctx context.Context, key string) error {
	res, err := b.conn.ExecContext(ctx, `DELETE FROM inputs WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *sqliteBackend) list(ctx context.Context) ([]Snapshot, error) {
	rows, err := b.conn.QueryContext(ctx, `SELECT key, updated_at FROM inputs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var key, at string
		if err := rows.Scan(&key, &at); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, at)
		snaps = append(snaps, Snapshot{Key: key, UpdatedAt: ts})
	}
	return snaps, rows.Err()
}

func (b *sqliteBackend) close() error {
	return b.conn.Close()
}
