package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps every transaction on one SQLite handle.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS diagnostic_cases (
  h_number TEXT NOT NULL CHECK (length(h_number) > 0),
  created_time TEXT NOT NULL CHECK (length(created_time) > 0),
  entry_type TEXT,
  technician TEXT,
  source TEXT,
  year TEXT,
  make TEXT,
  model TEXT,
  engine_size TEXT,
  hdw_number TEXT,
  part_number TEXT,
  notes TEXT CHECK (notes IS NULL OR notes NOT GLOB '*<[a-zA-Z/!]*>*'),
  original_problems TEXT NOT NULL DEFAULT '',
  original_dtcs TEXT NOT NULL DEFAULT '' CHECK (original_dtcs NOT GLOB '*[^A-Z0-9,]*'),
  fs1_ecu_problems TEXT NOT NULL DEFAULT '',
  fs1_dtcs TEXT NOT NULL DEFAULT '' CHECK (fs1_dtcs NOT GLOB '*[^A-Z0-9,]*'),
  fs1_original_problems_related INTEGER NOT NULL DEFAULT 0 CHECK (fs1_original_problems_related IN (0, 1)),
  additional_notes TEXT NOT NULL DEFAULT '' CHECK (additional_notes NOT GLOB '*<[a-zA-Z/!]*>*'),
  resolution TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (h_number, created_time)
);
CREATE INDEX IF NOT EXISTS idx_cases_created_time ON diagnostic_cases(created_time);

CREATE TABLE IF NOT EXISTS ingest_runs (
  id TEXT PRIMARY KEY,
  origin TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL,
  reportJson TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_rejections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  lineNo INTEGER NOT NULL,
  h_number TEXT,
  created_time TEXT,
  reason TEXT NOT NULL,
  detail TEXT NOT NULL,
  FOREIGN KEY(runId) REFERENCES ingest_runs(id)
);

CREATE TABLE IF NOT EXISTS review_queue (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  lineNo INTEGER NOT NULL,
  h_number TEXT NOT NULL,
  created_time TEXT NOT NULL,
  reason TEXT NOT NULL,
  detail TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES ingest_runs(id)
);
CREATE INDEX IF NOT EXISTS idx_review_case ON review_queue(h_number, created_time);

CREATE TABLE IF NOT EXISTS mail_messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
