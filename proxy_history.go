package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ========================================
// ProxyHistoryStore - SQLite log of proxy changes
// ========================================

const defaultHistoryLimit = 50

const historySchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS proxy_history (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    action TEXT NOT NULL,
    host TEXT DEFAULT '',
    port INTEGER DEFAULT 0,
    outcome TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proxy_history_device_time ON proxy_history(device_id, created_at DESC);
`

type ProxyHistoryStore struct {
	db     *sql.DB
	dbPath string

	stmtInsert *sql.Stmt
}

// OpenProxyHistory opens (creating if needed) the history database at path.
func OpenProxyHistory(path string) (*ProxyHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite 单写入
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(historySchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO proxy_history (id, device_id, action, host, port, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return &ProxyHistoryStore{db: db, dbPath: path, stmtInsert: stmt}, nil
}

// Record stores e, filling ID and CreatedAt when unset.
func (s *ProxyHistoryStore) Record(ctx context.Context, e ProxyHistoryEntry) (ProxyHistoryEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.stmtInsert.ExecContext(ctx, e.ID, e.DeviceID, e.Action, e.Host, e.Port, e.Outcome, e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("insert proxy history: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. An empty deviceID
// matches every device; limit <= 0 uses the default.
func (s *ProxyHistoryStore) List(ctx context.Context, deviceID string, limit int) ([]ProxyHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `SELECT id, device_id, action, host, port, outcome, created_at FROM proxy_history`
	args := []interface{}{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query proxy history: %w", err)
	}
	defer rows.Close()

	var entries []ProxyHistoryEntry
	for rows.Next() {
		var e ProxyHistoryEntry
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Action, &e.Host, &e.Port, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proxy history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *ProxyHistoryStore) Close() error {
	if s.stmtInsert != nil {
		s.stmtInsert.Close()
	}
	return s.db.Close()
}
