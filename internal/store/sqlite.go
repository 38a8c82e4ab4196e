// Package store provides checkpoint storage backends for CampaignPipe.
//
// This file implements the SQLite-backed checkpoint store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/CampaignPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists checkpoints in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveCheckpoint inserts or replaces the checkpoint for its thread id.
func (s *SQLiteStore) SaveCheckpoint(cp models.Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		slog.Error("SQLiteStore SaveCheckpoint JSON marshal failed", "error", err, "threadID", cp.ThreadID)
		return fmt.Errorf("failed to marshal state for %s: %w", cp.ThreadID, err)
	}
	query := `
		INSERT INTO checkpoints (thread_id, stage, status, last_error, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			stage = excluded.stage,
			status = excluded.status,
			last_error = excluded.last_error,
			state = excluded.state,
			updated_at = excluded.updated_at`
	_, err = s.db.Exec(query, cp.ThreadID, cp.Stage, cp.Status, nilIfEmpty(cp.LastError),
		string(stateJSON), cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveCheckpoint failed", "error", err, "threadID", cp.ThreadID)
		return fmt.Errorf("failed to save checkpoint for %s: %w", cp.ThreadID, err)
	}
	slog.Debug("SQLiteStore SaveCheckpoint succeeded", "threadID", cp.ThreadID, "stage", cp.Stage, "status", cp.Status)
	return nil
}

// GetCheckpoint returns the checkpoint for a thread id, or nil if absent.
func (s *SQLiteStore) GetCheckpoint(threadID string) (*models.Checkpoint, error) {
	query := `SELECT thread_id, stage, status, last_error, state, created_at, updated_at
			  FROM checkpoints WHERE thread_id = ?`
	cp, err := scanCheckpointRow(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetCheckpoint not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCheckpoint failed", "error", err, "threadID", threadID)
		return nil, err
	}
	return cp, nil
}

// ListCheckpoints returns all stored checkpoints.
func (s *SQLiteStore) ListCheckpoints() ([]models.Checkpoint, error) {
	rows, err := s.db.Query(`SELECT thread_id, stage, status, last_error, state, created_at, updated_at FROM checkpoints`)
	if err != nil {
		slog.Error("SQLiteStore ListCheckpoints query failed", "error", err)
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []models.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			slog.Error("SQLiteStore ListCheckpoints scan failed", "error", err)
			return nil, err
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListCheckpoints rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}
	slog.Debug("SQLiteStore ListCheckpoints succeeded", "count", len(cps))
	return cps, nil
}

// DeleteCheckpoint removes the checkpoint for a thread id.
func (s *SQLiteStore) DeleteCheckpoint(threadID string) error {
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		slog.Error("SQLiteStore DeleteCheckpoint failed", "error", err, "threadID", threadID)
		return err
	}
	slog.Debug("SQLiteStore DeleteCheckpoint succeeded", "threadID", threadID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
