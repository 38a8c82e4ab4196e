// Package store provides checkpoint storage backends for CampaignPipe.
//
// This file implements the PostgreSQL-backed checkpoint store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/BTreeMap/CampaignPipe/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists checkpoints in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveCheckpoint inserts or replaces the checkpoint for its thread id.
func (s *PostgresStore) SaveCheckpoint(cp models.Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		slog.Error("PostgresStore SaveCheckpoint JSON marshal failed", "error", err, "threadID", cp.ThreadID)
		return fmt.Errorf("failed to marshal state for %s: %w", cp.ThreadID, err)
	}
	query := `
		INSERT INTO checkpoints (thread_id, stage, status, last_error, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, cp.ThreadID, cp.Stage, cp.Status, nilIfEmpty(cp.LastError),
		string(stateJSON), cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveCheckpoint failed", "error", err, "threadID", cp.ThreadID)
		return fmt.Errorf("failed to save checkpoint for %s: %w", cp.ThreadID, err)
	}
	slog.Debug("PostgresStore SaveCheckpoint succeeded", "threadID", cp.ThreadID, "stage", cp.Stage, "status", cp.Status)
	return nil
}

// GetCheckpoint returns the checkpoint for a thread id, or nil if absent.
func (s *PostgresStore) GetCheckpoint(threadID string) (*models.Checkpoint, error) {
	query := `SELECT thread_id, stage, status, last_error, state, created_at, updated_at
			  FROM checkpoints WHERE thread_id = $1`
	cp, err := scanCheckpointRow(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetCheckpoint not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCheckpoint failed", "error", err, "threadID", threadID)
		return nil, err
	}
	return cp, nil
}

// ListCheckpoints returns all stored checkpoints.
func (s *PostgresStore) ListCheckpoints() ([]models.Checkpoint, error) {
	rows, err := s.db.Query(`SELECT thread_id, stage, status, last_error, state, created_at, updated_at FROM checkpoints`)
	if err != nil {
		slog.Error("PostgresStore ListCheckpoints query failed", "error", err)
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []models.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			slog.Error("PostgresStore ListCheckpoints scan failed", "error", err)
			return nil, err
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListCheckpoints rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}
	slog.Debug("PostgresStore ListCheckpoints succeeded", "count", len(cps))
	return cps, nil
}

// DeleteCheckpoint removes the checkpoint for a thread id.
func (s *PostgresStore) DeleteCheckpoint(threadID string) error {
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	if err != nil {
		slog.Error("PostgresStore DeleteCheckpoint failed", "error", err, "threadID", threadID)
		return err
	}
	slog.Debug("PostgresStore DeleteCheckpoint succeeded", "threadID", threadID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
