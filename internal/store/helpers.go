package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use the postgres:// scheme or key=value connection strings; everything else
// is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanCheckpoint scans a Checkpoint from sql.Rows.
func scanCheckpoint(rows *sql.Rows) (models.Checkpoint, error) {
	var cp models.Checkpoint
	var lastError sql.NullString
	var stateJSON string
	err := rows.Scan(&cp.ThreadID, &cp.Stage, &cp.Status, &lastError, &stateJSON, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		return cp, fmt.Errorf("scan checkpoint failed: %w", err)
	}
	cp.LastError = lastError.String
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return cp, fmt.Errorf("unmarshal checkpoint state failed: %w", err)
	}
	return cp, nil
}

// scanCheckpointRow scans a Checkpoint from a single sql.Row.
func scanCheckpointRow(row *sql.Row) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	var lastError sql.NullString
	var stateJSON string
	err := row.Scan(&cp.ThreadID, &cp.Stage, &cp.Status, &lastError, &stateJSON, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cp.LastError = lastError.String
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint state failed: %w", err)
	}
	return &cp, nil
}
