// Package crm provides the customer record lookup consumed by the pipeline.
//
// The store is a flat CSV file keyed by a user_id column. Lookups must be
// treated as optionally absent or corrupt: callers receive an error, but the
// pipeline stage that consumes this package degrades every error to an empty
// record rather than failing the run.
package crm

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// UserIDColumn is the CSV column that keys customer records.
const UserIDColumn = "user_id"

// Lookup resolves a user id to a flat customer record.
type Lookup interface {
	// Find returns the first matching record for userID, or nil if no row
	// matches. An error indicates the store is unreachable or malformed.
	Find(ctx context.Context, userID string) (map[string]string, error)
}

// CSVLookup reads customer records from a CSV file on every lookup, so edits
// to the file are visible without a restart.
type CSVLookup struct {
	path string
}

// NewCSVLookup creates a CSV-backed lookup for the given file path.
func NewCSVLookup(path string) *CSVLookup {
	slog.Debug("Creating CSVLookup", "path", path)
	return &CSVLookup{path: path}
}

// Find returns the first row whose user_id column equals userID as a map of
// column name to value, or nil if no row matches.
func (l *CSVLookup) Find(ctx context.Context, userID string) (map[string]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		slog.Warn("CSVLookup failed to open CRM file", "error", err, "path", l.path)
		return nil, fmt.Errorf("failed to open CRM store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		slog.Warn("CSVLookup failed to read CRM header", "error", err, "path", l.path)
		return nil, fmt.Errorf("failed to read CRM header: %w", err)
	}

	idCol := -1
	for i, name := range header {
		if name == UserIDColumn {
			idCol = i
			break
		}
	}
	if idCol == -1 {
		slog.Warn("CSVLookup CRM file missing user_id column", "path", l.path)
		return nil, fmt.Errorf("CRM store missing %q column", UserIDColumn)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			slog.Warn("CSVLookup failed to read CRM row", "error", err, "path", l.path)
			return nil, fmt.Errorf("failed to read CRM row: %w", err)
		}
		if idCol < len(row) && row[idCol] == userID {
			record := make(map[string]string, len(header))
			for i, name := range header {
				if i < len(row) {
					record[name] = row[i]
				}
			}
			slog.Debug("CSVLookup found record", "userID", userID, "fields", len(record))
			return record, nil
		}
	}

	slog.Debug("CSVLookup no record found", "userID", userID)
	return nil, nil
}
