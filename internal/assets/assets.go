// Package assets persists generated ad images under the state directory.
package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Constants for asset storage configuration
const (
	// DefaultDirPermissions defines the default permissions for asset directories
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the default permissions for asset files
	DefaultFilePermissions = 0644
)

// Writer stores and retrieves generated assets by local path.
type Writer interface {
	// Save writes data under name and returns the stored path.
	Save(name string, data []byte) (string, error)

	// Load reads back a previously stored asset.
	Load(path string) ([]byte, error)
}

// DirWriter stores assets as files in a single directory.
type DirWriter struct {
	dir string
}

// NewDirWriter creates a DirWriter rooted at dir, creating it if needed.
func NewDirWriter(dir string) (*DirWriter, error) {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create asset directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	slog.Debug("DirWriter created", "dir", dir)
	return &DirWriter{dir: dir}, nil
}

// Save writes data to <dir>/<name> and returns the full path.
func (w *DirWriter) Save(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		slog.Error("DirWriter failed to write asset", "error", err, "path", path)
		return "", fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	slog.Debug("DirWriter saved asset", "path", path, "bytes", len(data))
	return path, nil
}

// Load reads back a previously stored asset.
func (w *DirWriter) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("DirWriter failed to read asset", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read asset %s: %w", path, err)
	}
	return data, nil
}
