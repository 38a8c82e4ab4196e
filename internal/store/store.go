// Package store provides checkpoint storage backends for CampaignPipe.
//
// The checkpoint store holds the latest full campaign state snapshot per
// thread id. An in-memory store is the default; SQLite and PostgreSQL
// backends provide persistence across restarts.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// Store defines the checkpoint persistence contract. Save is an upsert keyed
// by thread id: two runs for the same user share a checkpoint lineage and the
// later run overwrites. All implementations must be safe for concurrent use.
type Store interface {
	// SaveCheckpoint inserts or replaces the checkpoint for its thread id.
	SaveCheckpoint(cp models.Checkpoint) error

	// GetCheckpoint returns the checkpoint for a thread id, or nil if absent.
	GetCheckpoint(threadID string) (*models.Checkpoint, error)

	// ListCheckpoints returns all stored checkpoints.
	ListCheckpoints() ([]models.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a thread id.
	DeleteCheckpoint(threadID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// InMemoryStore is a mutex-guarded map-backed checkpoint store. It is the
// default backend when no database DSN is configured.
type InMemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]models.Checkpoint
}

// NewInMemoryStore creates an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore for checkpoints")
	return &InMemoryStore{checkpoints: make(map[string]models.Checkpoint)}
}

// SaveCheckpoint inserts or replaces the checkpoint for its thread id.
func (s *InMemoryStore) SaveCheckpoint(cp models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.checkpoints[cp.ThreadID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	s.checkpoints[cp.ThreadID] = cp
	slog.Debug("InMemoryStore SaveCheckpoint succeeded", "threadID", cp.ThreadID, "stage", cp.Stage, "status", cp.Status)
	return nil
}

// GetCheckpoint returns the checkpoint for a thread id, or nil if absent.
func (s *InMemoryStore) GetCheckpoint(threadID string) (*models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[threadID]
	if !ok {
		slog.Debug("InMemoryStore GetCheckpoint not found", "threadID", threadID)
		return nil, nil
	}
	return &cp, nil
}

// ListCheckpoints returns all stored checkpoints.
func (s *InMemoryStore) ListCheckpoints() ([]models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := make([]models.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		cps = append(cps, cp)
	}
	slog.Debug("InMemoryStore ListCheckpoints succeeded", "count", len(cps))
	return cps, nil
}

// DeleteCheckpoint removes the checkpoint for a thread id.
func (s *InMemoryStore) DeleteCheckpoint(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, threadID)
	slog.Debug("InMemoryStore DeleteCheckpoint succeeded", "threadID", threadID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
