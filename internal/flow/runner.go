// Package flow implements the campaign pipeline.
//
// This file contains the campaign run entry point: initial state
// construction, fire-and-forget dispatch, and per-thread serialization.
package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/models"
	"github.com/BTreeMap/CampaignPipe/internal/store"
)

// DefaultRunTimeout bounds a single pipeline run. Capability calls are
// blocking external I/O with no timeouts of their own, so the runner imposes
// one per run.
const DefaultRunTimeout = 5 * time.Minute

// RunnerOpts holds configuration options for the runner.
type RunnerOpts struct {
	RunTimeout time.Duration
}

// RunnerOption defines a configuration option for the runner.
type RunnerOption func(*RunnerOpts)

// WithRunTimeout sets the per-run timeout.
func WithRunTimeout(d time.Duration) RunnerOption {
	return func(o *RunnerOpts) {
		o.RunTimeout = d
	}
}

// Runner builds the initial campaign state from an inbound trigger and runs
// the engine asynchronously. Runs sharing a thread id are serialized with a
// per-thread mutex: the cooldown gate is the admission policy, the mutex only
// prevents two late-arriving runs from interleaving on one checkpoint lineage.
type Runner struct {
	engine      *Engine
	checkpoints store.Store
	timeout     time.Duration

	mu      sync.Mutex
	threads map[string]*sync.Mutex

	wg sync.WaitGroup
}

// NewRunner creates a runner over the engine and checkpoint store.
func NewRunner(engine *Engine, checkpoints store.Store, opts ...RunnerOption) *Runner {
	cfg := RunnerOpts{RunTimeout: DefaultRunTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating campaign runner", "run_timeout", cfg.RunTimeout)
	return &Runner{
		engine:      engine,
		checkpoints: checkpoints,
		timeout:     cfg.RunTimeout,
		threads:     make(map[string]*sync.Mutex),
	}
}

// BuildInitialState constructs the campaign state for an inbound trigger.
// The event timestamp is the creation time; user id and event are immutable
// from here on.
func BuildInitialState(userID, description string, now time.Time) models.CampaignState {
	return models.CampaignState{
		UserID: userID,
		Event: models.Event{
			Type:      models.EventTypeUserInterest,
			Value:     description,
			Timestamp: now,
		},
	}
}

// Trigger schedules a pipeline run for the trigger as a fire-and-forget
// background task. The caller receives no outcome; failures are visible only
// through logs and the checkpoint store.
func (r *Runner) Trigger(userID, description string) {
	initial := BuildInitialState(userID, description, time.Now())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(initial)
	}()
	slog.Info("Campaign run scheduled", "userID", userID)
}

// run executes one pipeline run under the thread's mutex.
func (r *Runner) run(initial models.CampaignState) {
	threadID := initial.UserID
	tm := r.threadMutex(threadID)
	tm.Lock()
	defer tm.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	slog.Info("Workflow started", "threadID", threadID)
	if _, err := r.engine.Run(ctx, initial, threadID); err != nil {
		slog.Error("Workflow failed", "threadID", threadID, "error", err)
		return
	}
	slog.Info("Workflow finished", "threadID", threadID)
}

// threadMutex returns the mutex serializing runs for a thread id.
func (r *Runner) threadMutex(threadID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	tm, ok := r.threads[threadID]
	if !ok {
		tm = &sync.Mutex{}
		r.threads[threadID] = tm
	}
	return tm
}

// Wait blocks until all in-flight runs complete. Used during shutdown and in
// tests; in-flight runs are not cancelable once admitted.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// RecoverIncomplete surfaces checkpoints left in a non-completed state by a
// previous process. Resume is an external capability; this sweep only gives
// operators startup visibility into interrupted or failed runs.
func (r *Runner) RecoverIncomplete() {
	cps, err := r.checkpoints.ListCheckpoints()
	if err != nil {
		slog.Error("Recovery sweep failed to list checkpoints", "error", err)
		return
	}
	incomplete := 0
	for _, cp := range cps {
		if cp.Status == models.RunStatusCompleted {
			continue
		}
		incomplete++
		slog.Warn("Found incomplete campaign run", "threadID", cp.ThreadID, "stage", cp.Stage, "status", cp.Status, "last_error", cp.LastError, "updated_at", cp.UpdatedAt)
	}
	slog.Info("Recovery sweep finished", "checkpoints", len(cps), "incomplete", incomplete)
}
