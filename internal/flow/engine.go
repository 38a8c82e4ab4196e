// Package flow implements the campaign pipeline.
//
// This file contains the pipeline engine: fixed linear stage execution with
// per-stage state merging and checkpointing.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/models"
	"github.com/BTreeMap/CampaignPipe/internal/store"
)

// Engine executes a statically-defined linear sequence of stages, threading
// the campaign state through them. After each stage's delta is applied, the
// full state is persisted to the checkpoint store keyed by thread id. The
// graph is a straight line: no branching, no skipping, no generic recovery.
type Engine struct {
	stages      []Stage
	checkpoints store.Store
}

// NewEngine creates an engine over the given stage sequence and checkpoint store.
func NewEngine(checkpoints store.Store, stages []Stage) *Engine {
	slog.Debug("Creating pipeline engine", "stages", len(stages))
	return &Engine{stages: stages, checkpoints: checkpoints}
}

// StageNames returns the stage names in execution order.
func (e *Engine) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, st := range e.stages {
		names[i] = st.Name
	}
	return names
}

// Run executes all stages in order on the initial state and returns the final
// state. A stage error terminates the run at that stage: the engine records a
// failed checkpoint carrying the error and propagates it. Checkpoint write
// failures are logged but do not abort the run; checkpointing is an
// observability guarantee, not a pipeline dependency.
func (e *Engine) Run(ctx context.Context, initial models.CampaignState, threadID string) (models.CampaignState, error) {
	slog.Info("Engine.Run: pipeline started", "threadID", threadID, "stages", len(e.stages))
	state := initial
	createdAt := time.Now()

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			e.saveCheckpoint(threadID, stage.Name, models.RunStatusFailed, err.Error(), state, createdAt)
			return state, fmt.Errorf("pipeline canceled before stage %s: %w", stage.Name, err)
		}

		slog.Debug("Engine.Run: executing stage", "threadID", threadID, "stage", stage.Name)
		delta, err := stage.Run(ctx, state)
		if err != nil {
			slog.Error("Engine.Run: stage failed, terminating run", "threadID", threadID, "stage", stage.Name, "error", err)
			e.saveCheckpoint(threadID, stage.Name, models.RunStatusFailed, err.Error(), state, createdAt)
			return state, fmt.Errorf("stage %s failed: %w", stage.Name, err)
		}

		delta.Apply(&state)
		e.saveCheckpoint(threadID, stage.Name, models.RunStatusRunning, "", state, createdAt)
		slog.Debug("Engine.Run: stage completed", "threadID", threadID, "stage", stage.Name)
	}

	e.saveCheckpoint(threadID, e.stages[len(e.stages)-1].Name, models.RunStatusCompleted, "", state, createdAt)
	slog.Info("Engine.Run: pipeline completed", "threadID", threadID)
	return state, nil
}

// saveCheckpoint persists the current state snapshot for the thread.
func (e *Engine) saveCheckpoint(threadID, stage string, status models.RunStatus, lastError string, state models.CampaignState, createdAt time.Time) {
	cp := models.Checkpoint{
		ThreadID:  threadID,
		Stage:     stage,
		Status:    status,
		LastError: lastError,
		State:     state,
		CreatedAt: createdAt,
		UpdatedAt: time.Now(),
	}
	if err := e.checkpoints.SaveCheckpoint(cp); err != nil {
		slog.Error("Engine.saveCheckpoint: failed to persist checkpoint", "error", err, "threadID", threadID, "stage", stage)
	}
}
