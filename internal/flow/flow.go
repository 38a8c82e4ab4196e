// Package flow implements the campaign pipeline: nine typed stages over a
// shared campaign state, executed in a fixed linear order by the engine, with
// the full state checkpointed at every stage boundary.
package flow

import (
	"context"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// Stage name constants, in pipeline order.
const (
	StageLog                = "Log"
	StageVerifyCRM          = "VerifyCRM"
	StageExtractIntent      = "ExtractIntent"
	StageBuildStrategy      = "BuildStrategy"
	StageSelectChannel      = "SelectChannel"
	StageComposeMessage     = "ComposeMessage"
	StageComposeImagePrompt = "ComposeImagePrompt"
	StageGenerateImage      = "GenerateImage"
	StageSendEmail          = "SendEmail"
)

// StageFunc consumes the current campaign state and produces a partial update.
// Stages never mutate the state they receive; the engine applies the returned
// delta. A stage owning a recoverable external failure logs it and returns a
// degraded-but-valid delta; only unrecoverable errors are returned, and they
// terminate the run.
type StageFunc func(ctx context.Context, state models.CampaignState) (models.StateDelta, error)

// Stage is a named pipeline step.
type Stage struct {
	Name string
	Run  StageFunc
}

// TextGenerator produces free text from a role-framed prompt pair.
type TextGenerator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StructuredGenerator produces JSON conforming to a schema, or fails.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, schema map[string]interface{}) (string, error)
}

// ImageGenerator produces decoded image bytes for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
