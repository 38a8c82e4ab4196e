// Package flow implements the campaign pipeline.
//
// This file defines the stage functions and wires them into the fixed
// pipeline order.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CampaignPipe/internal/assets"
	"github.com/BTreeMap/CampaignPipe/internal/crm"
	"github.com/BTreeMap/CampaignPipe/internal/email"
	"github.com/BTreeMap/CampaignPipe/internal/messaging"
	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// MailConfig parameterizes the outbound email envelope. The recipient is
// resolved per user from the CRM record's email column when present;
// DefaultRecipient is the fallback.
type MailConfig struct {
	From             string
	FromName         string
	DefaultRecipient string
	Subject          string
}

// DefaultMailSubject is used when no subject is configured.
const DefaultMailSubject = "Personalized Offer Just For You"

// Deps carries the external capabilities the stages consume.
type Deps struct {
	CRM        crm.Lookup
	Text       TextGenerator
	Structured StructuredGenerator
	Image      ImageGenerator
	Assets     assets.Writer
	Email      email.Sender
	Senders    *messaging.Registry
	Selector   ChannelSelector
	Mail       MailConfig
}

// NewPipeline builds the nine campaign stages in their fixed order:
// Log, VerifyCRM, ExtractIntent, BuildStrategy, SelectChannel,
// ComposeMessage, ComposeImagePrompt, GenerateImage, SendEmail.
func NewPipeline(deps Deps) []Stage {
	if deps.Selector == nil {
		deps.Selector = DefaultChannelSelector{}
	}
	if deps.Mail.Subject == "" {
		deps.Mail.Subject = DefaultMailSubject
	}
	return []Stage{
		{Name: StageLog, Run: logStage},
		{Name: StageVerifyCRM, Run: verifyCRMStage(deps.CRM)},
		{Name: StageExtractIntent, Run: extractIntentStage(deps.Structured)},
		{Name: StageBuildStrategy, Run: buildStrategyStage(deps.Text)},
		{Name: StageSelectChannel, Run: selectChannelStage(deps.Selector)},
		{Name: StageComposeMessage, Run: composeMessageStage(deps.Text)},
		{Name: StageComposeImagePrompt, Run: composeImagePromptStage(deps.Text)},
		{Name: StageGenerateImage, Run: generateImageStage(deps.Image, deps.Assets)},
		{Name: StageSendEmail, Run: sendStage(deps)},
	}
}

// logStage records the inbound event. It produces no state update.
func logStage(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
	slog.Info("Event logged", "userID", state.UserID, "event_type", state.Event.Type, "event_value", state.Event.Value)
	return models.StateDelta{}, nil
}

// verifyCRMStage looks up the user's CRM record. This stage never fails the
// pipeline: any lookup error or missing row degrades to an empty record.
func verifyCRMStage(lookup crm.Lookup) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		record, err := lookup.Find(ctx, state.UserID)
		if err != nil {
			slog.Warn("VerifyCRM lookup failed, continuing with empty user data", "error", err, "userID", state.UserID)
			return models.StateDelta{UserData: map[string]string{}}, nil
		}
		if record == nil {
			slog.Debug("VerifyCRM no record found", "userID", state.UserID)
			return models.StateDelta{UserData: map[string]string{}}, nil
		}
		slog.Info("CRM verified", "userID", state.UserID, "fields", len(record))
		return models.StateDelta{UserData: record}, nil
	}
}

// extractIntentStage invokes the structured extraction capability. Failure to
// produce conforming output is a hard failure: downstream stages interpolate
// the extraction into every prompt, so the run halts rather than continuing
// with garbage fields. The failure is surfaced via the checkpoint.
func extractIntentStage(gen StructuredGenerator) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		slog.Info("Extracting intent", "userID", state.UserID)
		eventJSON, err := json.Marshal(state.Event)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("failed to encode event: %w", err)
		}
		userJSON, err := json.Marshal(state.UserData)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("failed to encode user data: %w", err)
		}
		userPrompt := fmt.Sprintf("Interest event: %s\nCRM record: %s", eventJSON, userJSON)

		raw, err := gen.GenerateStructured(ctx, extractSystemPrompt, userPrompt, eventAnalysisSchemaName, eventAnalysisSchema)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("structured extraction failed: %w", err)
		}

		var analysis models.EventAnalysis
		if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
			return models.StateDelta{}, fmt.Errorf("extraction output does not conform to schema: %w", err)
		}
		if analysis.Intent == "" || analysis.Sentiment == "" {
			return models.StateDelta{}, fmt.Errorf("extraction output missing intent or sentiment")
		}
		if analysis.Painpoints == nil {
			analysis.Painpoints = []string{}
		}

		slog.Info("Intent extracted", "userID", state.UserID, "intent", analysis.Intent, "sentiment", analysis.Sentiment, "painpoints", len(analysis.Painpoints))
		return models.StateDelta{
			Intent:     models.Ptr(analysis.Intent),
			Sentiment:  models.Ptr(analysis.Sentiment),
			Painpoints: models.Ptr(analysis.Painpoints),
		}, nil
	}
}

// buildStrategyStage invokes the completion capability with the extracted
// fields interpolated into a marketing-expert prompt. The raw response is the
// strategy, no post-processing.
func buildStrategyStage(gen TextGenerator) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		slog.Info("Creating campaign strategy", "userID", state.UserID)
		eventJSON, err := json.Marshal(state.Event)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("failed to encode event: %w", err)
		}
		userJSON, err := json.Marshal(state.UserData)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("failed to encode user data: %w", err)
		}
		userPrompt := fmt.Sprintf("Intent: %s\nSentiment: %s\nInterest event: %s\nCRM record: %s",
			state.Intent, state.Sentiment, eventJSON, userJSON)

		strategy, err := gen.GeneratePrompt(ctx, strategySystemPrompt, userPrompt)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("strategy generation failed: %w", err)
		}
		return models.StateDelta{CampaignStrategy: models.Ptr(strategy)}, nil
	}
}

// selectChannelStage resolves the delivery channel through the selector.
// Pure function, no external calls.
func selectChannelStage(selector ChannelSelector) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		ch := selector.Select(state)
		slog.Info("Channel selected", "userID", state.UserID, "channel", ch)
		return models.StateDelta{SelectedChannel: models.Ptr(ch)}, nil
	}
}

// composeMessageStage invokes the completion capability under the strict
// email body contract: six-part structure, no placeholders, no markdown.
func composeMessageStage(gen TextGenerator) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		slog.Info("Generating marketing email content", "userID", state.UserID)
		userPrompt := fmt.Sprintf("Campaign Strategy:\n%s\n\nUser Intent:\n%s\n\nUser Sentiment:\n%s\n\nPain Points:\n%s",
			state.CampaignStrategy, state.Intent, state.Sentiment, strings.Join(state.Painpoints, ", "))

		content, err := gen.GeneratePrompt(ctx, messageSystemPrompt, userPrompt)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("message generation failed: %w", err)
		}
		return models.StateDelta{MessageContent: models.Ptr(content)}, nil
	}
}

// composeImagePromptStage produces exactly one image-generation prompt.
func composeImagePromptStage(gen TextGenerator) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		slog.Info("Generating image prompt", "userID", state.UserID)
		userPrompt := fmt.Sprintf("Campaign Strategy:\n%s\n\nMarketing Message:\n%s",
			state.CampaignStrategy, state.MessageContent)

		prompt, err := gen.GeneratePrompt(ctx, imagePromptSystemPrompt, userPrompt)
		if err != nil {
			return models.StateDelta{}, fmt.Errorf("image prompt generation failed: %w", err)
		}
		return models.StateDelta{ImagePrompt: models.Ptr(prompt)}, nil
	}
}
