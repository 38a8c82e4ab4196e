// Package models defines the core data structures for CampaignPipe.
//
// It includes the campaign state threaded through the pipeline, trigger
// request/response payloads, and checkpoint records shared across modules.
package models

import (
	"errors"
	"time"
)

// Channel identifies a delivery channel for campaign content.
type Channel string

const (
	// ChannelEmail delivers the campaign as an HTML email.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers the campaign as a plain-text SMS.
	ChannelSMS Channel = "sms"
	// ChannelWhatsApp delivers the campaign as a WhatsApp message.
	ChannelWhatsApp Channel = "whatsapp"
)

// IsValidChannel checks if the given channel is supported.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	default:
		return false
	}
}

// EventTypeUserInterest is the event type recorded for interest triggers.
const EventTypeUserInterest = "user_interest"

// Validation constants for input validation
const (
	// MaxDescriptionLength defines the maximum allowed length for an interest description
	MaxDescriptionLength = 2048
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID        = errors.New("user_id cannot be empty")
	ErrEmptyDescription   = errors.New("description cannot be empty")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
)

// Event is the inbound interest event that seeds a campaign run.
// It is immutable after creation.
type Event struct {
	Type      string    `json:"event_type"`
	Value     string    `json:"event_value"`
	Timestamp time.Time `json:"timestamp"`
}

// EventAnalysis is the schema-constrained output of the intent extraction stage.
type EventAnalysis struct {
	Intent     string   `json:"intent"`
	Sentiment  string   `json:"sentiment"`
	Painpoints []string `json:"painpoints"`
}

// TriggerRequest is the payload accepted by the campaign trigger endpoint.
type TriggerRequest struct {
	UserID      string `json:"user_id"`
	Description string `json:"description"`
}

// Validate performs validation on a TriggerRequest.
func (r *TriggerRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Description == "" {
		return ErrEmptyDescription
	}
	if len(r.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// TriggerStatus represents the admission decision surfaced to the caller.
type TriggerStatus string

const (
	// TriggerStatusAccepted indicates the campaign run was admitted and scheduled.
	TriggerStatusAccepted TriggerStatus = "accepted"
	// TriggerStatusIgnored indicates the trigger was rejected by the cooldown gate.
	TriggerStatusIgnored TriggerStatus = "ignored"
)

// TriggerResponse is the synchronous reply of the trigger endpoint. The caller
// only ever sees the admission decision, never pipeline-internal outcomes.
type TriggerResponse struct {
	Status  TriggerStatus `json:"status"`
	Message string        `json:"message"`
}

// RunStatus represents the lifecycle status of a checkpointed campaign run.
type RunStatus string

const (
	// RunStatusRunning indicates the pipeline has not reached its terminal stage.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the pipeline visited every stage.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates a stage aborted the run.
	RunStatusFailed RunStatus = "failed"
)

// Checkpoint is the latest full state snapshot for a thread, persisted after
// every stage boundary. Keyed by thread id: two runs for the same user share a
// lineage and the later run overwrites.
type Checkpoint struct {
	ThreadID  string        `json:"thread_id"`
	Stage     string        `json:"stage"`
	Status    RunStatus     `json:"status"`
	LastError string        `json:"last_error,omitempty"`
	State     CampaignState `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
