// Package models defines the campaign state record and its partial-update type.
package models

// CampaignState is the single mutable record threaded through the pipeline.
// It is created once per admitted run and never reused or merged across runs.
// Stages never mutate it in place; each stage returns a StateDelta that the
// engine applies before advancing.
type CampaignState struct {
	UserID           string            `json:"user_id"`
	Event            Event             `json:"event"`
	UserData         map[string]string `json:"user_data,omitempty"`
	Intent           string            `json:"intent,omitempty"`
	Sentiment        string            `json:"sentiment,omitempty"`
	Painpoints       []string          `json:"painpoints,omitempty"`
	CampaignStrategy string            `json:"campaign_strategy,omitempty"`
	SelectedChannel  Channel           `json:"selected_channel,omitempty"`
	MessageContent   string            `json:"message_content,omitempty"`
	ImagePrompt      string            `json:"image_prompt,omitempty"`
	// ImageURL is the local path of the persisted ad image. Empty means image
	// generation failed or was skipped; downstream stages must handle that.
	ImageURL string `json:"image_url,omitempty"`
}

// StateDelta is a partial update over CampaignState. Nil fields are untouched
// by Apply; non-nil fields overwrite. This makes the merge shallow and
// per-field idempotent: a stage that sets no key never alters that key.
type StateDelta struct {
	UserData         map[string]string
	Intent           *string
	Sentiment        *string
	Painpoints       *[]string
	CampaignStrategy *string
	SelectedChannel  *Channel
	MessageContent   *string
	ImagePrompt      *string
	ImageURL         *string
}

// Apply merges the delta into the state, overriding only the fields the delta
// carries. UserID and Event are immutable after creation and have no delta slot.
func (d StateDelta) Apply(s *CampaignState) {
	if d.UserData != nil {
		s.UserData = d.UserData
	}
	if d.Intent != nil {
		s.Intent = *d.Intent
	}
	if d.Sentiment != nil {
		s.Sentiment = *d.Sentiment
	}
	if d.Painpoints != nil {
		s.Painpoints = *d.Painpoints
	}
	if d.CampaignStrategy != nil {
		s.CampaignStrategy = *d.CampaignStrategy
	}
	if d.SelectedChannel != nil {
		s.SelectedChannel = *d.SelectedChannel
	}
	if d.MessageContent != nil {
		s.MessageContent = *d.MessageContent
	}
	if d.ImagePrompt != nil {
		s.ImagePrompt = *d.ImagePrompt
	}
	if d.ImageURL != nil {
		s.ImageURL = *d.ImageURL
	}
}

// IsZero reports whether the delta carries no updates.
func (d StateDelta) IsZero() bool {
	return d.UserData == nil && d.Intent == nil && d.Sentiment == nil &&
		d.Painpoints == nil && d.CampaignStrategy == nil && d.SelectedChannel == nil &&
		d.MessageContent == nil && d.ImagePrompt == nil && d.ImageURL == nil
}

// Ptr returns a pointer to v, for building StateDelta literals.
func Ptr[T any](v T) *T {
	return &v
}
