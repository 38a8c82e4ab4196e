// Package flow implements the campaign pipeline.
//
// This file isolates channel selection as a strategy point.
package flow

import (
	"log/slog"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// ChannelSelector decides which delivery channel a campaign uses. The current
// selector always resolves to email; the interface exists so future selectors
// can branch on user data or intent without touching the pipeline.
type ChannelSelector interface {
	Select(state models.CampaignState) models.Channel
}

// DefaultChannelSelector always selects the email channel.
type DefaultChannelSelector struct{}

// Select returns the email channel unconditionally.
func (DefaultChannelSelector) Select(state models.CampaignState) models.Channel {
	slog.Debug("DefaultChannelSelector selected channel", "userID", state.UserID, "channel", models.ChannelEmail)
	return models.ChannelEmail
}
