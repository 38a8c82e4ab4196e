// Package flow implements the campaign pipeline.
//
// This file contains the delivery-side stages: image generation and the send
// stage. Both degrade on failure; the pipeline always reaches its terminal
// stage regardless of delivery outcome.
package flow

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CampaignPipe/internal/assets"
	"github.com/BTreeMap/CampaignPipe/internal/email"
	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// Asset and attachment constants for the generated ad image.
const (
	adImageContentID   = "adimage"
	adImageContentType = "image/png"
	adImageFilename    = "ad.png"
)

// CRM record columns consulted for delivery addressing.
const (
	crmEmailColumn = "email"
	crmPhoneColumn = "phone"
)

// generateImageStage generates the ad image and persists it as a local asset.
// On any failure (generation, decode, write) the stage logs and degrades:
// the returned delta binds image_url to an explicit empty value, never to a
// dangling reference, and the run continues.
func generateImageStage(gen ImageGenerator, writer assets.Writer) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		slog.Info("Generating ad image", "userID", state.UserID)
		noImage := models.StateDelta{ImageURL: models.Ptr("")}

		data, err := gen.GenerateImage(ctx, state.ImagePrompt)
		if err != nil {
			slog.Warn("Image generation failed, continuing without image", "error", err, "userID", state.UserID)
			return noImage, nil
		}

		path, err := writer.Save(fmt.Sprintf("ad-%s.png", state.UserID), data)
		if err != nil {
			slog.Warn("Image persistence failed, continuing without image", "error", err, "userID", state.UserID)
			return noImage, nil
		}

		slog.Info("Ad image generated", "userID", state.UserID, "path", path)
		return models.StateDelta{ImageURL: models.Ptr(path)}, nil
	}
}

// sendStage delivers the composed campaign over the selected channel. Email
// gets the HTML body with the ad image inlined when available; SMS and
// WhatsApp get the plain message content through the sender registry. Every
// delivery failure is logged and swallowed so the run reaches its terminal
// state; outcomes are operator-visible only.
func sendStage(deps Deps) StageFunc {
	return func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
		if state.SelectedChannel != models.ChannelEmail {
			sendViaChannel(ctx, deps, state)
			return models.StateDelta{}, nil
		}

		recipient := state.UserData[crmEmailColumn]
		if recipient == "" {
			recipient = deps.Mail.DefaultRecipient
		}
		if recipient == "" {
			slog.Warn("SendEmail skipped: no recipient available", "userID", state.UserID)
			return models.StateDelta{}, nil
		}

		msg := email.Message{
			From:     deps.Mail.From,
			FromName: deps.Mail.FromName,
			To:       recipient,
			Subject:  deps.Mail.Subject,
		}

		// Missing or unreadable image degrades to a text-only email.
		var imageData []byte
		if state.ImageURL != "" {
			data, err := deps.Assets.Load(state.ImageURL)
			if err != nil {
				slog.Warn("SendEmail could not read ad image, sending text-only", "error", err, "userID", state.UserID, "path", state.ImageURL)
			} else {
				imageData = data
			}
		}
		msg.HTMLBody = renderEmailHTML(state.MessageContent, imageData != nil)
		if imageData != nil {
			msg.InlineAttachment = &email.Attachment{
				Filename:    adImageFilename,
				ContentType: adImageContentType,
				ContentID:   adImageContentID,
				Data:        imageData,
			}
		}

		slog.Info("Sending campaign email", "userID", state.UserID, "to", recipient, "with_image", imageData != nil)
		if err := deps.Email.Send(ctx, msg); err != nil {
			slog.Error("Email delivery failed", "error", err, "userID", state.UserID, "to", recipient)
			return models.StateDelta{}, nil
		}

		slog.Info("Email sent", "userID", state.UserID, "to", recipient)
		return models.StateDelta{}, nil
	}
}

// sendViaChannel delivers the plain message content over a non-email channel
// through the sender registry. Failures degrade with a log.
func sendViaChannel(ctx context.Context, deps Deps, state models.CampaignState) {
	recipient := state.UserData[crmPhoneColumn]
	if recipient == "" {
		slog.Warn("Channel send skipped: no phone number in user data", "userID", state.UserID, "channel", state.SelectedChannel)
		return
	}
	if deps.Senders == nil {
		slog.Warn("Channel send skipped: no sender registry configured", "userID", state.UserID, "channel", state.SelectedChannel)
		return
	}
	if err := deps.Senders.Send(ctx, state.SelectedChannel, recipient, state.MessageContent); err != nil {
		slog.Error("Channel delivery failed", "error", err, "userID", state.UserID, "channel", state.SelectedChannel)
		return
	}
	slog.Info("Channel message sent", "userID", state.UserID, "channel", state.SelectedChannel)
}

// renderEmailHTML builds the campaign email body. The message content is
// escaped and newline-broken; the ad image is referenced by content id when
// attached.
func renderEmailHTML(message string, withImage bool) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family:Arial, sans-serif;">`)
	b.WriteString(`<h2>Personalized Offer Just For You</h2>`)
	b.WriteString(`<p>`)
	b.WriteString(strings.ReplaceAll(html.EscapeString(message), "\n", "<br>"))
	b.WriteString(`</p>`)
	if withImage {
		b.WriteString(`<br><img src="cid:` + adImageContentID + `" width="600" style="border-radius:12px;" />`)
	}
	b.WriteString(`<br><br><p style="color:gray;font-size:12px;">Offer valid for a limited time only.</p>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
