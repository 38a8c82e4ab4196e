// Package messaging provides delivery senders for non-email campaign channels.
//
// This file implements the whatsmeow-backed WhatsApp sender.
package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/CampaignPipe/internal/whatsapp"
)

// WhatsAppService implements Sender using the whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client whatsapp.Sender
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	slog.Debug("WhatsAppService created")
	return &WhatsAppService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhoneNumber(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage sends a WhatsApp message to the recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService recipient validation failed", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}
