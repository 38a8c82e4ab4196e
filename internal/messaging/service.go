// Package messaging provides delivery senders for non-email campaign
// channels.
//
// Channel selection currently always resolves to email; these senders exist
// so the selector can branch to SMS or WhatsApp without touching the
// pipeline. Dispatch happens in the send stage, keyed by the selected
// channel.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// MinPhoneNumberDigits is the minimum digit count for a canonical recipient.
const MinPhoneNumberDigits = 6

// ErrNoSenderForChannel indicates no sender is registered for a channel.
var ErrNoSenderForChannel = errors.New("no sender registered for channel")

// phoneNumberRegex matches everything that is not a digit, for canonicalization.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Sender delivers plain-text campaign content over one channel.
type Sender interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier, returning the canonical form or an error.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// Registry maps channels to their senders. A channel with no registered
// sender is a degradation at dispatch time, not a construction error.
type Registry struct {
	senders map[models.Channel]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]Sender)}
}

// Register associates a channel with a sender.
func (r *Registry) Register(ch models.Channel, s Sender) {
	r.senders[ch] = s
}

// Get retrieves the sender for a channel.
func (r *Registry) Get(ch models.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

// Send delivers body to the recipient over the given channel.
func (r *Registry) Send(ctx context.Context, ch models.Channel, to, body string) error {
	s, ok := r.senders[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSenderForChannel, ch)
	}
	return s.SendMessage(ctx, to, body)
}

// canonicalizePhoneNumber strips non-digits and validates the result.
func canonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}
	return canonical, nil
}
