// Package email provides the email delivery capability for CampaignPipe.
//
// It wraps the SendGrid API behind a narrow Sender interface so the pipeline
// and tests never depend on the concrete provider.
package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Attachment is an inline attachment referenced from the HTML body by its
// content id (cid:).
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// Message is a single outbound email.
type Message struct {
	From             string
	FromName         string
	To               string
	ToName           string
	Subject          string
	HTMLBody         string
	InlineAttachment *Attachment
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Opts holds configuration options for the SendGrid sender.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the SendGrid sender.
type Option func(*Opts)

// WithAPIKey sets the SendGrid API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// sendClient defines the minimal interface over the SendGrid client.
type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender implements Sender using the SendGrid v3 API.
type SendGridSender struct {
	client sendClient
}

// NewSendGridSender creates a SendGrid-backed sender. The API key is taken
// from options or falls back to the SENDGRID_API_KEY environment variable.
func NewSendGridSender(opts ...Option) (*SendGridSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("SENDGRID_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY not set")
	}
	slog.Debug("SendGridSender created")
	return &SendGridSender{client: sendgrid.NewSendClient(cfg.APIKey)}, nil
}

// Send delivers the message through SendGrid. An inline attachment, when
// present, is base64-encoded and embedded with inline disposition so the HTML
// body can reference it via cid.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.From == "" || msg.To == "" {
		return fmt.Errorf("sender and recipient must be set")
	}

	from := mail.NewEmail(msg.FromName, msg.From)
	to := mail.NewEmail(msg.ToName, msg.To)
	m := mail.NewV3MailInit(from, msg.Subject, to, mail.NewContent("text/html", msg.HTMLBody))

	if att := msg.InlineAttachment; att != nil {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("inline")
		a.SetContentID(att.ContentID)
		m.AddAttachment(a)
	}

	slog.Debug("SendGridSender sending email", "to", msg.To, "subject", msg.Subject, "has_attachment", msg.InlineAttachment != nil)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		slog.Error("SendGridSender send failed", "error", err, "to", msg.To)
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		slog.Error("SendGridSender delivery rejected", "status", resp.StatusCode, "to", msg.To)
		return fmt.Errorf("email delivery rejected with status %d", resp.StatusCode)
	}

	slog.Info("SendGridSender email sent", "to", msg.To, "status", resp.StatusCode)
	return nil
}

// MockSender records sent messages for tests.
type MockSender struct {
	Sent []Message
	Err  error
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the message, or returns the configured error.
func (m *MockSender) Send(ctx context.Context, msg Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}
