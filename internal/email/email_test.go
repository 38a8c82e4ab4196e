package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mockSendClient implements sendClient for testing.
type mockSendClient struct {
	response *rest.Response
	err      error
	captured *mail.SGMailV3
}

func (m *mockSendClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	m.captured = email
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func testMessage() Message {
	return Message{
		From:     "campaigns@example.com",
		FromName: "Campaigns",
		To:       "asha@example.com",
		Subject:  "Personalized Offer Just For You",
		HTMLBody: "<html><body>hello</body></html>",
	}
}

func TestSendGridSenderSuccess(t *testing.T) {
	mock := &mockSendClient{response: &rest.Response{StatusCode: 202}}
	sender := &SendGridSender{client: mock}

	if err := sender.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if mock.captured == nil {
		t.Fatal("expected mail to be passed to client")
	}
	if mock.captured.Subject != "Personalized Offer Just For You" {
		t.Errorf("unexpected subject: %q", mock.captured.Subject)
	}
	if len(mock.captured.Attachments) != 0 {
		t.Errorf("expected no attachments, got %d", len(mock.captured.Attachments))
	}
}

func TestSendGridSenderInlineAttachment(t *testing.T) {
	mock := &mockSendClient{response: &rest.Response{StatusCode: 202}}
	sender := &SendGridSender{client: mock}

	msg := testMessage()
	msg.InlineAttachment = &Attachment{
		Filename:    "ad.png",
		ContentType: "image/png",
		ContentID:   "adimage",
		Data:        []byte{0x89, 0x50},
	}
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(mock.captured.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(mock.captured.Attachments))
	}
	att := mock.captured.Attachments[0]
	if att.Disposition != "inline" || att.ContentID != "adimage" || att.Type != "image/png" {
		t.Errorf("unexpected attachment metadata: %+v", att)
	}
	if att.Content == "" {
		t.Error("expected base64 attachment content")
	}
}

func TestSendGridSenderRejectedStatus(t *testing.T) {
	mock := &mockSendClient{response: &rest.Response{StatusCode: 400}}
	sender := &SendGridSender{client: mock}

	if err := sender.Send(context.Background(), testMessage()); err == nil {
		t.Error("expected error for rejected delivery status")
	}
}

func TestSendGridSenderClientError(t *testing.T) {
	mock := &mockSendClient{err: errors.New("network error")}
	sender := &SendGridSender{client: mock}

	if err := sender.Send(context.Background(), testMessage()); err == nil {
		t.Error("expected error from client failure")
	}
}

func TestSendGridSenderRequiresAddresses(t *testing.T) {
	sender := &SendGridSender{client: &mockSendClient{response: &rest.Response{StatusCode: 202}}}

	msg := testMessage()
	msg.From = ""
	if err := sender.Send(context.Background(), msg); err == nil {
		t.Error("expected error when sender address is missing")
	}

	msg = testMessage()
	msg.To = ""
	if err := sender.Send(context.Background(), msg); err == nil {
		t.Error("expected error when recipient address is missing")
	}
}

func TestNewSendGridSenderRequiresAPIKey(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY", "")
	if _, err := NewSendGridSender(); err == nil {
		t.Error("expected error when no API key is configured")
	}
	if _, err := NewSendGridSender(WithAPIKey("SG.test")); err != nil {
		t.Errorf("expected sender creation with explicit key, got %v", err)
	}
}

func TestMockSenderRecordsMessages(t *testing.T) {
	mock := NewMockSender()
	if err := mock.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(mock.Sent) != 1 || mock.Sent[0].To != "asha@example.com" {
		t.Errorf("unexpected recorded messages: %+v", mock.Sent)
	}

	mock.Err = errors.New("boom")
	if err := mock.Send(context.Background(), testMessage()); err == nil {
		t.Error("expected configured error")
	}
}
