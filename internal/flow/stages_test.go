package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/BTreeMap/CampaignPipe/internal/email"
	"github.com/BTreeMap/CampaignPipe/internal/models"
	"github.com/BTreeMap/CampaignPipe/internal/store"
)

// mockLookup implements crm.Lookup with a fixed record set.
type mockLookup struct {
	records map[string]map[string]string
	err     error
}

func (m *mockLookup) Find(ctx context.Context, userID string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[userID], nil
}

// mockTextGen keys canned responses off the system prompt.
type mockTextGen struct {
	responses map[string]string
	err       error
}

func (m *mockTextGen) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if resp, ok := m.responses[systemPrompt]; ok {
		return resp, nil
	}
	return "", fmt.Errorf("unexpected system prompt")
}

// mockStructuredGen returns a fixed payload for the extraction schema.
type mockStructuredGen struct {
	payload string
	err     error
}

func (m *mockStructuredGen) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, schema map[string]interface{}) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.payload, nil
}

// mockImageGen returns fixed image bytes.
type mockImageGen struct {
	data []byte
	err  error
}

func (m *mockImageGen) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

// mockAssets stores saved assets in memory.
type mockAssets struct {
	files   map[string][]byte
	saveErr error
	loadErr error
}

func newMockAssets() *mockAssets {
	return &mockAssets{files: make(map[string][]byte)}
}

func (m *mockAssets) Save(name string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	path := "/assets/" + name
	m.files[path] = data
	return path, nil
}

func (m *mockAssets) Load(path string) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", path)
	}
	return data, nil
}

func testDeps(sender *email.MockSender) Deps {
	return Deps{
		CRM: &mockLookup{records: map[string]map[string]string{
			"U001": {"user_id": "U001", "name": "Asha", "email": "asha@example.com", "phone": "+14155550100"},
		}},
		Text: &mockTextGen{responses: map[string]string{
			strategySystemPrompt:    "a focused discount campaign",
			messageSystemPrompt:     "Hi Asha,\nGreat sweaters under 5000 await.",
			imagePromptSystemPrompt: "a cozy sweater on a wooden table, warm light",
		}},
		Structured: &mockStructuredGen{payload: `{"intent":"buy sweater","sentiment":"positive","painpoints":["price"]}`},
		Image:      &mockImageGen{data: []byte{0x89, 0x50, 0x4e, 0x47}},
		Assets:     newMockAssets(),
		Email:      sender,
		Mail: MailConfig{
			From:     "campaigns@example.com",
			FromName: "Campaigns",
		},
	}
}

func runPipeline(t *testing.T, deps Deps, userID, description string) (models.CampaignState, error) {
	t.Helper()
	engine := NewEngine(store.NewInMemoryStore(), NewPipeline(deps))
	initial := BuildInitialState(userID, description, testNow())
	return engine.Run(context.Background(), initial, userID)
}

func TestPipelineEndToEnd(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)

	final, err := runPipeline(t, deps, "U001", "A sweater under 5000")
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if final.UserData["name"] != "Asha" {
		t.Errorf("expected CRM data merged, got %v", final.UserData)
	}
	if final.Intent != "buy sweater" || final.Sentiment != "positive" {
		t.Errorf("unexpected extraction: intent=%q sentiment=%q", final.Intent, final.Sentiment)
	}
	if len(final.Painpoints) != 1 || final.Painpoints[0] != "price" {
		t.Errorf("unexpected painpoints: %v", final.Painpoints)
	}
	if final.CampaignStrategy != "a focused discount campaign" {
		t.Errorf("unexpected strategy: %q", final.CampaignStrategy)
	}
	if final.SelectedChannel != models.ChannelEmail {
		t.Errorf("expected email channel, got %s", final.SelectedChannel)
	}
	if final.MessageContent == "" || final.ImagePrompt == "" {
		t.Errorf("expected message and image prompt, got %+v", final)
	}
	if final.ImageURL != "/assets/ad-U001.png" {
		t.Errorf("unexpected image path: %q", final.ImageURL)
	}

	if len(sender.Sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.Sent))
	}
	msg := sender.Sent[0]
	if msg.To != "asha@example.com" {
		t.Errorf("expected CRM email recipient, got %q", msg.To)
	}
	if msg.InlineAttachment == nil || msg.InlineAttachment.ContentID != adImageContentID {
		t.Errorf("expected inline ad image attachment, got %+v", msg.InlineAttachment)
	}
	if !strings.Contains(msg.HTMLBody, "cid:"+adImageContentID) {
		t.Error("expected HTML body to reference the inline image")
	}
	if msg.Subject != DefaultMailSubject {
		t.Errorf("expected default subject, got %q", msg.Subject)
	}
}

func TestPipelineCRMFailureDegrades(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	deps.CRM = &mockLookup{err: errors.New("crm store unreachable")}
	deps.Mail.DefaultRecipient = "fallback@example.com"

	final, err := runPipeline(t, deps, "U001", "A sweater under 5000")
	if err != nil {
		t.Fatalf("expected run to survive CRM failure, got %v", err)
	}
	if final.UserData == nil || len(final.UserData) != 0 {
		t.Errorf("expected empty user data after CRM failure, got %v", final.UserData)
	}
	if len(sender.Sent) != 1 || sender.Sent[0].To != "fallback@example.com" {
		t.Errorf("expected delivery to fallback recipient, got %+v", sender.Sent)
	}
}

func TestPipelineUnknownUserDegrades(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	deps.Mail.DefaultRecipient = "fallback@example.com"

	final, err := runPipeline(t, deps, "U999", "A sweater under 5000")
	if err != nil {
		t.Fatalf("expected run to survive unknown user, got %v", err)
	}
	if len(final.UserData) != 0 {
		t.Errorf("expected empty user data for unknown user, got %v", final.UserData)
	}
}

func TestPipelineExtractionFailureIsFatal(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	deps.Structured = &mockStructuredGen{err: errors.New("model unavailable")}

	st := store.NewInMemoryStore()
	engine := NewEngine(st, NewPipeline(deps))
	_, err := engine.Run(context.Background(), BuildInitialState("U001", "sweater", testNow()), "U001")
	if err == nil {
		t.Fatal("expected extraction failure to terminate the run")
	}
	cp, _ := st.GetCheckpoint("U001")
	if cp == nil || cp.Status != models.RunStatusFailed || cp.Stage != StageExtractIntent {
		t.Errorf("expected failed checkpoint at extraction stage, got %+v", cp)
	}
	if len(sender.Sent) != 0 {
		t.Error("expected no delivery after fatal extraction failure")
	}
}

func TestPipelineNonconformingExtractionIsFatal(t *testing.T) {
	deps := testDeps(email.NewMockSender())
	deps.Structured = &mockStructuredGen{payload: `{"intent":"","sentiment":"","painpoints":null}`}

	if _, err := runPipeline(t, deps, "U001", "sweater"); err == nil {
		t.Error("expected empty extraction fields to terminate the run")
	}

	deps.Structured = &mockStructuredGen{payload: `not json`}
	if _, err := runPipeline(t, deps, "U001", "sweater"); err == nil {
		t.Error("expected malformed extraction payload to terminate the run")
	}
}

func TestPipelineNilPainpointsNormalized(t *testing.T) {
	deps := testDeps(email.NewMockSender())
	deps.Structured = &mockStructuredGen{payload: `{"intent":"buy","sentiment":"positive"}`}

	final, err := runPipeline(t, deps, "U001", "sweater")
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if final.Painpoints == nil || len(final.Painpoints) != 0 {
		t.Errorf("expected empty painpoints slice, got %v", final.Painpoints)
	}
}

func TestPipelineImageFailureSendsTextOnly(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	deps.Image = &mockImageGen{err: errors.New("image model down")}

	final, err := runPipeline(t, deps, "U001", "sweater")
	if err != nil {
		t.Fatalf("expected run to survive image failure, got %v", err)
	}
	if final.ImageURL != "" {
		t.Errorf("expected explicit empty image url, got %q", final.ImageURL)
	}
	if len(sender.Sent) != 1 {
		t.Fatalf("expected text-only email, got %d deliveries", len(sender.Sent))
	}
	msg := sender.Sent[0]
	if msg.InlineAttachment != nil {
		t.Error("expected no attachment for text-only email")
	}
	if strings.Contains(msg.HTMLBody, "cid:") {
		t.Error("expected HTML body without image reference")
	}
}

func TestPipelineImagePersistFailureDegrades(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	assets := newMockAssets()
	assets.saveErr = errors.New("disk full")
	deps.Assets = assets

	final, err := runPipeline(t, deps, "U001", "sweater")
	if err != nil {
		t.Fatalf("expected run to survive asset write failure, got %v", err)
	}
	if final.ImageURL != "" {
		t.Errorf("expected empty image url after persist failure, got %q", final.ImageURL)
	}
	if len(sender.Sent) != 1 {
		t.Error("expected delivery despite image persist failure")
	}
}

func TestPipelineNoRecipientSkipsEmail(t *testing.T) {
	sender := email.NewMockSender()
	deps := testDeps(sender)
	deps.CRM = &mockLookup{records: map[string]map[string]string{}}

	if _, err := runPipeline(t, deps, "U001", "sweater"); err != nil {
		t.Fatalf("expected run to complete, got %v", err)
	}
	if len(sender.Sent) != 0 {
		t.Errorf("expected email skipped without recipient, got %+v", sender.Sent)
	}
}

func TestPipelineEmailFailureDoesNotFailRun(t *testing.T) {
	sender := email.NewMockSender()
	sender.Err = errors.New("sendgrid down")
	deps := testDeps(sender)

	st := store.NewInMemoryStore()
	engine := NewEngine(st, NewPipeline(deps))
	if _, err := engine.Run(context.Background(), BuildInitialState("U001", "sweater", testNow()), "U001"); err != nil {
		t.Fatalf("expected run to survive delivery failure, got %v", err)
	}
	cp, _ := st.GetCheckpoint("U001")
	if cp == nil || cp.Status != models.RunStatusCompleted {
		t.Errorf("expected completed checkpoint despite delivery failure, got %+v", cp)
	}
}

func TestRenderEmailHTMLEscapesContent(t *testing.T) {
	html := renderEmailHTML("Deals <b>now</b>\nSecond line", true)
	if strings.Contains(html, "<b>now</b>") {
		t.Error("expected message content to be escaped")
	}
	if !strings.Contains(html, "&lt;b&gt;now&lt;/b&gt;") {
		t.Error("expected escaped markup in body")
	}
	if !strings.Contains(html, "<br>") {
		t.Error("expected newlines converted to line breaks")
	}
	if !strings.Contains(html, "cid:"+adImageContentID) {
		t.Error("expected image reference when withImage is true")
	}

	plain := renderEmailHTML("hello", false)
	if strings.Contains(plain, "cid:") {
		t.Error("expected no image reference when withImage is false")
	}
}

func TestDefaultChannelSelector(t *testing.T) {
	sel := DefaultChannelSelector{}
	if got := sel.Select(models.CampaignState{UserID: "U001"}); got != models.ChannelEmail {
		t.Errorf("expected email channel, got %s", got)
	}
}
