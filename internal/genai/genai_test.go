package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	response *openai.ChatCompletion
	err      error
	captured openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.captured = params
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

// mockImageService implements imageService for testing.
type mockImageService struct {
	response *openai.ImagesResponse
	err      error
}

func (m *mockImageService) Generate(ctx context.Context, params openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func chatResponse(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestClient(chat chatService, images imageService) *Client {
	return &Client{
		chat:       chat,
		images:     images,
		chatModel:  openai.ChatModelGPT4oMini,
		imageModel: openai.ImageModelGPTImage1,
	}
}

func TestGeneratePromptSuccess(t *testing.T) {
	mock := &mockChatService{response: chatResponse("a campaign strategy")}
	client := newTestClient(mock, nil)

	got, err := client.GeneratePrompt(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("GeneratePrompt failed: %v", err)
	}
	if got != "a campaign strategy" {
		t.Errorf("unexpected response: %q", got)
	}
	if len(mock.captured.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.captured.Messages))
	}
	if mock.captured.Temperature.Value != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, mock.captured.Temperature.Value)
	}
}

func TestGeneratePromptServiceError(t *testing.T) {
	mock := &mockChatService{err: errors.New("api error")}
	client := newTestClient(mock, nil)

	if _, err := client.GeneratePrompt(context.Background(), "system", "user"); err == nil {
		t.Error("expected error from service failure")
	}
}

func TestGeneratePromptNoChoices(t *testing.T) {
	mock := &mockChatService{response: &openai.ChatCompletion{}}
	client := newTestClient(mock, nil)

	_, err := client.GeneratePrompt(context.Background(), "system", "user")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerateStructuredSuccess(t *testing.T) {
	mock := &mockChatService{response: chatResponse(`{"intent":"buy sweater","sentiment":"positive","painpoints":["price"]}`)}
	client := newTestClient(mock, nil)

	schema := map[string]interface{}{"type": "object"}
	got, err := client.GenerateStructured(context.Background(), "system", "user", "event_analysis", schema)
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	if got == "" {
		t.Error("expected non-empty JSON payload")
	}
	if mock.captured.ResponseFormat.OfJSONSchema == nil {
		t.Fatal("expected JSON schema response format to be set")
	}
	if mock.captured.ResponseFormat.OfJSONSchema.JSONSchema.Name != "event_analysis" {
		t.Errorf("unexpected schema name: %q", mock.captured.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	}
}

func TestGenerateStructuredInvalidJSON(t *testing.T) {
	mock := &mockChatService{response: chatResponse("not json at all")}
	client := newTestClient(mock, nil)

	if _, err := client.GenerateStructured(context.Background(), "system", "user", "event_analysis", nil); err == nil {
		t.Error("expected error for non-JSON structured output")
	}
}

func TestGenerateStructuredNoChoices(t *testing.T) {
	mock := &mockChatService{response: &openai.ChatCompletion{}}
	client := newTestClient(mock, nil)

	_, err := client.GenerateStructured(context.Background(), "system", "user", "event_analysis", nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerateImageSuccess(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	mock := &mockImageService{response: &openai.ImagesResponse{
		Data: []openai.Image{{B64JSON: base64.StdEncoding.EncodeToString(payload)}},
	}}
	client := newTestClient(nil, mock)

	got, err := client.GenerateImage(context.Background(), "a sweater on a mannequin")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("decoded image mismatch: got %v want %v", got, payload)
	}
}

func TestGenerateImageNoData(t *testing.T) {
	mock := &mockImageService{response: &openai.ImagesResponse{}}
	client := newTestClient(nil, mock)

	_, err := client.GenerateImage(context.Background(), "prompt")
	if !errors.Is(err, ErrNoImageReturned) {
		t.Errorf("expected ErrNoImageReturned, got %v", err)
	}
}

func TestGenerateImageInvalidBase64(t *testing.T) {
	mock := &mockImageService{response: &openai.ImagesResponse{
		Data: []openai.Image{{B64JSON: "!!not-base64!!"}},
	}}
	client := newTestClient(nil, mock)

	if _, err := client.GenerateImage(context.Background(), "prompt"); err == nil {
		t.Error("expected error for invalid base64 payload")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when no API key is configured")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("expected client creation with explicit key, got %v", err)
	}
}
