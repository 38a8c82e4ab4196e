// Package genai provides GenAI-backed operations using the OpenAI API.
//
// It wraps chat completions (free text and schema-constrained) and image
// generation behind narrow interfaces so tests can substitute mocks.
package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default model configuration
const (
	// DefaultTemperature is the sampling temperature applied to chat completions.
	DefaultTemperature = 0.3
)

// Error variables for better error handling and testability
var (
	// ErrNoChoicesReturned indicates the completion response carried no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoImageReturned indicates the image response carried no data.
	ErrNoImageReturned = errors.New("no image data returned")
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// imageService defines the minimal interface for image generation.
type imageService interface {
	Generate(ctx context.Context, params openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey     string
	ChatModel  openai.ChatModel
	ImageModel openai.ImageModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithChatModel overrides the chat completion model.
func WithChatModel(model openai.ChatModel) Option {
	return func(o *Opts) {
		o.ChatModel = model
	}
}

// WithImageModel overrides the image generation model.
func WithImageModel(model openai.ImageModel) Option {
	return func(o *Opts) {
		o.ImageModel = model
	}
}

// Client wraps the OpenAI chat completion and image services.
type Client struct {
	chat       chatService
	images     imageService
	chatModel  openai.ChatModel
	imageModel openai.ImageModel
}

// NewClient initializes a new GenAI client. The API key is taken from options
// or falls back to the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		ChatModel:  openai.ChatModelGPT4oMini,
		ImageModel: openai.ImageModelGPTImage1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	slog.Debug("GenAI NewClient configured", "chat_model", cfg.ChatModel, "image_model", cfg.ImageModel)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:       &cli.Chat.Completions,
		images:     &cli.Images,
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
	}, nil
}

// GeneratePrompt generates a free-text response based on the provided system
// and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	slog.Debug("GenAI GeneratePrompt invoked", "system_length", len(systemPrompt), "user_length", len(userPrompt))
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.chatModel,
		Temperature: openai.Float(DefaultTemperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("GenAI GeneratePrompt failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("GenAI GeneratePrompt succeeded", "response_length", len(resp.Choices[0].Message.Content))
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured generates a completion constrained to the given JSON
// schema and returns the raw JSON payload for the caller to unmarshal.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, schema map[string]interface{}) (string, error) {
	slog.Debug("GenAI GenerateStructured invoked", "schema", schemaName)
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.chatModel,
		Temperature: openai.Float(DefaultTemperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		slog.Error("GenAI GenerateStructured failed", "error", err, "schema", schemaName)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	// Reject responses that are not even well-formed JSON so callers can rely
	// on a conforming payload or an error, never a partial parse.
	if !json.Valid([]byte(content)) {
		slog.Error("GenAI GenerateStructured returned invalid JSON", "schema", schemaName)
		return "", fmt.Errorf("structured output is not valid JSON for schema %s", schemaName)
	}
	slog.Debug("GenAI GenerateStructured succeeded", "schema", schemaName, "response_length", len(content))
	return content, nil
}

// GenerateImage generates a square image for the prompt and returns the
// decoded PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	slog.Debug("GenAI GenerateImage invoked", "prompt_length", len(prompt))
	resp, err := c.images.Generate(ctx, openai.ImageGenerateParams{
		Model:  c.imageModel,
		Prompt: prompt,
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		slog.Error("GenAI GenerateImage failed", "error", err)
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoImageReturned
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		slog.Error("GenAI GenerateImage base64 decode failed", "error", err)
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	slog.Debug("GenAI GenerateImage succeeded", "bytes", len(data))
	return data, nil
}
