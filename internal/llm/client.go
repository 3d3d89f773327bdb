// Package llm wraps chat completion backends behind a small interface so the
// conversation service can be tested without network access.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/leadline/internal/domain"
)

const (
	// DefaultChatModel is the model used when none is configured.
	DefaultChatModel = openai.GPT4oMini
	// CompletionTimeout bounds a single generation, streaming included.
	CompletionTimeout = 60 * time.Second
)

// Roles accepted by chat completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string
	Content string
}

// Usage reports token consumption for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer is the capability the conversation service depends on.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, Usage, error)
	Stream(ctx context.Context, messages []Message, emit func(delta string) error) (string, Usage, error)
}

// Client generates chat completions through the OpenAI API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// NewClient creates a chat client using defaults for unset fields.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       model,
		temperature: temperature,
	}
}

func toRequestMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// Complete runs a blocking chat completion and returns the full response text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toRequestMessages(messages),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("%w: %v", domain.ErrGenerationBackend, err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("%w: empty response", domain.ErrGenerationBackend)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// Stream runs a streaming chat completion, invoking emit for every content
// delta, and returns the accumulated text. A non-nil error from emit aborts
// the stream.
func (c *Client) Stream(ctx context.Context, messages []Message, emit func(delta string) error) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toRequestMessages(messages),
		Temperature: c.temperature,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("%w: %v", domain.ErrGenerationBackend, err)
	}
	defer stream.Close()

	var full []byte
	var usage Usage
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", Usage{}, fmt.Errorf("%w: %v", domain.ErrGenerationBackend, err)
		}
		if chunk.Usage != nil {
			usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		if err := emit(delta); err != nil {
			return "", Usage{}, err
		}
	}

	return string(full), usage, nil
}
