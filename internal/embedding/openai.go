package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// OpenAIBackend generates embeddings through the OpenAI API.
type OpenAIBackend struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAIBackend creates a backend for the given model. A non-zero
// dimension is enforced on every response.
func NewOpenAIBackend(apiKey, model string, dimension int) *OpenAIBackend {
	return &OpenAIBackend{
		client:    openai.NewClient(apiKey),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
	}
}

func (b *OpenAIBackend) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: b.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingBackend, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrEmbeddingBackend)
	}

	vec := resp.Data[0].Embedding
	if b.dimension > 0 && len(vec) != b.dimension {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d", domain.ErrEmbeddingBackend, b.dimension, len(vec))
	}
	return vec, nil
}
