// Package embedding turns text into fixed-dimension vectors, with a
// deterministic local fallback so ingestion and retrieval never block on an
// external backend.
package embedding

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// Backend defines the pluggable embedding capability.
type Backend interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Provider generates embeddings through a backend, degrading to the local
// fallback on backend failure.
type Provider struct {
	backend Backend
}

// NewProvider creates a Provider. A nil backend means fallback-only operation.
func NewProvider(backend Backend) *Provider {
	return &Provider{backend: backend}
}

// Generate returns an embedding for text, or nil for blank input. Backend
// failures are absorbed by the deterministic fallback.
func (p *Provider) Generate(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if p.backend != nil {
		vec, err := p.backend.CreateEmbedding(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec
		}
		if err != nil {
			log.Printf("embedding: backend failed, using fallback: %v", err)
		}
	}

	return Fallback(text)
}

// ScoredChunk is one retrieval candidate with its similarity to the query.
type ScoredChunk struct {
	ID         string
	Content    string
	Similarity float64
}

// FindSimilar embeds the query and ranks every chunk with a non-nil embedding
// by cosine similarity, descending. Ties keep their original order.
func (p *Provider) FindSimilar(ctx context.Context, query string, chunks []domain.KnowledgeChunk, limit int) []ScoredChunk {
	queryVec := p.Generate(ctx, query)
	if queryVec == nil {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		scored = append(scored, ScoredChunk{
			ID:         c.ID,
			Content:    c.Content,
			Similarity: CosineSimilarity(queryVec, c.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
