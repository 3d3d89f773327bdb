package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestRetrievalService_Retrieve tests vector-first retrieval with keyword fallback
func TestRetrievalService_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns similarity-ranked chunks when the searcher scores", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		embedded := []*domain.KnowledgeChunk{
			{ID: "chunk-1", TenantID: "tenant-1", Content: "Premium costs $99."},
			{ID: "chunk-2", TenantID: "tenant-1", Content: "We ship worldwide."},
		}
		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return(embedded, nil)
		mockSearcher.On("FindSimilar", mock.Anything, "pricing", mock.MatchedBy(func(chunks []domain.KnowledgeChunk) bool {
			return len(chunks) == 2
		}), 3).Return([]embedding.ScoredChunk{
			{ID: "chunk-1", Content: "Premium costs $99.", Similarity: 0.92},
		})

		results, err := service.Retrieve(ctx, "tenant-1", "pricing", 3)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-1", results[0].ID)
		assert.InDelta(t, 0.92, results[0].Score, 1e-9)
		mockChunkRepo.AssertNotCalled(t, "ListReady", mock.Anything, mock.Anything)
	})

	t.Run("falls back to keyword matching when nothing scores", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{}, nil)
		mockSearcher.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		mockChunkRepo.On("ListReady", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{
			{ID: "chunk-1", Content: "Our refund policy allows returns within 30 days."},
			{ID: "chunk-2", Content: "We ship worldwide."},
			{ID: "chunk-3", Content: "Refund requests and shipping questions go to support."},
		}, nil)

		results, err := service.Retrieve(ctx, "tenant-1", "refund shipping", 5)

		require.NoError(t, err)
		require.Len(t, results, 2)
		// Matches come back in repository order, unranked.
		assert.Equal(t, "chunk-1", results[0].ID)
		assert.Equal(t, "chunk-3", results[1].ID)
	})

	t.Run("keyword fallback honors the limit", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{}, nil)
		mockSearcher.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		mockChunkRepo.On("ListReady", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{
			{ID: "chunk-1", Content: "shipping info one"},
			{ID: "chunk-2", Content: "shipping info two"},
			{ID: "chunk-3", Content: "shipping info three"},
		}, nil)

		results, err := service.Retrieve(ctx, "tenant-1", "shipping", 2)

		require.NoError(t, err)
		require.Len(t, results, 2)
		// The first limit matches win; later chunks are never preferred.
		assert.Equal(t, "chunk-1", results[0].ID)
		assert.Equal(t, "chunk-2", results[1].ID)
	})

	t.Run("query of stop words yields no results without a scan", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{}, nil)
		mockSearcher.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		results, err := service.Retrieve(ctx, "tenant-1", "what is the", 5)

		require.NoError(t, err)
		assert.Empty(t, results)
		mockChunkRepo.AssertNotCalled(t, "ListReady", mock.Anything, mock.Anything)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return(nil, errors.New("pg down"))

		_, err := service.Retrieve(ctx, "tenant-1", "pricing", 5)

		require.Error(t, err)
	})

	t.Run("applies the default limit when none is given", func(t *testing.T) {
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockSearcher := new(MockSimilaritySearcher)

		service := NewRetrievalService(mockChunkRepo, mockSearcher)

		mockChunkRepo.On("ListEmbedded", mock.Anything, "tenant-1").Return([]*domain.KnowledgeChunk{}, nil)
		mockSearcher.On("FindSimilar", mock.Anything, "pricing", mock.Anything, DefaultRetrievalLimit).Return([]embedding.ScoredChunk{
			{ID: "chunk-1", Content: "Premium costs $99.", Similarity: 0.8},
		})

		results, err := service.Retrieve(ctx, "tenant-1", "pricing", 0)

		require.NoError(t, err)
		assert.Len(t, results, 1)
		mockSearcher.AssertExpectations(t)
	})
}

// TestExtractKeywords tests query tokenization for the fallback path
func TestExtractKeywords(t *testing.T) {
	t.Run("drops stop words and short tokens", func(t *testing.T) {
		keywords := extractKeywords("What is the refund policy for EU orders?")
		assert.Equal(t, []string{"refund", "policy", "orders"}, keywords)
	})

	t.Run("lowercases tokens", func(t *testing.T) {
		keywords := extractKeywords("REFUND Policy")
		assert.Equal(t, []string{"refund", "policy"}, keywords)
	})

	t.Run("empty query has no keywords", func(t *testing.T) {
		assert.Empty(t, extractKeywords(""))
	})
}
