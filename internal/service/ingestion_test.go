package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/leadline/internal/chunk"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ingestionTestService(
	itemRepo *MockKnowledgeItemRepository,
	chunkRepo *MockKnowledgeChunkRepository,
	jobRepo *MockJobRepository,
	extractor *MockTextExtractor,
	blobs *MockBlobDownloader,
	uuidGen UUIDGenerator,
) *IngestionService {
	segmenter := chunk.NewSegmenter(chunk.Config{ChunkSize: 200, Overlap: 20, MinChunkChars: 10})
	service := NewIngestionService(
		newFakeTxRunner(itemRepo, chunkRepo, jobRepo),
		itemRepo, chunkRepo, jobRepo,
		extractor, blobs, segmenter,
		&stubEmbedder{vec: []float32{0.1, 0.2, 0.3}},
	)
	if uuidGen != nil {
		service.uuidGen = uuidGen
	}
	return service
}

// TestIngestionService_ProcessItem tests the extraction and segmentation stage
func TestIngestionService_ProcessItem(t *testing.T) {
	ctx := context.Background()

	t.Run("segments inline content, marks ready and queues the embed stage", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)
		mockUUIDGen := NewMockUUIDGenerator("chunk-id-1", "embed-job-1")

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), mockUUIDGen)

		item := &domain.KnowledgeItem{
			ID:       "item-1",
			TenantID: "tenant-1",
			Type:     domain.ItemTypeText,
			Status:   domain.ItemStatusPending,
			Title:    "Shipping",
			Content:  "We ship worldwide within five business days of the order being placed.",
		}
		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(nil)
		mockItemRepo.On("GetAnyByID", mock.Anything, "item-1").Return(item, nil)
		mockChunkRepo.On("ReplaceChunks", mock.Anything, "item-1", mock.MatchedBy(func(chunks []domain.KnowledgeChunk) bool {
			return len(chunks) == 1 &&
				chunks[0].ID == "chunk-id-1" &&
				chunks[0].ItemID == "item-1" &&
				chunks[0].TenantID == "tenant-1" &&
				chunks[0].ChunkIndex == 0 &&
				chunks[0].Content == item.Content
		})).Return(nil)
		// Ready as soon as the chunks land: keyword retrieval works before
		// the embed stage has run.
		mockItemRepo.On("SetContent", mock.Anything, "item-1", item.Content, domain.ItemStatusReady).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool {
			return j.ID == "embed-job-1" && j.Kind == domain.JobKindEmbed && j.ItemID == "item-1"
		})).Return(nil)

		err := service.ProcessItem(ctx, "item-1")

		require.NoError(t, err)
		mockItemRepo.AssertExpectations(t)
		mockChunkRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("stops when the item is already claimed", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), nil)

		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(domain.ErrItemAlreadyClaimed)

		err := service.ProcessItem(ctx, "item-1")

		assert.ErrorIs(t, err, domain.ErrItemAlreadyClaimed)
		mockItemRepo.AssertNotCalled(t, "GetAnyByID", mock.Anything, mock.Anything)
	})

	t.Run("marks the item failed when extraction yields nothing", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)
		mockExtractor := new(MockTextExtractor)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, mockExtractor, new(MockBlobDownloader), nil)

		item := &domain.KnowledgeItem{
			ID:        "item-1",
			TenantID:  "tenant-1",
			Type:      domain.ItemTypeWebpage,
			SourceURL: "https://example.com/docs",
		}
		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(nil)
		mockItemRepo.On("GetAnyByID", mock.Anything, "item-1").Return(item, nil)
		mockExtractor.On("FromURL", mock.Anything, "https://example.com/docs").Return("   \n  ", nil)
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusFailed, domain.ErrNoContent.Error()).Return(nil)

		err := service.ProcessItem(ctx, "item-1")

		assert.ErrorIs(t, err, domain.ErrNoContent)
		mockItemRepo.AssertExpectations(t)
		mockChunkRepo.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("extracts webpages through the URL extractor", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)
		mockExtractor := new(MockTextExtractor)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, mockExtractor, new(MockBlobDownloader), nil)

		item := &domain.KnowledgeItem{
			ID:        "item-1",
			TenantID:  "tenant-1",
			Type:      domain.ItemTypeWebpage,
			SourceURL: "https://example.com/faq",
		}
		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(nil)
		mockItemRepo.On("GetAnyByID", mock.Anything, "item-1").Return(item, nil)
		mockExtractor.On("FromURL", mock.Anything, "https://example.com/faq").Return("Frequently asked questions about shipping and returns policies.", nil)
		mockChunkRepo.On("ReplaceChunks", mock.Anything, "item-1", mock.Anything).Return(nil)
		mockItemRepo.On("SetContent", mock.Anything, "item-1", mock.Anything, domain.ItemStatusReady).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := service.ProcessItem(ctx, "item-1")

		require.NoError(t, err)
		mockExtractor.AssertExpectations(t)
	})

	t.Run("records the failure reason when the document download fails", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)
		mockBlobs := new(MockBlobDownloader)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), mockBlobs, nil)

		item := &domain.KnowledgeItem{
			ID:       "item-1",
			TenantID: "tenant-1",
			Type:     domain.ItemTypeDocument,
			FilePath: "tenant-1/upload-1/guide.pdf",
		}
		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(nil)
		mockItemRepo.On("GetAnyByID", mock.Anything, "item-1").Return(item, nil)
		mockBlobs.On("Download", mock.Anything, "tenant-1/upload-1/guide.pdf", mock.Anything).Return(errors.New("404"))
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusFailed, mock.MatchedBy(func(reason string) bool {
			return strings.Contains(reason, "404")
		})).Return(nil)

		err := service.ProcessItem(ctx, "item-1")

		assert.ErrorIs(t, err, domain.ErrFileNotFound)
		mockItemRepo.AssertExpectations(t)
	})

	t.Run("marks the item failed when the transaction fails", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		segmenter := chunk.NewSegmenter(chunk.Config{ChunkSize: 200, Overlap: 20, MinChunkChars: 10})
		txRunner := newFakeTxRunner(mockItemRepo, mockChunkRepo, mockJobRepo)
		txRunner.err = errors.New("begin failed")
		service := NewIngestionService(txRunner, mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), segmenter, &stubEmbedder{})

		item := &domain.KnowledgeItem{
			ID:       "item-1",
			TenantID: "tenant-1",
			Type:     domain.ItemTypeText,
			Content:  "We ship worldwide within five business days of the order being placed.",
		}
		mockItemRepo.On("ClaimForProcessing", mock.Anything, "item-1").Return(nil)
		mockItemRepo.On("GetAnyByID", mock.Anything, "item-1").Return(item, nil)
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusFailed, "begin failed").Return(nil)

		err := service.ProcessItem(ctx, "item-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin failed")
		mockItemRepo.AssertExpectations(t)
	})
}

// TestIngestionService_EmbedItem tests the embedding stage
func TestIngestionService_EmbedItem(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds every chunk and marks the item ready", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), nil)

		chunks := []*domain.KnowledgeChunk{
			{ID: "chunk-1", ItemID: "item-1", TenantID: "tenant-1", Content: "alpha"},
			{ID: "chunk-2", ItemID: "item-1", TenantID: "tenant-1", Content: "beta"},
		}
		mockChunkRepo.On("ListUnembedded", mock.Anything, "item-1").Return(chunks, nil)
		mockChunkRepo.On("UpdateEmbedding", mock.Anything, "chunk-1", []float32{0.1, 0.2, 0.3}).Return(nil)
		mockChunkRepo.On("UpdateEmbedding", mock.Anything, "chunk-2", []float32{0.1, 0.2, 0.3}).Return(nil)
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusReady, "").Return(nil)

		err := service.EmbedItem(ctx, "item-1")

		require.NoError(t, err)
		mockChunkRepo.AssertExpectations(t)
		mockItemRepo.AssertExpectations(t)
	})

	t.Run("marks the item ready when nothing is left to embed", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), nil)

		mockChunkRepo.On("ListUnembedded", mock.Anything, "item-1").Return([]*domain.KnowledgeChunk{}, nil)
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusReady, "").Return(nil)

		err := service.EmbedItem(ctx, "item-1")

		require.NoError(t, err)
		mockChunkRepo.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips persistence for chunks the embedder returns nothing for", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		segmenter := chunk.NewSegmenter(chunk.DefaultConfig())
		service := NewIngestionService(
			newFakeTxRunner(mockItemRepo, mockChunkRepo, mockJobRepo),
			mockItemRepo, mockChunkRepo, mockJobRepo,
			new(MockTextExtractor), new(MockBlobDownloader), segmenter,
			&stubEmbedder{vec: nil},
		)

		mockChunkRepo.On("ListUnembedded", mock.Anything, "item-1").Return([]*domain.KnowledgeChunk{
			{ID: "chunk-1", Content: "alpha"},
		}, nil)
		mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusReady, "").Return(nil)

		err := service.EmbedItem(ctx, "item-1")

		require.NoError(t, err)
		mockChunkRepo.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("propagates persistence failures without marking ready", func(t *testing.T) {
		mockItemRepo := new(MockKnowledgeItemRepository)
		mockChunkRepo := new(MockKnowledgeChunkRepository)
		mockJobRepo := new(MockJobRepository)

		service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), nil)

		mockChunkRepo.On("ListUnembedded", mock.Anything, "item-1").Return([]*domain.KnowledgeChunk{
			{ID: "chunk-1", Content: "alpha"},
		}, nil)
		mockChunkRepo.On("UpdateEmbedding", mock.Anything, "chunk-1", mock.Anything).Return(errors.New("pg down"))

		err := service.EmbedItem(ctx, "item-1")

		require.Error(t, err)
		mockItemRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestIngestionService_MarkFailed tests terminal failure recording
func TestIngestionService_MarkFailed(t *testing.T) {
	mockItemRepo := new(MockKnowledgeItemRepository)
	mockChunkRepo := new(MockKnowledgeChunkRepository)
	mockJobRepo := new(MockJobRepository)

	service := ingestionTestService(mockItemRepo, mockChunkRepo, mockJobRepo, new(MockTextExtractor), new(MockBlobDownloader), nil)

	mockItemRepo.On("UpdateStatus", mock.Anything, "item-1", domain.ItemStatusFailed, "no content could be extracted").Return(nil)

	err := service.MarkFailed(context.Background(), "item-1", "no content could be extracted")

	require.NoError(t, err)
	mockItemRepo.AssertExpectations(t)
}
