package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/cloo-solutions/leadline/internal/chunk"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

// TextExtractor pulls plain text out of an item's source.
type TextExtractor interface {
	FromFile(path string) (string, error)
	FromURL(ctx context.Context, url string) (string, error)
}

// BlobDownloader fetches an uploaded document to a local file for extraction.
type BlobDownloader interface {
	Download(ctx context.Context, key, destPath string) error
}

// Embedder generates embeddings for chunk content.
type Embedder interface {
	Generate(ctx context.Context, text string) []float32
}

// embedPoolSize bounds concurrent embedding calls per item.
const embedPoolSize = 4

// IngestionService runs the two pipeline stages: extraction plus segmentation,
// then embedding. Stage handlers are invoked by the job workers.
type IngestionService struct {
	txRunner  TxRunner
	itemRepo  KnowledgeItemRepositoryInterface
	chunkRepo KnowledgeChunkRepositoryInterface
	jobRepo   JobRepositoryInterface
	extractor TextExtractor
	blobs     BlobDownloader
	segmenter *chunk.Segmenter
	embedder  Embedder
	uuidGen   UUIDGenerator
}

func NewIngestionService(
	txRunner TxRunner,
	itemRepo KnowledgeItemRepositoryInterface,
	chunkRepo KnowledgeChunkRepositoryInterface,
	jobRepo JobRepositoryInterface,
	extractor TextExtractor,
	blobs BlobDownloader,
	segmenter *chunk.Segmenter,
	embedder Embedder,
) *IngestionService {
	return &IngestionService{
		txRunner:  txRunner,
		itemRepo:  itemRepo,
		chunkRepo: chunkRepo,
		jobRepo:   jobRepo,
		extractor: extractor,
		blobs:     blobs,
		segmenter: segmenter,
		embedder:  embedder,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// ProcessItem runs the ingest stage for one item: claim it, obtain its text,
// segment it, store the chunks and queue the embed stage. The item goes ready
// as soon as its chunks land, so keyword retrieval can serve it while the
// embeddings are still being generated.
func (s *IngestionService) ProcessItem(ctx context.Context, itemID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ProcessItem", telemetry.SpanAttributes{
		ItemID:    itemID,
		Operation: "ingest",
	})
	defer span.End()

	if err := s.itemRepo.ClaimForProcessing(ctx, itemID); err != nil {
		return err
	}

	item, err := s.itemRepo.GetAnyByID(ctx, itemID)
	if err != nil {
		return s.releaseClaim(ctx, itemID, err)
	}

	text, err := s.obtainText(ctx, item)
	if err != nil {
		span.SetError(err)
		return s.releaseClaim(ctx, itemID, err)
	}
	if strings.TrimSpace(text) == "" {
		return s.releaseClaim(ctx, itemID, domain.ErrNoContent)
	}

	chunks := s.segmenter.Split(text)
	if len(chunks) == 0 {
		return s.releaseClaim(ctx, itemID, domain.ErrNoContent)
	}

	now := time.Now().UTC()
	records := make([]domain.KnowledgeChunk, 0, len(chunks))
	for i, content := range chunks {
		records = append(records, domain.KnowledgeChunk{
			ID:         s.uuidGen.NewString(),
			ItemID:     item.ID,
			TenantID:   item.TenantID,
			ChunkIndex: i,
			Content:    content,
			CreatedAt:  now,
		})
	}

	embedJob := domain.NewJob(s.uuidGen.NewString(), domain.JobKindEmbed, item.ID, now)

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().ReplaceChunks(ctx, item.ID, records); err != nil {
			return err
		}
		if err := repos.Items().SetContent(ctx, item.ID, text, domain.ItemStatusReady); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, embedJob)
	})
	if err != nil {
		span.SetError(err)
		return s.releaseClaim(ctx, itemID, err)
	}
	return nil
}

// releaseClaim records the failure on the item, where operators can see it.
// Failed items stay claimable, so a rescheduled job or a reprocess picks them
// back up. The original error passes through for the job ledger.
func (s *IngestionService) releaseClaim(ctx context.Context, itemID string, cause error) error {
	if err := s.itemRepo.UpdateStatus(ctx, itemID, domain.ItemStatusFailed, cause.Error()); err != nil {
		telemetry.CaptureError(ctx, err)
	}
	return cause
}

// EmbedItem runs the embed stage: generate embeddings for the item's chunks
// concurrently. The closing status write re-asserts ready and clears any
// failure reason left by an earlier attempt.
func (s *IngestionService) EmbedItem(ctx context.Context, itemID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.EmbedItem", telemetry.SpanAttributes{
		ItemID:    itemID,
		Operation: "embed",
	})
	defer span.End()

	chunks, err := s.chunkRepo.ListUnembedded(ctx, itemID)
	if err != nil {
		return err
	}

	if len(chunks) > 0 {
		if err := s.embedChunks(ctx, chunks); err != nil {
			span.SetError(err)
			return err
		}
	}

	return s.itemRepo.UpdateStatus(ctx, itemID, domain.ItemStatusReady, "")
}

func (s *IngestionService) embedChunks(ctx context.Context, chunks []*domain.KnowledgeChunk) error {
	pool, err := ants.NewPool(embedPoolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, c := range chunks {
		c := c
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			vec := s.embedder.Generate(ctx, c.Content)
			if vec == nil {
				return
			}
			if err := s.chunkRepo.UpdateEmbedding(ctx, c.ID, vec); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
	}
	wg.Wait()

	return firstErr
}

// MarkFailed records a terminal ingestion failure on the item itself.
func (s *IngestionService) MarkFailed(ctx context.Context, itemID, reason string) error {
	return s.itemRepo.UpdateStatus(ctx, itemID, domain.ItemStatusFailed, reason)
}

func (s *IngestionService) obtainText(ctx context.Context, item *domain.KnowledgeItem) (string, error) {
	switch {
	case item.HasInlineContent():
		return item.Content, nil
	case item.Type == domain.ItemTypeWebpage:
		return s.extractor.FromURL(ctx, item.SourceURL)
	case item.Type == domain.ItemTypeDocument:
		return s.extractDocument(ctx, item)
	}
	return "", fmt.Errorf("%w: item type %s has no source", domain.ErrNoContent, item.Type)
}

func (s *IngestionService) extractDocument(ctx context.Context, item *domain.KnowledgeItem) (string, error) {
	dir, err := os.MkdirTemp("", "leadline-ingest-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, filepath.Base(item.FilePath))
	if err := s.blobs.Download(ctx, item.FilePath, local); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFileNotFound, err)
	}
	return s.extractor.FromFile(local)
}
