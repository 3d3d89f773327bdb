package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/pagination"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

// KnowledgeItemRepositoryInterface defines the repository interface for knowledge item persistence
type KnowledgeItemRepositoryInterface interface {
	Create(ctx context.Context, k *domain.KnowledgeItem) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeItem, error)
	GetAnyByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*KnowledgeItemPageResult, error)
	ClaimForProcessing(ctx context.Context, id string) error
	SetContent(ctx context.Context, id, content string, status domain.ItemStatus) error
	UpdateStatus(ctx context.Context, id string, status domain.ItemStatus, failureReason string) error
	ResetForReprocess(ctx context.Context, tenantID, id string) error
	Delete(ctx context.Context, tenantID, id string) error
}

type KnowledgeItemPageResult struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// KnowledgeChunkRepositoryInterface defines the repository interface for chunk persistence
type KnowledgeChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, itemID string, chunks []domain.KnowledgeChunk) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	ListUnembedded(ctx context.Context, itemID string) ([]*domain.KnowledgeChunk, error)
	ListEmbedded(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error)
	ListReady(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error)
	DeleteByItem(ctx context.Context, itemID string) error
}

// JobRepositoryInterface defines the repository interface for pipeline job persistence
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.Job) error
	ClaimDue(ctx context.Context, kind domain.JobKind, limit int) ([]*domain.Job, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Reschedule(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error
}

// FileStore abstracts the blob store holding uploaded documents.
type FileStore interface {
	Delete(ctx context.Context, key string) error
}

// KnowledgeService handles business logic for knowledge items
type KnowledgeService struct {
	txRunner  TxRunner
	itemRepo  KnowledgeItemRepositoryInterface
	chunkRepo KnowledgeChunkRepositoryInterface
	jobRepo   JobRepositoryInterface
	files     FileStore
	uuidGen   UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(
	txRunner TxRunner,
	itemRepo KnowledgeItemRepositoryInterface,
	chunkRepo KnowledgeChunkRepositoryInterface,
	jobRepo JobRepositoryInterface,
	files FileStore,
) *KnowledgeService {
	return &KnowledgeService{
		txRunner:  txRunner,
		itemRepo:  itemRepo,
		chunkRepo: chunkRepo,
		jobRepo:   jobRepo,
		files:     files,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(
	txRunner TxRunner,
	itemRepo KnowledgeItemRepositoryInterface,
	chunkRepo KnowledgeChunkRepositoryInterface,
	jobRepo JobRepositoryInterface,
	files FileStore,
	uuidGen UUIDGenerator,
) *KnowledgeService {
	s := NewKnowledgeService(txRunner, itemRepo, chunkRepo, jobRepo, files)
	s.uuidGen = uuidGen
	return s
}

// CreateItemInput represents the input for creating a knowledge item
type CreateItemInput struct {
	TenantID  string
	Type      domain.ItemType
	Title     string
	Content   string
	SourceURL string
	FilePath  string
}

type ListItemsInput struct {
	TenantID string
	Cursor   string
	Limit    int
}

type ListItemsOutput struct {
	Items   []*domain.KnowledgeItem
	Cursor  string
	HasMore bool
}

// Create registers a pending knowledge item and queues its ingest job. Both
// rows commit together.
func (s *KnowledgeService) Create(ctx context.Context, input CreateItemInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	item := domain.NewKnowledgeItem(s.uuidGen.NewString(), input.TenantID, input.Type, input.Title, now)
	item.Content = input.Content
	item.SourceURL = input.SourceURL
	item.FilePath = input.FilePath

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}

	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindIngest, item.ID, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().Create(ctx, item); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return item, nil
}

// GetByID retrieves a knowledge item scoped to its tenant
func (s *KnowledgeService) GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.GetByID", telemetry.SpanAttributes{
		TenantID:  tenantID,
		ItemID:    id,
		Operation: "get",
	})
	defer span.End()

	return s.itemRepo.GetByID(ctx, tenantID, id)
}

// List returns a page of the tenant's knowledge items, newest first
func (s *KnowledgeService) List(ctx context.Context, input ListItemsInput) (*ListItemsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	page, err := s.itemRepo.ListByTenantWithCursor(ctx, input.TenantID, cursor, input.Limit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &ListItemsOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Delete removes an item, its chunks and any stored source file
func (s *KnowledgeService) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		TenantID:  tenantID,
		ItemID:    id,
		Operation: "delete",
	})
	defer span.End()

	item, err := s.itemRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.chunkRepo.DeleteByItem(ctx, id); err != nil {
		span.SetError(err)
		return err
	}
	if err := s.itemRepo.Delete(ctx, tenantID, id); err != nil {
		span.SetError(err)
		return err
	}

	if item.FilePath != "" && s.files != nil {
		if err := s.files.Delete(ctx, item.FilePath); err != nil {
			// The database row is already gone; an orphaned blob is not
			// worth failing the request over.
			telemetry.CaptureError(ctx, err)
		}
	}
	return nil
}

// Reprocess returns a failed item to the pipeline by resetting it to pending,
// dropping its chunks and queueing a fresh ingest job. The chunks go
// immediately so retrieval never serves content from the superseded run.
func (s *KnowledgeService) Reprocess(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Reprocess", telemetry.SpanAttributes{
		TenantID:  tenantID,
		ItemID:    id,
		Operation: "reprocess",
	})
	defer span.End()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().ResetForReprocess(ctx, tenantID, id); err != nil {
			return err
		}
		if err := repos.Chunks().DeleteByItem(ctx, id); err != nil {
			return err
		}
		job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindIngest, id, time.Now().UTC())
		return repos.Jobs().Create(ctx, job)
	})
}
