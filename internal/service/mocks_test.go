package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/embedding"
	"github.com/cloo-solutions/leadline/internal/llm"
	"github.com/cloo-solutions/leadline/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockKnowledgeItemRepository is a mock implementation of KnowledgeItemRepositoryInterface
type MockKnowledgeItemRepository struct {
	mock.Mock
}

func (m *MockKnowledgeItemRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeItemRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeItemRepository) GetAnyByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeItemRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*KnowledgeItemPageResult, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgeItemPageResult), args.Error(1)
}

func (m *MockKnowledgeItemRepository) ClaimForProcessing(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKnowledgeItemRepository) SetContent(ctx context.Context, id, content string, status domain.ItemStatus) error {
	args := m.Called(ctx, id, content, status)
	return args.Error(0)
}

func (m *MockKnowledgeItemRepository) UpdateStatus(ctx context.Context, id string, status domain.ItemStatus, failureReason string) error {
	args := m.Called(ctx, id, status, failureReason)
	return args.Error(0)
}

func (m *MockKnowledgeItemRepository) ResetForReprocess(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockKnowledgeItemRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockKnowledgeChunkRepository is a mock implementation of KnowledgeChunkRepositoryInterface
type MockKnowledgeChunkRepository struct {
	mock.Mock
}

func (m *MockKnowledgeChunkRepository) ReplaceChunks(ctx context.Context, itemID string, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, itemID, chunks)
	return args.Error(0)
}

func (m *MockKnowledgeChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockKnowledgeChunkRepository) ListUnembedded(ctx context.Context, itemID string) ([]*domain.KnowledgeChunk, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeChunk), args.Error(1)
}

func (m *MockKnowledgeChunkRepository) ListEmbedded(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeChunk), args.Error(1)
}

func (m *MockKnowledgeChunkRepository) ListReady(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeChunk), args.Error(1)
}

func (m *MockKnowledgeChunkRepository) DeleteByItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

// MockJobRepository is a mock implementation of JobRepositoryInterface
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) ClaimDue(ctx context.Context, kind domain.JobKind, limit int) ([]*domain.Job, error) {
	args := m.Called(ctx, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Job), args.Error(1)
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockJobRepository) Reschedule(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextAttemptAt)
	return args.Error(0)
}

// MockConversationRepository is a mock implementation of ConversationRepositoryInterface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetActiveBySession(ctx context.Context, tenantID, sessionID string) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) AttachLead(ctx context.Context, conversationID, leadID string) error {
	args := m.Called(ctx, conversationID, leadID)
	return args.Error(0)
}

func (m *MockConversationRepository) UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockConversationRepository) CountUserMessages(ctx context.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

// MockMessageRepository is a mock implementation of MessageRepositoryInterface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// MockLeadRepository is a mock implementation of LeadRepositoryInterface
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLeadRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindByEmail(ctx context.Context, tenantID, email string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindByEmailForUpdate(ctx context.Context, tenantID, email string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindByPhoneForUpdate(ctx context.Context, tenantID, phone string) (*domain.Lead, error) {
	args := m.Called(ctx, tenantID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepository) Update(ctx context.Context, l *domain.Lead) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLeadRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, status domain.LeadStatus, cursor *pagination.Cursor, limit int) (*LeadPageResult, error) {
	args := m.Called(ctx, tenantID, status, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LeadPageResult), args.Error(1)
}

// MockUsageRepository is a mock implementation of UsageRepositoryInterface
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Record(ctx context.Context, u *domain.UsageRecord) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUsageRepository) SumForPeriod(ctx context.Context, tenantID string, usageType domain.UsageType, from, to time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, usageType, from, to)
	return args.Get(0).(int64), args.Error(1)
}

// MockTenantRepository is a mock implementation of TenantRepositoryInterface
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tenant), args.Error(1)
}

// MockLeadNotifier is a mock implementation of LeadNotifier
type MockLeadNotifier struct {
	mock.Mock
}

func (m *MockLeadNotifier) NotifyNewLead(ctx context.Context, tenant *domain.Tenant, lead *domain.Lead) error {
	args := m.Called(ctx, tenant, lead)
	return args.Error(0)
}

// MockRetriever is a mock implementation of KnowledgeRetriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, tenantID, query string, limit int) ([]RetrievedChunk, error) {
	args := m.Called(ctx, tenantID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RetrievedChunk), args.Error(1)
}

// MockLeadCapturer is a mock implementation of LeadCapturer
type MockLeadCapturer struct {
	mock.Mock
}

func (m *MockLeadCapturer) HandleMessage(ctx context.Context, tenant *domain.Tenant, conv *domain.Conversation, message string) (*domain.Lead, error) {
	args := m.Called(ctx, tenant, conv, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

// MockTokenRecorder is a mock implementation of TokenRecorder
type MockTokenRecorder struct {
	mock.Mock
}

func (m *MockTokenRecorder) RecordTokens(ctx context.Context, tenantID string, tokens int64) error {
	args := m.Called(ctx, tenantID, tokens)
	return args.Error(0)
}

// MockCompleter is a mock implementation of llm.Completer. Stream forwards the
// scripted text to emit in a single delta.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []llm.Message) (string, llm.Usage, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Get(1).(llm.Usage), args.Error(2)
}

func (m *MockCompleter) Stream(ctx context.Context, messages []llm.Message, emit func(delta string) error) (string, llm.Usage, error) {
	args := m.Called(ctx, messages)
	text := args.String(0)
	if args.Error(2) == nil && text != "" {
		if err := emit(text); err != nil {
			return "", llm.Usage{}, err
		}
	}
	return text, args.Get(1).(llm.Usage), args.Error(2)
}

// MockSimilaritySearcher is a mock implementation of SimilaritySearcher
type MockSimilaritySearcher struct {
	mock.Mock
}

func (m *MockSimilaritySearcher) FindSimilar(ctx context.Context, query string, chunks []domain.KnowledgeChunk, limit int) []embedding.ScoredChunk {
	args := m.Called(ctx, query, chunks, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]embedding.ScoredChunk)
}

// MockTextExtractor is a mock implementation of TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) FromFile(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *MockTextExtractor) FromURL(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// MockBlobDownloader is a mock implementation of BlobDownloader
type MockBlobDownloader struct {
	mock.Mock
}

func (m *MockBlobDownloader) Download(ctx context.Context, key, destPath string) error {
	args := m.Called(ctx, key, destPath)
	return args.Error(0)
}

// MockFileStore is a mock implementation of FileStore
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// stubEmbedder returns a fixed vector for every input.
type stubEmbedder struct {
	vec []float32
}

func (s *stubEmbedder) Generate(ctx context.Context, text string) []float32 {
	return s.vec
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// fakeTxRepos hands the test's mocks back out as transactional repositories.
type fakeTxRepos struct {
	items  KnowledgeItemRepositoryInterface
	chunks KnowledgeChunkRepositoryInterface
	jobs   JobRepositoryInterface
	leads  LeadRepositoryInterface
}

func (f fakeTxRepos) Items() KnowledgeItemRepositoryInterface   { return f.items }
func (f fakeTxRepos) Chunks() KnowledgeChunkRepositoryInterface { return f.chunks }
func (f fakeTxRepos) Jobs() JobRepositoryInterface              { return f.jobs }
func (f fakeTxRepos) Leads() LeadRepositoryInterface            { return f.leads }

// fakeTxRunner runs the callback inline against the supplied mocks. A non-nil
// err short-circuits without invoking the callback, standing in for a failure
// to begin the transaction.
type fakeTxRunner struct {
	repos fakeTxRepos
	err   error
}

func newFakeTxRunner(items KnowledgeItemRepositoryInterface, chunks KnowledgeChunkRepositoryInterface, jobs JobRepositoryInterface) *fakeTxRunner {
	return &fakeTxRunner{repos: fakeTxRepos{items: items, chunks: chunks, jobs: jobs}}
}

func newFakeLeadTxRunner(leads LeadRepositoryInterface) *fakeTxRunner {
	return &fakeTxRunner{repos: fakeTxRepos{leads: leads}}
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f.repos)
}
