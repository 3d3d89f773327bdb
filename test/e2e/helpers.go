//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/api/handlers"
	"github.com/cloo-solutions/leadline/internal/chunk"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/embedding"
	"github.com/cloo-solutions/leadline/internal/extract"
	"github.com/cloo-solutions/leadline/internal/jobs"
	"github.com/cloo-solutions/leadline/internal/llm"
	"github.com/cloo-solutions/leadline/internal/notify"
	"github.com/cloo-solutions/leadline/internal/repository"
	"github.com/cloo-solutions/leadline/internal/server"
	"github.com/cloo-solutions/leadline/internal/service"
	"github.com/cloo-solutions/leadline/internal/storage"
	"github.com/cloo-solutions/leadline/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	IngestWorker *jobs.PipelineWorker
	EmbedWorker  *jobs.PipelineWorker
	TenantID     string
	APIKey       string
	HTTPClient   *http.Client
}

// scriptedCompleter returns a fixed reply so conversation flows are
// deterministic without an OpenAI key.
type scriptedCompleter struct {
	reply string
	usage llm.Usage
}

func (c *scriptedCompleter) Complete(ctx context.Context, messages []llm.Message) (string, llm.Usage, error) {
	return c.reply, c.usage, nil
}

func (c *scriptedCompleter) Stream(ctx context.Context, messages []llm.Message, emit func(delta string) error) (string, llm.Usage, error) {
	if err := emit(c.reply); err != nil {
		return "", llm.Usage{}, err
	}
	return c.reply, c.usage, nil
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.ServerURL, env.ServerCloser = env.startServer(port)
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a tenant account for testing
func (e *E2ETestEnv) Bootstrap() {
	tenantRepo := repository.NewTenantRepository(e.Pool)
	authSvc := service.NewAuthService(tenantRepo, &service.DefaultUUIDGenerator{})

	tenant, err := authSvc.CreateTenant(e.Ctx, service.CreateTenantInput{
		Name:           "E2E Test Tenant",
		BotArchetype:   domain.BotArchetypeHybrid,
		BotTone:        domain.BotToneFriendly,
		WelcomeMessage: "Hi! How can I help?",
	})
	if err != nil {
		e.T.Fatalf("failed to create tenant: %v", err)
	}

	e.TenantID = tenant.ID
	e.APIKey = tenant.APIKey
}

// RunPipeline drains the ingest and embed queues once each.
func (e *E2ETestEnv) RunPipeline() {
	if err := e.IngestWorker.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("ingest stage failed: %v", err)
	}
	if err := e.EmbedWorker.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("embed stage failed: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PATCH", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadFile uploads a file to the presigned URL
func (e *E2ETestEnv) UploadFile(uploadURL string, content []byte, contentType string) error {
	req, err := http.NewRequest("PUT", uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// startServer wires the full service graph and starts the HTTP server.
// Embeddings use the local fallback and generation uses a scripted completer,
// so no external APIs are involved.
func (e *E2ETestEnv) startServer(port int) (string, func()) {
	pool := e.Pool

	tenantRepo := repository.NewTenantRepository(pool)
	itemRepo := repository.NewKnowledgeItemRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	provider := embedding.NewProvider(nil)
	completer := &scriptedCompleter{
		reply: "Thanks for reaching out! Could you share your email so our team can follow up?",
		usage: llm.Usage{PromptTokens: 40, CompletionTokens: 18, TotalTokens: 58},
	}

	authSvc := service.NewAuthService(tenantRepo, &service.DefaultUUIDGenerator{})
	knowledgeSvc := service.NewKnowledgeService(txRunner, itemRepo, chunkRepo, jobRepo, e.S3Client)
	retrievalSvc := service.NewRetrievalService(chunkRepo, provider)
	leadSvc := service.NewLeadService(txRunner, leadRepo, convRepo, notify.NewLogNotifier())
	usageSvc := service.NewUsageService(usageRepo)
	chatSvc := service.NewChatService(convRepo, messageRepo, retrievalSvc, completer, leadSvc, usageSvc)

	ingestionSvc := service.NewIngestionService(
		txRunner, itemRepo, chunkRepo, jobRepo,
		extract.NewExtractor(), e.S3Client,
		chunk.NewSegmenter(chunk.DefaultConfig()), provider,
	)

	e.IngestWorker = jobs.NewIngestWorker(jobRepo, ingestionSvc)
	e.EmbedWorker = jobs.NewEmbedWorker(jobRepo, ingestionSvc)

	router := server.NewRouter(server.RouterConfig{
		Authenticator:    authSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc, e.S3Client),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		LeadHandler:      handlers.NewLeadHandler(leadSvc),
		UsageHandler:     handlers.NewUsageHandler(usageSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
