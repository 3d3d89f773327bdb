package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/leadline/internal/api/handlers"
	"github.com/cloo-solutions/leadline/internal/chunk"
	"github.com/cloo-solutions/leadline/internal/config"
	"github.com/cloo-solutions/leadline/internal/database"
	"github.com/cloo-solutions/leadline/internal/embedding"
	"github.com/cloo-solutions/leadline/internal/extract"
	"github.com/cloo-solutions/leadline/internal/jobs"
	"github.com/cloo-solutions/leadline/internal/llm"
	"github.com/cloo-solutions/leadline/internal/notify"
	"github.com/cloo-solutions/leadline/internal/repository"
	"github.com/cloo-solutions/leadline/internal/server"
	"github.com/cloo-solutions/leadline/internal/service"
	"github.com/cloo-solutions/leadline/internal/storage"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

const embeddingDimension = 1536

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the leadline API server and its ingestion workers",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	itemRepo := repository.NewKnowledgeItemRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Client, err = storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	} else {
		log.Println("S3 not configured: document uploads disabled")
	}

	var backend embedding.Backend
	if cfg.HasOpenAI() {
		backend = embedding.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.EmbeddingModel, embeddingDimension)
	} else {
		log.Println("OpenAI not configured: using fallback embeddings")
	}
	provider := embedding.NewProvider(backend)

	completer := llm.NewClient(llm.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.ChatModel,
	})

	var notifier notify.Notifier
	if cfg.LeadWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.LeadWebhookURL)
	} else {
		notifier = notify.NewLogNotifier()
	}

	var files service.FileStore = &NoOpFileStore{}
	var blobs service.BlobDownloader = &NoOpFileStore{}
	var signer handlers.UploadURLSigner = &NoOpFileStore{}
	if s3Client != nil {
		files = s3Client
		blobs = s3Client
		signer = s3Client
	}

	authSvc := service.NewAuthService(tenantRepo, &service.DefaultUUIDGenerator{})
	knowledgeSvc := service.NewKnowledgeService(txRunner, itemRepo, chunkRepo, jobRepo, files)
	retrievalSvc := service.NewRetrievalService(chunkRepo, provider)
	leadSvc := service.NewLeadService(txRunner, leadRepo, convRepo, notifier)
	usageSvc := service.NewUsageService(usageRepo)
	chatSvc := service.NewChatService(convRepo, messageRepo, retrievalSvc, completer, leadSvc, usageSvc)

	ingestionSvc := service.NewIngestionService(
		txRunner, itemRepo, chunkRepo, jobRepo,
		extract.NewExtractor(), blobs,
		chunk.NewSegmenter(chunk.DefaultConfig()), provider,
	)

	ingestWorker := jobs.NewWorker("ingest", jobs.NewIngestWorker(jobRepo, ingestionSvc), cfg.JobPollInterval)
	embedWorker := jobs.NewWorker("embed", jobs.NewEmbedWorker(jobRepo, ingestionSvc), cfg.JobPollInterval)
	go ingestWorker.Start(ctx)
	go embedWorker.Start(ctx)
	log.Println("pipeline workers started")

	router := server.NewRouter(server.RouterConfig{
		Authenticator:    authSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc, signer),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		LeadHandler:      handlers.NewLeadHandler(leadSvc),
		UsageHandler:     handlers.NewUsageHandler(usageSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ingestWorker.Stop()
	embedWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpFileStore stands in for the blob store when S3 is not configured.
type NoOpFileStore struct{}

func (s *NoOpFileStore) Delete(ctx context.Context, key string) error {
	return nil
}

func (s *NoOpFileStore) Download(ctx context.Context, key, destPath string) error {
	return fmt.Errorf("blob store not configured: S3_ENDPOINT required")
}

func (s *NoOpFileStore) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return "", fmt.Errorf("blob store not configured: S3_ENDPOINT required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
