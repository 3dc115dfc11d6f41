package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/profile-rag-service/internal/config"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
	"github.com/kirillkom/profile-rag-service/internal/core/usecase"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/chunking"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/extractor"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/queue/nats"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/resilience"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/throttle"
	"github.com/kirillkom/profile-rag-service/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	QueryLog ports.QueryLogStore

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Pipeline  ports.QueryProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	queryLog := postgres.NewQueryLogRepository(db)
	if err := queryLog.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure query log schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(cfg.Resilience())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	limiter := throttle.NewLimiter(cfg.LLMRequestsPerSecond, cfg.LLMRequestBurst)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, limiter, executor)
	completions := ollama.NewCompletion(ollamaClient)
	classifier := ollama.NewClassifier(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, limiter, executor)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	texts := extractor.NewSelector(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		xlsx.NewExtractor(storage),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, texts, classifier, chunker, embedder, vectorDB)

	transformer := usecase.NewQueryTransformer(completions, logger)
	gateway := usecase.NewRetrievalGateway(embedder, vectorDB, usecase.RetrievalLimits{
		CallTimeout:    time.Duration(cfg.RetrievalTimeoutSecs) * time.Second,
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		Concurrency:    cfg.RetrievalConcurrency,
	}, logger)
	filter := usecase.NewRelevanceFilter(completions, cfg.RetrievalConcurrency, logger)
	composer := usecase.NewAnswerComposer(completions, cfg.Persona, logger)
	verifier := usecase.NewClaimVerifier(completions, logger)
	pipeline := usecase.NewOrchestrator(transformer, gateway, filter, composer, verifier, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Repo:     repo,
		QueryLog: queryLog,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Pipeline:  pipeline,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
