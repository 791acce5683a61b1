// Package bootstrap wires infrastructure and use cases into a runnable
// application. Both binaries share this wiring; the API passes its metrics
// recorder, the worker passes nil.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/config"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
	"github.com/oncare-clinic/rag-chatbot/internal/core/usecase"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/chunking"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/llm/openai"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/queue/nats"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/resilience"
	"github.com/oncare-clinic/rag-chatbot/internal/infrastructure/store/postgres"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Store    *postgres.Store
	ChatUC   ports.ChatService
	Ingestor ports.ContentIngestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, retrievalMetrics ports.RetrievalMetrics) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewStore(db, []string{cfg.DocumentsTable, cfg.FAQTable}, cfg.KeywordFloor)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Executor: exec})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ingest queue: %w", err)
	}

	llmClient := openai.New(openai.Config{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		ChatModel:  cfg.LLMChatModel,
		EmbedModel: cfg.LLMEmbedModel,
	}, exec)
	embedder := openai.NewEmbedder(llmClient)
	classifier := openai.NewClassifier(llmClient)
	generator := openai.NewGenerator(llmClient)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	retrieveUC := usecase.NewRetrieveUseCase(store, embedder, usecase.RetrievalConfig{
		DocumentsTable:      cfg.DocumentsTable,
		FAQTable:            cfg.FAQTable,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxContextChars:     cfg.ContextCharBudget,
		MaxContextDocs:      cfg.MaxContextDocs,
		BranchTimeout:       time.Duration(cfg.BranchTimeoutMS) * time.Millisecond,
		Workers:             cfg.RetrievalWorkers,
		CacheSize:           cfg.CacheSize,
		CacheTTL:            time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}, retrievalMetrics)

	curateUC := usecase.NewCurateUseCase(store, usecase.CurationConfig{
		DocumentsTable: cfg.DocumentsTable,
		FAQTable:       cfg.FAQTable,
	})

	chatUC := usecase.NewChatUseCase(retrieveUC, classifier, generator, curateUC, usecase.ChatConfig{
		TopK:           cfg.MaxContextDocs,
		RelevanceFloor: cfg.RelevanceFloor,
		EnableFallback: cfg.EnableFallback,
	})

	ingestUC := usecase.NewIngestUseCase(chunker, embedder, store, cfg.DocumentsTable)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Store:    store,
		ChatUC:   chatUC,
		Ingestor: ingestUC,

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
