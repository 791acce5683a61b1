package ports

import (
	"context"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

// DocumentRetriever is the inbound contract for hybrid retrieval.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error)
}

// SourceCurator builds the user-visible citation list from the generation
// context plus category-based supplementation.
type SourceCurator interface {
	CurateSources(ctx context.Context, contextDocs []domain.Document, category domain.Category, searchTerms []string, fallback bool) []domain.Metadata
}

// ChatService is the inbound contract for a full streamed chat exchange.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest, emit func(chunk string) error) (*domain.ChatOutcome, error)
}

// ContentIngestor indexes one crawled content batch.
type ContentIngestor interface {
	IngestBatch(ctx context.Context, batch domain.IngestBatch) error
}
