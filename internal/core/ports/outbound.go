package ports

import (
	"context"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

// DocumentStore is the external vector+keyword document store.
type DocumentStore interface {
	// VectorSearch returns documents whose embedding similarity to the
	// query embedding exceeds threshold, best match first.
	VectorSearch(ctx context.Context, table string, embedding []float32, threshold float64, limit int) ([]domain.Document, error)
	// KeywordSearch returns documents whose content or title contains any
	// of the terms, scored by term-overlap ratio.
	KeywordSearch(ctx context.Context, table string, terms []string, filter domain.SearchFilter, limit int) ([]domain.Document, error)
	// ListByCategory returns documents tagged with the category.
	ListByCategory(ctx context.Context, table string, category domain.Category, limit int) ([]domain.Document, error)
	// InsertDocuments writes content and embeddings in one batch.
	InsertDocuments(ctx context.Context, table string, docs []domain.Document, vectors [][]float32) error
}

// Embedder builds vectors for stored content and query text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CategoryClassifier routes a query onto the closed category set.
type CategoryClassifier interface {
	Classify(ctx context.Context, query string) (domain.Category, error)
}

// AnswerGenerator produces the user-facing answer incrementally.
// emit is called once per text chunk in arrival order; a non-nil emit error
// aborts the stream.
type AnswerGenerator interface {
	StreamAnswer(ctx context.Context, req domain.GenerationRequest, emit func(chunk string) error) error
}

// Chunker splits crawled text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// IngestQueue carries crawled content batches to the indexing worker.
type IngestQueue interface {
	PublishIngestBatch(ctx context.Context, batch domain.IngestBatch) error
	SubscribeIngestBatch(ctx context.Context, handler func(context.Context, domain.IngestBatch) error) error
}

// RetrievalMetrics receives retrieval pipeline observations. Implementations
// must tolerate concurrent calls.
type RetrievalMetrics interface {
	ObserveCacheLookup(hit bool)
	ObserveBranch(branch string, failed bool)
	ObserveRetrieval(merged, returned int, seconds float64)
}
