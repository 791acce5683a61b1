package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
)

// IngestUseCase indexes crawled clinic content: each item is chunked,
// embedded with the document task type and batch-inserted into the target
// table with its metadata propagated to every chunk.
type IngestUseCase struct {
	chunker      ports.Chunker
	embedder     ports.Embedder
	store        ports.DocumentStore
	defaultTable string
}

func NewIngestUseCase(chunker ports.Chunker, embedder ports.Embedder, store ports.DocumentStore, defaultTable string) *IngestUseCase {
	if defaultTable == "" {
		defaultTable = "documents"
	}
	return &IngestUseCase{
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		defaultTable: defaultTable,
	}
}

// IngestBatch implements ports.ContentIngestor.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, batch domain.IngestBatch) error {
	table := batch.Table
	if table == "" {
		table = uc.defaultTable
	}

	var chunks []string
	var metas []domain.Metadata
	for _, item := range batch.Items {
		for _, chunk := range uc.chunker.Split(item.Content) {
			chunks = append(chunks, contextRichChunk(chunk, item.Metadata))
			metas = append(metas, item.Metadata)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := uc.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return domain.WrapError(domain.ErrEmbedding, "embed batch", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]domain.Document, len(chunks))
	for i := range chunks {
		docs[i] = domain.Document{
			ID:       uuid.NewString(),
			Content:  chunks[i],
			Metadata: metas[i],
		}
	}

	if err := uc.store.InsertDocuments(ctx, table, docs, vectors); err != nil {
		return domain.WrapError(domain.ErrStore, "insert batch", err)
	}
	return nil
}

// contextRichChunk prepends the source title so a retrieved chunk stays
// attributable once results from several tables are merged.
func contextRichChunk(chunk string, meta domain.Metadata) string {
	title := strings.TrimSpace(meta.Title())
	if title == "" {
		return chunk
	}
	return fmt.Sprintf("이 내용은 '%s'에서 추출되었습니다.\n\n%s", title, chunk)
}
