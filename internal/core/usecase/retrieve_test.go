package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

type storeFake struct {
	mu sync.Mutex

	vectorByTable    map[string][]domain.Document
	keywordByType    map[domain.SourceType][]domain.Document
	byCategory       []domain.Document
	vectorErr        error
	keywordErr       error
	categoryErr      error
	vectorCalls      int
	keywordCalls     int
	keywordTerms     [][]string
	insertedTables   []string
	insertedDocs     int
	insertedContents []string
	vectorDelay      time.Duration
}

func (f *storeFake) VectorSearch(ctx context.Context, table string, _ []float32, _ float64, _ int) ([]domain.Document, error) {
	f.mu.Lock()
	f.vectorCalls++
	f.mu.Unlock()
	if f.vectorDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.vectorDelay):
		}
	}
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.vectorByTable[table], nil
}

func (f *storeFake) KeywordSearch(_ context.Context, _ string, terms []string, filter domain.SearchFilter, _ int) ([]domain.Document, error) {
	f.mu.Lock()
	f.keywordCalls++
	f.keywordTerms = append(f.keywordTerms, terms)
	f.mu.Unlock()
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keywordByType[filter.Type], nil
}

func (f *storeFake) ListByCategory(context.Context, string, domain.Category, int) ([]domain.Document, error) {
	if f.categoryErr != nil {
		return nil, f.categoryErr
	}
	return f.byCategory, nil
}

func (f *storeFake) InsertDocuments(_ context.Context, table string, docs []domain.Document, _ [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertedTables = append(f.insertedTables, table)
	f.insertedDocs += len(docs)
	for _, doc := range docs {
		f.insertedContents = append(f.insertedContents, doc.Content)
	}
	return nil
}

func (f *storeFake) calls() (vector, keyword int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vectorCalls, f.keywordCalls
}

type embedderFake struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *embedderFake) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func testRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DocumentsTable: "documents",
		FAQTable:       "hospital_faqs",
		BranchTimeout:  time.Second,
	}
}

func TestRetrieveMergesRanksAndTruncates(t *testing.T) {
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{
			"hospital_faqs": {{ID: "faq-1", Content: "faq answer", Similarity: 0.9}},
			"documents":     {{ID: "doc-1", Content: "blog post", Similarity: 0.7}},
		},
		keywordByType: map[domain.SourceType][]domain.Document{
			domain.SourceTypeYouTube: {{ID: "vid-1", Content: "video transcript", Similarity: 0.5}},
			"":                       {{ID: "doc-2", Content: "other blog", Similarity: 0.6}},
		},
	}
	uc := NewRetrieveUseCase(store, &embedderFake{}, testRetrievalConfig(), nil)

	docs, err := uc.Retrieve(context.Background(), "고주파온열치료 효과", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 docs, got %d", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Similarity > docs[i-1].Similarity {
			t.Fatalf("docs not sorted by similarity: %+v", docs)
		}
	}
	if docs[0].ID != "faq-1" {
		t.Fatalf("expected curated FAQ hit first, got %s", docs[0].ID)
	}
}

func TestRetrievePriorityMergeKeepsHigherScore(t *testing.T) {
	// Same document via curated vector (0.9) and general keyword (0.6).
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{
			"hospital_faqs": {{ID: "x", Content: "curated", Similarity: 0.9}},
		},
		keywordByType: map[domain.SourceType][]domain.Document{
			"": {{ID: "x", Content: "keyword", Similarity: 0.6}},
		},
	}
	uc := NewRetrieveUseCase(store, &embedderFake{}, testRetrievalConfig(), nil)

	docs, err := uc.Retrieve(context.Background(), "온열치료", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 merged doc, got %d", len(docs))
	}
	if docs[0].Similarity != 0.9 || docs[0].Content != "curated" {
		t.Fatalf("merge must retain the 0.9 entry, got %+v", docs[0])
	}
}

func TestRetrieveCacheHitSkipsStore(t *testing.T) {
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{
			"documents": {{ID: "doc-1", Content: "text", Similarity: 0.8}},
		},
	}
	uc := NewRetrieveUseCase(store, &embedderFake{}, testRetrievalConfig(), nil)

	first, err := uc.Retrieve(context.Background(), "면역치료", 5)
	if err != nil {
		t.Fatalf("first Retrieve() error = %v", err)
	}
	vectorBefore, keywordBefore := store.calls()

	second, err := uc.Retrieve(context.Background(), "면역치료", 5)
	if err != nil {
		t.Fatalf("second Retrieve() error = %v", err)
	}
	vectorAfter, keywordAfter := store.calls()

	if vectorAfter != vectorBefore || keywordAfter != keywordBefore {
		t.Fatalf("cache hit must not touch the store: vector %d->%d keyword %d->%d",
			vectorBefore, vectorAfter, keywordBefore, keywordAfter)
	}
	if len(first) != len(second) {
		t.Fatalf("cached result differs: %d vs %d docs", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("cached result differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestRetrieveFailedBranchDegradesToEmpty(t *testing.T) {
	store := &storeFake{
		vectorErr: errors.New("store down"),
		keywordByType: map[domain.SourceType][]domain.Document{
			"": {{ID: "kw-1", Content: "keyword hit", Similarity: 0.4}},
		},
	}
	uc := NewRetrieveUseCase(store, &embedderFake{}, testRetrievalConfig(), nil)

	docs, err := uc.Retrieve(context.Background(), "수액치료", 5)
	if err != nil {
		t.Fatalf("branch failure must not surface: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "kw-1" {
		t.Fatalf("expected surviving keyword branch result, got %+v", docs)
	}
}

func TestRetrieveEmbeddingFailureKeepsKeywordBranches(t *testing.T) {
	store := &storeFake{
		keywordByType: map[domain.SourceType][]domain.Document{
			domain.SourceTypeYouTube: {{ID: "vid-1", Content: "video", Similarity: 0.5}},
			"":                       {{ID: "doc-1", Content: "blog", Similarity: 0.4}},
		},
	}
	uc := NewRetrieveUseCase(store, &embedderFake{err: errors.New("embed down")}, testRetrievalConfig(), nil)

	docs, err := uc.Retrieve(context.Background(), "자율신경 증상", 5)
	if err != nil {
		t.Fatalf("embedding failure must not surface: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected both keyword branches to survive, got %+v", docs)
	}
	vector, _ := store.calls()
	if vector != 0 {
		t.Fatalf("vector search must not run without an embedding, calls=%d", vector)
	}
}

func TestRetrieveAllBranchesFailedReturnsEmptyUncached(t *testing.T) {
	store := &storeFake{
		vectorErr:  errors.New("down"),
		keywordErr: errors.New("down"),
	}
	uc := NewRetrieveUseCase(store, &embedderFake{}, testRetrievalConfig(), nil)

	docs, err := uc.Retrieve(context.Background(), "고주파", 5)
	if err != nil {
		t.Fatalf("all-branch failure must not surface: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty result, got %+v", docs)
	}
	if uc.cache.Len() != 0 {
		t.Fatalf("all-branch failure must not be cached")
	}
}

func TestRetrieveBranchTimeoutDegradesToEmpty(t *testing.T) {
	store := &storeFake{
		vectorDelay: 200 * time.Millisecond,
		keywordByType: map[domain.SourceType][]domain.Document{
			"": {{ID: "kw-1", Content: "fast", Similarity: 0.4}},
		},
	}
	cfg := testRetrievalConfig()
	cfg.BranchTimeout = 20 * time.Millisecond
	uc := NewRetrieveUseCase(store, &embedderFake{}, cfg, nil)

	docs, err := uc.Retrieve(context.Background(), "온열치료 예약", 5)
	if err != nil {
		t.Fatalf("timeout must not surface: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "kw-1" {
		t.Fatalf("expected only the fast branch, got %+v", docs)
	}
}

func TestRetrieveDocumentCapBeforeBudget(t *testing.T) {
	many := make([]domain.Document, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		many = append(many, domain.Document{ID: id, Content: "short", Similarity: 0.8})
	}
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{"documents": many},
	}
	cfg := testRetrievalConfig()
	cfg.MaxContextDocs = 5
	cfg.MaxContextChars = 100000
	uc := NewRetrieveUseCase(store, &embedderFake{}, cfg, nil)

	docs, err := uc.Retrieve(context.Background(), "항암치료", 10)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("document cap must stop at 5 even when budget admits more, got %d", len(docs))
	}
}

func TestRetrieveCharacterBudget(t *testing.T) {
	long := strings.Repeat("가", 50)
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{
			"documents": {
				{ID: "a", Content: long, Similarity: 0.9},
				{ID: "b", Content: long, Similarity: 0.8},
				{ID: "c", Content: long, Similarity: 0.7},
			},
		},
	}
	cfg := testRetrievalConfig()
	cfg.MaxContextChars = 120
	uc := NewRetrieveUseCase(store, &embedderFake{}, cfg, nil)

	docs, err := uc.Retrieve(context.Background(), "항암 부작용", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	total := 0
	for _, doc := range docs {
		total += utf8.RuneCountInString(doc.Content)
	}
	if total > 120 {
		t.Fatalf("character budget exceeded: %d", total)
	}
	if len(docs) != 2 {
		t.Fatalf("expected truncation after 2 docs, got %d", len(docs))
	}
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	uc := NewRetrieveUseCase(&storeFake{}, &embedderFake{}, testRetrievalConfig(), nil)
	if _, err := uc.Retrieve(context.Background(), "  ", 5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestRetrieveEmbedsQueryOnce(t *testing.T) {
	embedder := &embedderFake{}
	store := &storeFake{
		vectorByTable: map[string][]domain.Document{
			"documents":     {{ID: "d", Content: "x", Similarity: 0.5}},
			"hospital_faqs": {{ID: "f", Content: "y", Similarity: 0.6}},
		},
	}
	uc := NewRetrieveUseCase(store, embedder, testRetrievalConfig(), nil)

	if _, err := uc.Retrieve(context.Background(), "온열치료 비용", 5); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	embedder.mu.Lock()
	calls := embedder.calls
	embedder.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one embedding call, got %d", calls)
	}
}
