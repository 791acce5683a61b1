package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
)

// Branch labels, listed in merge priority order.
const (
	branchFAQVector      = "faq_vector"
	branchVideoKeyword   = "video_keyword"
	branchDocVector      = "doc_vector"
	branchGeneralKeyword = "general_keyword"
)

type RetrievalConfig struct {
	DocumentsTable      string
	FAQTable            string
	SimilarityThreshold float64
	MaxContextChars     int
	MaxContextDocs      int
	BranchTimeout       time.Duration
	Workers             int
	CacheSize           int
	CacheTTL            time.Duration
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.DocumentsTable == "" {
		out.DocumentsTable = "documents"
	}
	if out.FAQTable == "" {
		out.FAQTable = "hospital_faqs"
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = 0.40
	}
	if out.MaxContextChars <= 0 {
		out.MaxContextChars = 6000
	}
	if out.MaxContextDocs <= 0 {
		out.MaxContextDocs = 5
	}
	if out.BranchTimeout <= 0 {
		out.BranchTimeout = 5 * time.Second
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.CacheSize <= 0 {
		out.CacheSize = 128
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = 5 * time.Minute
	}
	return out
}

// RetrieveUseCase is the hybrid retrieval engine: it fans four searches out
// against the document store, merges them by priority, ranks by similarity
// and truncates to the context budget. Results are memoized per raw query.
type RetrieveUseCase struct {
	store    ports.DocumentStore
	embedder ports.Embedder
	cfg      RetrievalConfig
	cache    *resultCache
	metrics  ports.RetrievalMetrics
}

func NewRetrieveUseCase(
	store ports.DocumentStore,
	embedder ports.Embedder,
	cfg RetrievalConfig,
	metrics ports.RetrievalMetrics,
) *RetrieveUseCase {
	cfg = cfg.normalize()
	return &RetrieveUseCase{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		cache:    newResultCache(cfg.CacheSize, cfg.CacheTTL),
		metrics:  metrics,
	}
}

type retrievalBranch struct {
	name string
	run  func(ctx context.Context) ([]domain.Document, error)
}

// Retrieve implements ports.DocumentRetriever. k is the per-branch result
// target; the final list is still bounded by the configured document cap and
// character budget. A failed or timed-out branch degrades to an empty result
// and is never surfaced to the caller; only an empty query is an error.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is empty"))
	}
	if k <= 0 {
		k = 5
	}

	if docs, ok := uc.cache.Get(query); ok {
		uc.observeCacheLookup(true)
		return docs, nil
	}
	uc.observeCacheLookup(false)

	start := time.Now()
	searchTerms := ExpandCompounds(ExpandSynonyms(ExtractKeywords(query)))

	// Both vector branches share one query embedding; the first branch to
	// need it performs the call. An embedding failure empties the vector
	// branches without touching the keyword branches.
	embedQuery := sync.OnceValues(func() ([]float32, error) {
		embedCtx, cancel := context.WithTimeout(ctx, uc.cfg.BranchTimeout)
		defer cancel()
		vec, err := uc.embedder.EmbedQuery(embedCtx, query)
		if err != nil {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
		}
		return vec, nil
	})

	branches := []retrievalBranch{
		{
			name: branchFAQVector,
			run: func(ctx context.Context) ([]domain.Document, error) {
				vec, err := embedQuery()
				if err != nil {
					return nil, err
				}
				return uc.store.VectorSearch(ctx, uc.cfg.FAQTable, vec, uc.cfg.SimilarityThreshold, k)
			},
		},
		{
			name: branchVideoKeyword,
			run: func(ctx context.Context) ([]domain.Document, error) {
				return uc.store.KeywordSearch(ctx, uc.cfg.DocumentsTable, searchTerms, domain.SearchFilter{Type: domain.SourceTypeYouTube}, k)
			},
		},
		{
			name: branchDocVector,
			run: func(ctx context.Context) ([]domain.Document, error) {
				vec, err := embedQuery()
				if err != nil {
					return nil, err
				}
				return uc.store.VectorSearch(ctx, uc.cfg.DocumentsTable, vec, uc.cfg.SimilarityThreshold, k)
			},
		},
		{
			name: branchGeneralKeyword,
			run: func(ctx context.Context) ([]domain.Document, error) {
				return uc.store.KeywordSearch(ctx, uc.cfg.DocumentsTable, searchTerms, domain.SearchFilter{}, k)
			},
		},
	}

	results, failures := uc.fanOut(ctx, branches)

	merged := make([]scoredBranch, len(branches))
	for i, branch := range branches {
		merged[i] = scoredBranch{name: branch.name, docs: results[i]}
	}
	candidates := mergeByScore(merged)
	rankBySimilarity(candidates)
	final := truncateToBudget(candidates, uc.cfg.MaxContextDocs, uc.cfg.MaxContextChars)

	// An all-branches failure is not a valid result; caching it would pin
	// an outage's empty answer for a full TTL.
	if failures < len(branches) {
		uc.cache.Put(query, final)
	}
	uc.observeRetrieval(len(candidates), len(final), time.Since(start).Seconds())
	return final, nil
}

// fanOut executes the branches on a bounded worker pool and blocks until all
// complete. Each branch gets its own timeout; failure or timeout yields an
// empty result for that branch only.
func (uc *RetrieveUseCase) fanOut(ctx context.Context, branches []retrievalBranch) ([][]domain.Document, int) {
	results := make([][]domain.Document, len(branches))
	errs := make([]error, len(branches))

	workers := uc.cfg.Workers
	if workers > len(branches) {
		workers = len(branches)
	}

	tasks := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range tasks {
				branchCtx, cancel := context.WithTimeout(ctx, uc.cfg.BranchTimeout)
				docs, err := branches[i].run(branchCtx)
				cancel()
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = docs
			}
		}()
	}
	for i := range branches {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	failures := 0
	for i, err := range errs {
		failed := err != nil
		uc.observeBranch(branches[i].name, failed)
		if !failed {
			continue
		}
		failures++
		if !domain.IsKind(err, domain.ErrEmbedding) {
			err = domain.WrapError(domain.ErrStore, "retrieval branch", err)
		}
		slog.Warn("retrieval_branch_failed", "branch", branches[i].name, "error", err)
	}
	return results, failures
}

// truncateToBudget walks the ranked list until either the document cap is
// reached or the next document would overflow the character budget.
func truncateToBudget(docs []domain.Document, maxDocs, maxChars int) []domain.Document {
	out := make([]domain.Document, 0, maxDocs)
	total := 0
	for _, doc := range docs {
		if len(out) >= maxDocs {
			break
		}
		length := utf8.RuneCountInString(doc.Content)
		if total+length > maxChars {
			break
		}
		out = append(out, doc)
		total += length
	}
	return out
}

func (uc *RetrieveUseCase) observeCacheLookup(hit bool) {
	if uc.metrics != nil {
		uc.metrics.ObserveCacheLookup(hit)
	}
}

func (uc *RetrieveUseCase) observeBranch(branch string, failed bool) {
	if uc.metrics != nil {
		uc.metrics.ObserveBranch(branch, failed)
	}
}

func (uc *RetrieveUseCase) observeRetrieval(merged, returned int, seconds float64) {
	if uc.metrics != nil {
		uc.metrics.ObserveRetrieval(merged, returned, seconds)
	}
}
