package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
)

type CurationConfig struct {
	DocumentsTable   string
	FAQTable         string
	MaxVideoSources  int
	CategoryScanSize int
	KeywordScanSize  int
}

func (c CurationConfig) normalize() CurationConfig {
	out := c
	if out.DocumentsTable == "" {
		out.DocumentsTable = "documents"
	}
	if out.FAQTable == "" {
		out.FAQTable = "hospital_faqs"
	}
	if out.MaxVideoSources <= 0 {
		out.MaxVideoSources = 5
	}
	if out.CategoryScanSize <= 0 {
		out.CategoryScanSize = 100
	}
	if out.KeywordScanSize <= 0 {
		out.KeywordScanSize = 15
	}
	return out
}

// CurateUseCase decides which retrieved items become user-visible citations.
// Non-video sources from the generation context are always cited; videos must
// match the expanded search terms by title and must not carry another
// category's exclusion terms. When context yields fewer than the video cap,
// the store is consulted for category-tagged and keyword-matched supplements.
type CurateUseCase struct {
	store ports.DocumentStore
	cfg   CurationConfig
}

func NewCurateUseCase(store ports.DocumentStore, cfg CurationConfig) *CurateUseCase {
	return &CurateUseCase{store: store, cfg: cfg.normalize()}
}

// CurateSources implements ports.SourceCurator. Supplementation failures are
// logged and skipped; partial citation lists are returned.
func (uc *CurateUseCase) CurateSources(
	ctx context.Context,
	contextDocs []domain.Document,
	category domain.Category,
	searchTerms []string,
	fallback bool,
) []domain.Metadata {
	if category == domain.CategoryGeneral || fallback || len(contextDocs) == 0 {
		return nil
	}

	excludeTerms := category.ExcludeTerms()
	seenURLs := make(map[string]struct{})
	var videos, others []domain.Metadata

	for _, doc := range contextDocs {
		meta := doc.Metadata
		if len(meta) == 0 {
			continue
		}
		url := meta.Source()
		if url == "" {
			continue
		}
		if _, seen := seenURLs[url]; seen {
			continue
		}

		if !domain.IsVideoURL(url) {
			seenURLs[url] = struct{}{}
			others = append(others, meta)
			continue
		}

		title := meta.Title()
		if title == "" || len(searchTerms) == 0 {
			continue
		}
		if titleMatchesAny(title, excludeTerms) {
			continue
		}
		if titleMatchesAny(title, searchTerms) {
			seenURLs[url] = struct{}{}
			videos = append(videos, meta)
		}
	}

	if len(videos) < uc.cfg.MaxVideoSources {
		videos = uc.supplementByCategory(ctx, videos, category, searchTerms, excludeTerms, seenURLs)
	}
	if len(videos) < uc.cfg.MaxVideoSources && len(searchTerms) > 0 {
		videos = uc.supplementByKeyword(ctx, videos, searchTerms, excludeTerms, seenURLs)
	}

	return append(others, videos...)
}

// supplementByCategory fills the video list from store items tagged with the
// resolved category, ranked by how many search terms their title matches.
// Zero-score candidates are dropped to avoid cross-topic contamination.
func (uc *CurateUseCase) supplementByCategory(
	ctx context.Context,
	videos []domain.Metadata,
	category domain.Category,
	searchTerms, excludeTerms []string,
	seenURLs map[string]struct{},
) []domain.Metadata {
	rows, err := uc.store.ListByCategory(ctx, uc.cfg.FAQTable, category, uc.cfg.CategoryScanSize)
	if err != nil {
		slog.Warn("category_video_supplement_failed", "category", category, "error", err)
		return videos
	}

	type scored struct {
		meta  domain.Metadata
		score int
	}
	candidates := make([]scored, 0, len(rows))
	for _, row := range rows {
		meta := row.Metadata
		if len(meta) == 0 {
			continue
		}
		url := meta.Source()
		title := meta.Title()
		if url == "" || title == "" || !domain.IsVideoURL(url) {
			continue
		}
		if _, seen := seenURLs[url]; seen {
			continue
		}
		if titleMatchesAny(title, excludeTerms) {
			continue
		}
		score := titleMatchCount(title, searchTerms)
		if score == 0 {
			continue
		}
		candidates = append(candidates, scored{meta: meta, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	for _, cand := range candidates {
		if len(videos) >= uc.cfg.MaxVideoSources {
			break
		}
		url := cand.meta.Source()
		if _, seen := seenURLs[url]; seen {
			continue
		}
		seenURLs[url] = struct{}{}
		videos = append(videos, cand.meta)
	}
	return videos
}

// supplementByKeyword tries a type-filtered scan of the primary table first,
// then an unfiltered scan of the curated table.
func (uc *CurateUseCase) supplementByKeyword(
	ctx context.Context,
	videos []domain.Metadata,
	searchTerms, excludeTerms []string,
	seenURLs map[string]struct{},
) []domain.Metadata {
	scopes := []struct {
		table  string
		filter domain.SearchFilter
	}{
		{table: uc.cfg.DocumentsTable, filter: domain.SearchFilter{Type: domain.SourceTypeYouTube}},
		{table: uc.cfg.FAQTable, filter: domain.SearchFilter{}},
	}

	for _, scope := range scopes {
		if len(videos) >= uc.cfg.MaxVideoSources {
			break
		}
		docs, err := uc.store.KeywordSearch(ctx, scope.table, searchTerms, scope.filter, uc.cfg.KeywordScanSize)
		if err != nil {
			slog.Warn("keyword_video_supplement_failed", "table", scope.table, "error", err)
			continue
		}
		for _, doc := range docs {
			if len(videos) >= uc.cfg.MaxVideoSources {
				break
			}
			meta := doc.Metadata
			if len(meta) == 0 {
				continue
			}
			url := meta.Source()
			title := meta.Title()
			if url == "" || title == "" || !domain.IsVideoURL(url) {
				continue
			}
			if _, seen := seenURLs[url]; seen {
				continue
			}
			if titleMatchesAny(title, excludeTerms) {
				continue
			}
			if !titleMatchesAny(title, searchTerms) {
				continue
			}
			seenURLs[url] = struct{}{}
			videos = append(videos, meta)
		}
	}
	return videos
}

// normalizeTitle makes matching case- and whitespace-insensitive.
func normalizeTitle(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

func titleMatchesAny(title string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	normalized := normalizeTitle(title)
	for _, term := range terms {
		if strings.Contains(normalized, normalizeTitle(term)) {
			return true
		}
	}
	return false
}

func titleMatchCount(title string, terms []string) int {
	normalized := normalizeTitle(title)
	count := 0
	for _, term := range terms {
		if strings.Contains(normalized, normalizeTitle(term)) {
			count++
		}
	}
	return count
}
