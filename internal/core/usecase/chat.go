package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
)

type ChatConfig struct {
	TopK           int
	RelevanceFloor float64
	EnableFallback bool
}

func (c ChatConfig) normalize() ChatConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.RelevanceFloor <= 0 {
		out.RelevanceFloor = defaultRelevanceFloor
	}
	return out
}

// ChatUseCase orchestrates one chat exchange: it overlaps classification and
// retrieval, streams the generated answer through emit, and assembles the
// citation list afterwards.
type ChatUseCase struct {
	retriever  ports.DocumentRetriever
	classifier ports.CategoryClassifier
	generator  ports.AnswerGenerator
	curator    ports.SourceCurator
	cfg        ChatConfig
}

func NewChatUseCase(
	retriever ports.DocumentRetriever,
	classifier ports.CategoryClassifier,
	generator ports.AnswerGenerator,
	curator ports.SourceCurator,
	cfg ChatConfig,
) *ChatUseCase {
	return &ChatUseCase{
		retriever:  retriever,
		classifier: classifier,
		generator:  generator,
		curator:    curator,
		cfg:        cfg.normalize(),
	}
}

// Chat implements ports.ChatService.
func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest, emit func(chunk string) error) (*domain.ChatOutcome, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("query is empty"))
	}
	history := ValidateHistory(req.History)

	if CheckMedicalQuery(query) {
		if err := emit(domain.DiagnosisWarning); err != nil {
			return nil, err
		}
		return &domain.ChatOutcome{Category: domain.ParseCategory(req.Category), Fallback: true}, nil
	}

	// Classification and retrieval are independent; run them together and
	// join before generation.
	var (
		docs       []domain.Document
		classified = domain.CategoryGeneral
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		retrieved, err := uc.retriever.Retrieve(ctx, query, uc.cfg.TopK)
		if err != nil {
			slog.Warn("retrieval_failed", "error", err)
			return
		}
		docs = retrieved
	}()
	go func() {
		defer wg.Done()
		category, err := uc.classifier.Classify(ctx, query)
		if err != nil {
			slog.Warn("classification_failed", "error", err)
			return
		}
		classified = category
	}()
	wg.Wait()

	category := classified
	if req.Category != "" && req.Category != domain.CategoryAuto {
		category = domain.ParseCategory(req.Category)
	}

	fallback := !CheckRelevance(docs, uc.cfg.RelevanceFloor)
	outcome := &domain.ChatOutcome{Category: category, Fallback: fallback}

	if fallback && !uc.cfg.EnableFallback {
		if err := emit(domain.NoInfoMessage); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	var answer strings.Builder
	genReq := domain.GenerationRequest{
		Query:    query,
		Context:  docs,
		Category: category,
		History:  history,
		Fallback: fallback,
	}
	if err := uc.generator.StreamAnswer(ctx, genReq, func(chunk string) error {
		answer.WriteString(chunk)
		return emit(chunk)
	}); err != nil {
		slog.Error("answer_generation_failed", "error", err)
		if answer.Len() > 0 {
			// Partial answer already reached the user; stop without
			// citations rather than surfacing the error mid-stream.
			return outcome, nil
		}
		if emitErr := emit(domain.NoInfoMessage); emitErr != nil {
			return nil, emitErr
		}
		outcome.Fallback = true
		return outcome, nil
	}

	if !fallback && !hasDisclaimer(answer.String()) {
		if err := emit("\n\n---\n**" + domain.MedicalDisclaimer + "**"); err != nil {
			return nil, err
		}
	}

	searchTerms := ExpandCompounds(ExpandSynonyms(ExtractKeywords(query)))
	outcome.Sources = uc.curator.CurateSources(ctx, docs, category, searchTerms, outcome.Fallback)
	return outcome, nil
}

func hasDisclaimer(answer string) bool {
	return strings.Contains(answer, "본 상담 내용은 참고용이며") ||
		strings.Contains(answer, domain.MedicalDisclaimer)
}
