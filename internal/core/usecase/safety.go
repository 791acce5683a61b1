package usecase

import (
	"strings"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

// Requests for a diagnosis or prescription, matched with whitespace
// normalization so spacing variants are caught too.
var forbiddenQueryTerms = []string{
	"진단해줘", "처방해줘", "약 추천", "무슨 병이야",
	"진단해 줘", "처방해 줘", "약 좀 추천", "병명 알려",
	"무슨 병인지", "진단 내려", "약 처방",
}

const (
	maxHistoryTurns       = 10
	maxHistoryContentLen  = 2000
	defaultRelevanceFloor = 0.55
)

// CheckMedicalQuery reports whether the query asks for a diagnosis or
// prescription the bot must refuse.
func CheckMedicalQuery(query string) bool {
	normalized := strings.ReplaceAll(query, " ", "")
	for _, term := range forbiddenQueryTerms {
		if strings.Contains(normalized, strings.ReplaceAll(term, " ", "")) {
			return true
		}
	}
	return false
}

// CheckRelevance reports whether any retrieved document clears the
// similarity floor, i.e. whether the answer can be grounded.
func CheckRelevance(docs []domain.Document, floor float64) bool {
	if floor <= 0 {
		floor = defaultRelevanceFloor
	}
	for _, doc := range docs {
		if doc.Similarity >= floor {
			return true
		}
	}
	return false
}

// ValidateHistory drops malformed turns, whitelists roles, caps content
// length and keeps only the most recent turns.
func ValidateHistory(history []domain.HistoryTurn) []domain.HistoryTurn {
	validated := make([]domain.HistoryTurn, 0, len(history))
	for _, turn := range history {
		if turn.Content == "" {
			continue
		}
		role := turn.Role
		if role != "user" && role != "model" {
			role = "user"
		}
		content := turn.Content
		if runes := []rune(content); len(runes) > maxHistoryContentLen {
			content = string(runes[:maxHistoryContentLen])
		}
		validated = append(validated, domain.HistoryTurn{Role: role, Content: content})
	}
	if len(validated) > maxHistoryTurns {
		validated = validated[len(validated)-maxHistoryTurns:]
	}
	return validated
}
