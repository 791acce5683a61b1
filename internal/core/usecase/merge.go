package usecase

import (
	"sort"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

// scoredBranch is one labeled stream of candidates entering a merge.
// Branch order is the merge priority order.
type scoredBranch struct {
	name string
	docs []domain.Document
}

// mergeByScore folds labeled result streams into one deduplicated list.
// A document key first seen in an earlier branch is only replaced by a later
// occurrence with strictly higher similarity, so higher-priority branches
// keep precedence under score ties. First-seen order is preserved, which
// makes a later stable sort break score ties by priority.
func mergeByScore(branches []scoredBranch) []domain.Document {
	merged := make([]domain.Document, 0, 16)
	position := make(map[string]int, 16)

	for _, branch := range branches {
		for _, doc := range branch.docs {
			key := doc.Key()
			if at, ok := position[key]; ok {
				if doc.Similarity > merged[at].Similarity {
					merged[at] = doc
				}
				continue
			}
			position[key] = len(merged)
			merged = append(merged, doc)
		}
	}
	return merged
}

// rankBySimilarity orders documents by similarity descending; merge order is
// kept among equal scores.
func rankBySimilarity(docs []domain.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Similarity > docs[j].Similarity
	})
}
