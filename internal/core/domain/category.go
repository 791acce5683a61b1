package domain

import "strings"

// Category is the topical routing bucket for a conversation.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryCancer  Category = "cancer"
	CategoryNerve   Category = "nerve"
)

// CategoryAuto asks the server to classify the query itself.
const CategoryAuto = "auto"

// ParseCategory maps free-form input onto the closed category set.
// Anything unknown resolves to the general bucket.
func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryCancer:
		return CategoryCancer
	case CategoryNerve:
		return CategoryNerve
	default:
		return CategoryGeneral
	}
}

func (c Category) DisplayName() string {
	switch c {
	case CategoryCancer:
		return "암 보조 치료 (Cancer Support Treatment)"
	case CategoryNerve:
		return "자율신경 치료 (Autonomic Nerve Treatment)"
	default:
		return "일반 상담"
	}
}

// categoryExcludeTerms keeps a video tagged for one clinical topic from
// surfacing under the other topic's conversation on incidental keyword
// overlap.
var categoryExcludeTerms = map[Category][]string{
	CategoryCancer: {"자율신경", "자율신경실조", "교감신경", "부교감신경", "자율신경장애"},
	CategoryNerve:  {"고주파", "온열치료", "온코써미아", "하이퍼써미아", "항암", "화학요법", "항암치료", "항암제"},
}

// ExcludeTerms returns the curation exclusion list for the category.
// The general bucket has none.
func (c Category) ExcludeTerms() []string {
	return categoryExcludeTerms[c]
}
