package usecase

import (
	"sort"
	"strings"
)

// Korean question/filler tokens that carry no retrieval signal.
var keywordStopwords = map[string]struct{}{
	"있나요":   {},
	"있을까요":  {},
	"있는지":   {},
	"없나요":   {},
	"인가요":   {},
	"일까요":   {},
	"하나요":   {},
	"할까요":   {},
	"되나요":   {},
	"될까요":   {},
	"무엇인가요": {},
	"뭔가요":   {},
	"무엇":    {},
	"어떤":    {},
	"어떻게":   {},
	"어디서":   {},
	"언제":    {},
	"얼마나":   {},
	"알려주세요": {},
	"주세요":   {},
	"해주세요":  {},
	"궁금해요":  {},
	"궁금합니다": {},
	"그리고":   {},
	"혹시":    {},
	"대해":    {},
	"대해서":   {},
	"대한":    {},
	"관련":    {},
	"경우":    {},
	"저는":    {},
	"제가":    {},
}

// Particle suffixes tried during normalization, longest candidate first
// within each group so "에서" wins over "에" and "으로" over "로".
var particleSuffixes = []string{
	"이라는", "라는", "이란", "란",
	"에서는", "에서", "에게", "한테",
	"으로는", "으로", "로는", "로",
	"까지", "부터", "처럼", "보다",
	"은", "는", "이", "가", "을", "를", "와", "과", "의", "도", "만", "에",
}

var sentencePunctuation = strings.NewReplacer(
	"?", " ", "!", " ", ".", " ", ",", " ",
	"~", " ", "…", " ", "(", " ", ")", " ",
	"\"", " ", "'", " ", ":", " ", ";", " ",
)

// ExtractKeywords turns free-form query text into a deduplicated,
// order-preserving list of search terms of length >= 2.
// For non-empty input with at least one token the result is never empty:
// when filtering removes everything, the up-to-3 longest original tokens
// are returned instead.
func ExtractKeywords(query string) []string {
	tokens := strings.Fields(sentencePunctuation.Replace(query))
	if len(tokens) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
	}

	for _, token := range tokens {
		if len([]rune(token)) < 2 {
			continue
		}
		if _, stop := keywordStopwords[token]; stop {
			continue
		}
		if stripped, ok := stripParticle(token); ok {
			add(stripped)
			continue
		}
		add(token)
	}

	if len(keywords) == 0 {
		return longestTokens(tokens, 3)
	}
	return keywords
}

// stripParticle removes the first matching particle suffix, provided the
// remainder is at least two runes and not itself a stopword.
func stripParticle(token string) (string, bool) {
	runes := []rune(token)
	for _, suffix := range particleSuffixes {
		if !strings.HasSuffix(token, suffix) {
			continue
		}
		remainder := string(runes[:len(runes)-len([]rune(suffix))])
		if len([]rune(remainder)) < 2 {
			continue
		}
		if _, stop := keywordStopwords[remainder]; stop {
			continue
		}
		return remainder, true
	}
	return "", false
}

func longestTokens(tokens []string, max int) []string {
	unique := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return len([]rune(unique[i])) > len([]rune(unique[j]))
	})
	if len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

// Domain synonym table. Appended synonyms keep the input order and are
// deduplicated against terms already present.
var keywordSynonyms = map[string][]string{
	"고주파":     {"고주파온열치료", "온열치료", "하이퍼써미아", "온코써미아"},
	"온열치료":    {"고주파온열치료", "고주파", "하이퍼써미아", "온코써미아"},
	"고주파온열치료": {"온열치료", "고주파", "하이퍼써미아", "온코써미아"},
	"하이퍼써미아":  {"고주파온열치료", "온열치료"},
	"온코써미아":   {"고주파온열치료", "온열치료"},
	"항암":      {"항암치료", "화학요법", "항암제"},
	"항암치료":    {"항암", "화학요법"},
	"화학요법":    {"항암치료", "항암"},
	"자율신경":    {"자율신경실조", "자율신경장애", "교감신경", "부교감신경"},
	"자율신경실조":  {"자율신경", "자율신경장애"},
	"자율신경실조증": {"자율신경", "자율신경실조"},
	"면역":      {"면역력", "면역치료"},
	"면역치료":    {"면역", "면역력"},
	"수액":      {"수액치료", "영양수액"},
	"수액치료":    {"수액", "영양수액"},
}

// ExpandSynonyms appends domain synonyms for each keyword, preserving order
// and skipping terms already present.
func ExpandSynonyms(keywords []string) []string {
	out := make([]string, 0, len(keywords)*2)
	seen := make(map[string]struct{}, len(keywords)*2)
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, kw := range keywords {
		add(kw)
	}
	for _, kw := range keywords {
		for _, syn := range keywordSynonyms[kw] {
			add(syn)
		}
	}
	return out
}

const compoundSubwordLen = 3

// cancerSuffixTerms are injected when a keyword names a specific cancer
// ("폐암", "유방암", ...) so compound matching also reaches treatment content.
var cancerSuffixTerms = []string{"암", "항암", "항암치료"}

// ExpandCompounds adds all length-3 contiguous sub-words of keywords with at
// least four runes, catching matches embedded in longer compound words.
// Keywords ending with the disease suffix "암" additionally pull in the fixed
// cancer base terms.
func ExpandCompounds(keywords []string) []string {
	out := make([]string, 0, len(keywords)*3)
	seen := make(map[string]struct{}, len(keywords)*3)
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, kw := range keywords {
		add(kw)
	}
	for _, kw := range keywords {
		runes := []rune(kw)
		if len(runes) >= compoundSubwordLen+1 {
			for i := 0; i+compoundSubwordLen <= len(runes); i++ {
				add(string(runes[i : i+compoundSubwordLen]))
			}
		}
		if len(runes) >= 2 && strings.HasSuffix(kw, "암") {
			for _, term := range cancerSuffixTerms {
				add(term)
			}
		}
	}
	return out
}
