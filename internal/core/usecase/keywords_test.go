package usecase

import (
	"testing"
	"unicode/utf8"
)

func TestExtractKeywordsStripsParticlesAndStopwords(t *testing.T) {
	keywords := ExtractKeywords("고주파온열치료가 효과가 있나요?")
	if len(keywords) == 0 {
		t.Fatalf("expected keywords, got none")
	}

	found := false
	for _, kw := range keywords {
		if kw == "고주파온열치료" {
			found = true
		}
		if kw == "있나요" {
			t.Fatalf("stopword token leaked into keywords: %v", keywords)
		}
	}
	if !found {
		t.Fatalf("expected particle-stripped 고주파온열치료, got %v", keywords)
	}
}

func TestExtractKeywordsUniqueAndMinLength(t *testing.T) {
	keywords := ExtractKeywords("면역 면역 치료는 치료가 a 면역?")
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		if utf8.RuneCountInString(kw) < 2 {
			t.Fatalf("keyword shorter than 2 runes: %q", kw)
		}
		if _, dup := seen[kw]; dup {
			t.Fatalf("duplicate keyword %q in %v", kw, keywords)
		}
		seen[kw] = struct{}{}
	}
}

func TestExtractKeywordsFallbackToLongestTokens(t *testing.T) {
	keywords := ExtractKeywords("있나요 인가요 무엇 어떻게")
	if len(keywords) == 0 {
		t.Fatalf("expected fallback tokens for non-empty input")
	}
	if len(keywords) > 3 {
		t.Fatalf("fallback must cap at 3 tokens, got %d", len(keywords))
	}
	if utf8.RuneCountInString(keywords[0]) < utf8.RuneCountInString(keywords[len(keywords)-1]) {
		t.Fatalf("fallback tokens must be longest-first: %v", keywords)
	}
}

func TestExtractKeywordsEmptyInput(t *testing.T) {
	if got := ExtractKeywords("   "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestExpandSynonymsPreservesOrderAndDedupes(t *testing.T) {
	expanded := ExpandSynonyms([]string{"고주파", "온열치료"})
	if expanded[0] != "고주파" || expanded[1] != "온열치료" {
		t.Fatalf("original keywords must lead the expansion: %v", expanded)
	}

	seen := make(map[string]struct{})
	for _, term := range expanded {
		if _, dup := seen[term]; dup {
			t.Fatalf("duplicate term %q in %v", term, expanded)
		}
		seen[term] = struct{}{}
	}
	if _, ok := seen["하이퍼써미아"]; !ok {
		t.Fatalf("expected synonym 하이퍼써미아 in %v", expanded)
	}
}

func TestExpandCompoundsSubwords(t *testing.T) {
	expanded := ExpandCompounds([]string{"온열치료"})

	want := map[string]bool{"온열치": false, "열치료": false}
	for _, term := range expanded {
		if _, ok := want[term]; ok {
			want[term] = true
		}
	}
	for term, ok := range want {
		if !ok {
			t.Fatalf("missing sub-word %q in %v", term, expanded)
		}
	}
}

func TestExpandCompoundsShortKeywordNotSplit(t *testing.T) {
	expanded := ExpandCompounds([]string{"면역"})
	if len(expanded) != 1 || expanded[0] != "면역" {
		t.Fatalf("3-rune-or-shorter keywords must pass through unchanged, got %v", expanded)
	}
}

func TestExpandCompoundsCancerSuffix(t *testing.T) {
	expanded := ExpandCompounds([]string{"유방암"})
	found := make(map[string]bool)
	for _, term := range expanded {
		found[term] = true
	}
	for _, term := range []string{"암", "항암", "항암치료"} {
		if !found[term] {
			t.Fatalf("expected injected base term %q in %v", term, expanded)
		}
	}
}
