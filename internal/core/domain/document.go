package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
)

type SourceType string

const (
	SourceTypeYouTube SourceType = "youtube"
	SourceTypeBlog    SourceType = "blog"
	SourceTypeFAQ     SourceType = "faq"
	SourceTypeUnknown SourceType = "unknown"
)

// Metadata is the per-document payload stored alongside content.
// Keys seen in practice: source, title, type, category.
type Metadata map[string]string

func (m Metadata) Source() string { return m["source"] }
func (m Metadata) Title() string  { return m["title"] }

func (m Metadata) Type() SourceType {
	switch SourceType(m["type"]) {
	case SourceTypeYouTube, SourceTypeBlog, SourceTypeFAQ:
		return SourceType(m["type"])
	default:
		return SourceTypeUnknown
	}
}

func (m Metadata) Category() string { return m["category"] }

// Document is one retrieved unit. Similarity is in [0,1]: a cosine-derived
// score for vector hits, or a keyword-overlap ratio for keyword hits. The two
// scales are treated as comparable for ranking, which is an approximation.
type Document struct {
	ID         string   `json:"id,omitempty"`
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata,omitempty"`
	Similarity float64  `json:"similarity"`
}

// Key identifies a document for merge deduplication. Documents without a
// store identifier fall back to a content hash.
func (d Document) Key() string {
	if d.ID != "" {
		return d.ID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(d.Content))
	return fmt.Sprintf("content:%x", h.Sum64())
}

// SearchFilter narrows a keyword search by document metadata.
type SearchFilter struct {
	Type SourceType
}

func (f SearchFilter) IsZero() bool { return f.Type == "" }

// IsVideoURL reports whether a source URL points at a known video host.
func IsVideoURL(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}
