package domain

// HistoryTurn is one prior exchange in the conversation.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Query    string        `json:"query"`
	Category string        `json:"category"` // "auto", "cancer", "nerve" or "general"
	History  []HistoryTurn `json:"history"`
}

// GenerationRequest is everything the answer generator needs for one reply.
// Fallback selects the general-knowledge prompt used when no grounding
// documents passed the relevance floor.
type GenerationRequest struct {
	Query    string
	Context  []Document
	Category Category
	History  []HistoryTurn
	Fallback bool
}

// ChatOutcome summarizes a finished chat stream for the transport layer.
type ChatOutcome struct {
	Category Category   `json:"category"`
	Fallback bool       `json:"fallback"`
	Sources  []Metadata `json:"sources,omitempty"`
}

// IngestItem is a single crawled unit of clinic content awaiting indexing.
type IngestItem struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// IngestBatch groups items destined for one target table.
type IngestBatch struct {
	Table string       `json:"table"`
	Items []IngestItem `json:"items"`
}
