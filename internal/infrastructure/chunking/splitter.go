// Package chunking splits crawled text into indexable chunks. The splitter
// prefers paragraph and line boundaries and falls back to word and rune
// boundaries only when a piece still exceeds the chunk size.
package chunking

import "strings"

var separators = []string{"\n\n", "\n", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split sizes chunks in runes, not bytes, so Korean text gets the same
// budget as ASCII.
func (s *Splitter) Split(text string) []string {
	pieces := s.split(text, 0)

	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func (s *Splitter) split(text string, depth int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}
	if depth >= len(separators) {
		return s.windowed(runes)
	}

	parts := strings.Split(text, separators[depth])
	return s.mergeParts(parts, separators[depth], depth)
}

// mergeParts packs adjacent parts back together up to the chunk size,
// recursing into any single part that alone exceeds it.
func (s *Splitter) mergeParts(parts []string, sep string, depth int) []string {
	var out []string
	var current strings.Builder
	currentLen := 0
	sepLen := len([]rune(sep))

	flush := func() {
		if currentLen > 0 {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, part := range parts {
		partLen := len([]rune(part))
		if partLen > s.ChunkSize {
			flush()
			out = append(out, s.split(part, depth+1)...)
			continue
		}
		if currentLen > 0 && currentLen+sepLen+partLen > s.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(part)
		currentLen += partLen
	}
	flush()
	return out
}

// windowed is the last resort for text with no usable separators: fixed
// rune windows advanced by chunk size minus overlap.
func (s *Splitter) windowed(runes []rune) []string {
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
