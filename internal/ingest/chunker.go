package ingest

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits text into overlapping pieces by recursive separator
// descent: paragraph breaks first, then lines, sentences, words, and
// finally raw runes for pathological inputs.
type Chunker struct {
	size    int // target chunk size in runes
	overlap int // runes carried over between adjacent chunks
}

// NewChunker creates a chunker. Non-positive size falls back to 512;
// negative overlap is clamped to zero.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split returns text as overlapping chunks of roughly c.size runes.
// Whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.size {
		return []string{text}
	}
	return c.split(text, 0)
}

// split descends the separator list: segments that fit are packed into
// chunks at this level, oversized segments are re-split at the next level.
func (c *Chunker) split(text string, depth int) []string {
	sep := separators[depth]
	if sep == "" {
		return splitByRunes(text, c.size)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.split(text, depth+1)
	}

	var chunks []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, c.pack(pending, sep)...)
			pending = nil
		}
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if utf8.RuneCountInString(part) > c.size {
			flush()
			chunks = append(chunks, c.split(part, depth+1)...)
		} else {
			pending = append(pending, part)
		}
	}
	flush()
	return chunks
}

// pack merges segments that individually fit into chunks of up to c.size
// runes, carrying the overlap tail between adjacent chunks.
func (c *Chunker) pack(segments []string, sep string) []string {
	var chunks []string
	var current strings.Builder
	for _, seg := range segments {
		candidate := current.String()
		if candidate != "" {
			candidate += sep
		}
		candidate += seg

		if utf8.RuneCountInString(candidate) > c.size && current.Len() > 0 {
			chunks = append(chunks, current.String())

			tail := runeTail(current.String(), c.overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(sep)
			}
			current.WriteString(seg)
		} else {
			if current.Len() > 0 {
				current.WriteString(sep)
			}
			current.WriteString(seg)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// runeTail returns the last n runes of s.
func runeTail(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

// splitByRunes cuts text into pieces of n runes each.
func splitByRunes(text string, n int) []string {
	runes := []rune(text)
	var segments []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[i:end]))
	}
	return segments
}
