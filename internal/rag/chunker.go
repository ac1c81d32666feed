// Package rag holds the pure text and vector algorithms of the retrieval
// pipeline: boundary-aware chunking and cosine scoring. Nothing here does I/O.
package rag

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default window size in bytes.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of bytes shared by neighbouring chunks.
const DefaultChunkOverlap = 200

// Chunker splits text into overlapping windows that prefer to end on a
// paragraph break, then a sentence end, then a space.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum window size.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker. An overlap that is not smaller than the
// chunk size is reduced to a quarter of the chunk size.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// ChunkSize returns the configured window size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into trimmed, non-empty chunks.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	spans := c.spans(text)
	chunks := collect(text, spans)
	if len(chunks) == 0 {
		chunks = collect(text, naiveSpans(text, c.chunkSize))
	}
	return chunks
}

// ChunkText splits text with the given window size and overlap.
func ChunkText(text string, maxSize, overlap int) []string {
	return NewChunker(WithChunkSize(maxSize), WithOverlap(overlap)).Chunk(text)
}

type span struct {
	start int
	end   int
}

// spans computes the window boundaries. When the iteration cap is hit the
// boundary search is abandoned and the whole text is sliced naively.
func (c *Chunker) spans(text string) []span {
	n := len(text)
	step := c.chunkSize - c.overlap
	maxIterations := ((n + step - 1) / step) * 2

	var out []span
	start := 0
	for iterations := 0; start < n; iterations++ {
		if iterations >= maxIterations {
			return naiveSpans(text, c.chunkSize)
		}

		end := start + c.chunkSize
		if end >= n {
			out = append(out, span{start: start, end: n})
			break
		}
		end = boundary(text, start, end)
		out = append(out, span{start: start, end: end})

		next := alignBack(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// boundary picks where a window starting at start and capped at limit
// should end.
func boundary(text string, start, limit int) int {
	window := text[start:limit]
	if p := strings.LastIndex(window, "\n\n"); p > 0 {
		return start + p
	}
	if p := strings.LastIndex(window, ". "); p > 0 {
		return start + p + 1
	}
	if p := strings.LastIndex(window, " "); p > 0 {
		return start + p
	}
	end := alignBack(text, limit)
	if end <= start {
		return limit
	}
	return end
}

func naiveSpans(text string, size int) []span {
	var out []span
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			out = append(out, span{start: start, end: len(text)})
			break
		}
		if aligned := alignBack(text, end); aligned > start {
			end = aligned
		}
		out = append(out, span{start: start, end: end})
		start = end
	}
	return out
}

// alignBack moves i back to the first byte of a UTF-8 sequence.
func alignBack(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func collect(text string, spans []span) []string {
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		if chunk := strings.TrimSpace(text[s.start:s.end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
