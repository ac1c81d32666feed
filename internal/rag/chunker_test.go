package rag

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", 100, 10))
	assert.Empty(t, ChunkText(" \n\t  \n", 100, 10))
}

func TestChunkTextShortInputIsTrimmed(t *testing.T) {
	chunks := ChunkText("  hello world \n", 100, 10)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkTextParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30)

	chunks := ChunkText(text, 40, 5)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 30), chunks[0])
	assert.Equal(t, strings.Repeat("a", 5)+"\n\n"+strings.Repeat("b", 30), chunks[1])
}

func TestChunkTextSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence here. Third one."

	chunks := ChunkText(text, 30, 0)

	assert.Equal(t, []string{"First sentence here.", "Second sentence here.", "Third one."}, chunks)
}

func TestChunkTextSpaceBoundary(t *testing.T) {
	chunks := ChunkText("alpha beta gamma delta", 12, 0)
	assert.Equal(t, []string{"alpha beta", "gamma delta"}, chunks)
}

func TestChunkTextHardCut(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 25), 10, 0)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
}

func TestChunkTextOverlap(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 25), 10, 3)

	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 10)
	assert.Len(t, chunks[2], 10)
	assert.Len(t, chunks[3], 4)
}

func TestChunkTextDropsBlankWindows(t *testing.T) {
	text := strings.Repeat("a", 9) + strings.Repeat(" ", 20) + "bbb"

	chunks := ChunkText(text, 10, 0)

	assert.Equal(t, []string{strings.Repeat("a", 9), "bbb"}, chunks)
}

func TestChunkTextMultibyteStaysValid(t *testing.T) {
	text := strings.Repeat("é", 600)

	chunks := ChunkText(text, 101, 10)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, len(c), 101)
	}
}

func TestChunkerSpansCoverInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	words := []string{"lorem", "ipsum", "dolor.", "sit", "amet,", "\n\n", "consectetur", "adipiscing"}

	for round := 0; round < 50; round++ {
		var b strings.Builder
		target := 500 + rng.Intn(5000)
		for b.Len() < target {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		text := b.String()
		size := 50 + rng.Intn(300)
		overlap := rng.Intn(size / 2)
		c := NewChunker(WithChunkSize(size), WithOverlap(overlap))

		spans := c.spans(text)

		require.NotEmpty(t, spans)
		assert.Equal(t, 0, spans[0].start)
		assert.Equal(t, len(text), spans[len(spans)-1].end)
		for i, s := range spans {
			assert.LessOrEqual(t, s.end-s.start, size)
			if i == 0 {
				continue
			}
			prev := spans[i-1]
			assert.Greater(t, s.start, prev.start, "cursor must advance")
			assert.LessOrEqual(t, s.start, prev.end, "no gap between windows")
		}
	}
}

func TestChunkerTerminatesWithHeavyOverlap(t *testing.T) {
	text := strings.Repeat("a ", 5000)
	c := NewChunker(WithChunkSize(100), WithOverlap(99))

	spans := c.spans(text)

	maxSteps := 2 * len(text)
	assert.LessOrEqual(t, len(spans), maxSteps)
	assert.Equal(t, len(text), spans[len(spans)-1].end)
	for _, chunk := range c.Chunk(text) {
		assert.LessOrEqual(t, len(chunk), 100)
	}
}

func TestNewChunkerNormalizesOverlap(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 100, c.ChunkSize())
	assert.Equal(t, 25, c.Overlap())

	d := NewChunker()
	assert.Equal(t, DefaultChunkSize, d.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, d.Overlap())
}
