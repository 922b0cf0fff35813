package chunker

import (
	"strings"
	"testing"

	"github.com/counselengine/counsel/store"
)

func TestChunkSingleFragmentWhenShort(t *testing.T) {
	c := New(Config{MaxTokens: 512, Overlap: 64})
	ch := store.ChapterRecord{
		BookID:       "book-1",
		Version:      "1",
		ChapterIndex: 0,
		Content:      "Timing determines the outcome more than force.",
	}

	chunks := c.Chunk(ch)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ChunkHash == "" {
		t.Error("ChunkHash should not be empty")
	}
	if chunks[0].BookID != "book-1" || chunks[0].ChapterIndex != 0 {
		t.Errorf("unexpected provenance: %+v", chunks[0])
	}
}

func TestChunkSplitsLongContent(t *testing.T) {
	c := New(Config{MaxTokens: 10, Overlap: 2})
	paragraphs := make([]string, 20)
	for i := range paragraphs {
		paragraphs[i] = "This paragraph discusses timing and patience in long campaigns."
	}
	ch := store.ChapterRecord{
		BookID:  "book-1",
		Version: "1",
		Content: strings.Join(paragraphs, "\n\n"),
	}

	chunks := c.Chunk(ch)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long content, got %d", len(chunks))
	}
}

func TestStableHashIsDeterministicAndSensitiveToText(t *testing.T) {
	h1 := StableHash("book-1", "1", "hold the line")
	h2 := StableHash("book-1", "1", "hold the line")
	if h1 != h2 {
		t.Error("StableHash should be deterministic for identical input")
	}

	h3 := StableHash("book-1", "1", "hold the line.")
	if h1 == h3 {
		t.Error("StableHash should differ when the text differs")
	}

	h4 := StableHash("book-1", "2", "hold the line")
	if h1 == h4 {
		t.Error("StableHash should differ when the version differs")
	}
}
