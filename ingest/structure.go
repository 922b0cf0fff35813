package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/store"
)

const structureSystemPrompt = `You are a book structuring assistant. Given the full text of a
book, split it into its chapters. Respond with a single JSON object: {"chapters": [{"chapter_index":
1, "chapter_title": "...", "chapter_text": "..."}, ...]}. chapter_index must be a dense sequence
starting at 1 with no gaps or repeats, in the order chapters appear. Every chapter must have a
non-empty title and non-empty text. Do not summarize or omit any chapter.`

// Structure runs phase-1: a single LLM call that splits full book text
// into a dense, ordered chapter list, validated before it is committed.
// On success the result is written to structure.json atomically; on
// failure nothing is written and the whole phase-1 output is rejected —
// there is no partial commit.
func (p *Pipeline) Structure(ctx context.Context, bookID, bookTitle, author, contentHash, sourceFilename, fullText string) (store.BookStructure, error) {
	resp, err := p.chatLLM.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: structureSystemPrompt},
			{Role: "user", Content: fullText},
		},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return store.BookStructure{}, fmt.Errorf("ingest: phase-1 chat request: %w", err)
	}

	raw, err := decodeAndValidate(structureSchema, []byte(resp.Content))
	if err != nil {
		return store.BookStructure{}, fmt.Errorf("%w: %v", ErrStructureInvalid, err)
	}

	var parsed struct {
		Chapters []store.ChapterSpec `json:"chapters"`
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return store.BookStructure{}, fmt.Errorf("ingest: re-marshaling phase-1 output: %w", err)
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return store.BookStructure{}, fmt.Errorf("ingest: decoding phase-1 output: %w", err)
	}

	if err := validateChapterIndices(parsed.Chapters); err != nil {
		return store.BookStructure{}, fmt.Errorf("%w: %v", ErrStructureInvalid, err)
	}

	structure := store.BookStructure{
		BookID:         bookID,
		BookTitle:      bookTitle,
		Author:         author,
		Version:        schemaVersion,
		ContentHash:    contentHash,
		SourceFilename: sourceFilename,
		Chapters:       parsed.Chapters,
	}
	if err := p.corpus.SaveStructure(structure); err != nil {
		return store.BookStructure{}, fmt.Errorf("ingest: committing structure: %w", err)
	}
	return structure, nil
}

// validateChapterIndices enforces the chapter-structure invariant: indices
// within a book form 1..N with no gaps, and no title or text is empty.
func validateChapterIndices(chapters []store.ChapterSpec) error {
	if len(chapters) == 0 {
		return fmt.Errorf("no chapters in structure output")
	}
	seen := make(map[int]bool, len(chapters))
	for _, c := range chapters {
		if c.ChapterTitle == "" {
			return fmt.Errorf("chapter %d has an empty title", c.ChapterIndex)
		}
		if c.ChapterText == "" {
			return fmt.Errorf("chapter %d has empty text", c.ChapterIndex)
		}
		if seen[c.ChapterIndex] {
			return fmt.Errorf("duplicate chapter_index %d", c.ChapterIndex)
		}
		seen[c.ChapterIndex] = true
	}
	for i := 1; i <= len(chapters); i++ {
		if !seen[i] {
			return fmt.Errorf("chapter_index sequence has a gap: missing %d", i)
		}
	}
	return nil
}
