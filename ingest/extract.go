package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/store"
)

const extractSystemPrompt = `You are a doctrine extraction assistant. Given one chapter's title
and text, extract its strategic doctrine. Respond with a single JSON object: {"domains":
["..."], "principles": ["..."], "rules": ["..."], "claims": ["..."], "warnings": ["..."],
"cross_references": [chapter_index, ...]}. domains must be 1 to 3 values chosen only from:
strategy, power, conflict, deception, psychology, leadership, organization, intelligence,
timing, risk, resources, law, morality, diplomacy, adaptation — list the most salient domain
first. cross_references lists other chapter indices this chapter explicitly builds on or
refers back to; leave it empty if there are none. Every string in every list must be
non-empty and self-contained (no "see above").`

// ExtractChapter runs phase-2 for a single chapter: an LLM call
// constrained to the 15-domain enum, validated against both the JSON
// schema and the semantic rules, before being committed to
// NN.json. validChapterIndices is the full set of chapter indices in
// this book, used to check cross_references resolve within the book.
func (p *Pipeline) ExtractChapter(ctx context.Context, bookID string, chapter store.ChapterSpec, validChapterIndices map[int]bool) (store.DoctrineRecord, error) {
	prompt := fmt.Sprintf("Chapter %d: %s\n\n%s", chapter.ChapterIndex, chapter.ChapterTitle, chapter.ChapterText)
	resp, err := p.chatLLM.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: extractSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("ingest: phase-2 chat request for chapter %d: %w", chapter.ChapterIndex, err)
	}

	raw, err := decodeAndValidate(doctrineSchema, []byte(resp.Content))
	if err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("%w: chapter %d: %v", ErrDoctrineInvalid, chapter.ChapterIndex, err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("ingest: re-marshaling phase-2 output: %w", err)
	}
	var record store.DoctrineRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("ingest: decoding phase-2 output: %w", err)
	}
	record.ChapterIndex = chapter.ChapterIndex
	record.ChapterTitle = chapter.ChapterTitle

	if err := validateDoctrine(record, validChapterIndices); err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("%w: chapter %d: %v", ErrDoctrineInvalid, chapter.ChapterIndex, err)
	}

	if err := p.corpus.SaveDoctrine(bookID, record); err != nil {
		return store.DoctrineRecord{}, fmt.Errorf("ingest: committing doctrine for chapter %d: %w", chapter.ChapterIndex, err)
	}
	return record, nil
}

// validateDoctrine enforces the DoctrineRecord invariants: every domain
// is in the closed enum, every cross-reference resolves to an existing
// chapter in the same book, and every list field holds only non-empty
// strings.
func validateDoctrine(d store.DoctrineRecord, validChapterIndices map[int]bool) error {
	if len(d.Domains) == 0 || len(d.Domains) > 3 {
		return fmt.Errorf("domains must list 1 to 3 values, got %d", len(d.Domains))
	}
	for _, raw := range d.Domains {
		if _, err := domain.ParseDomain(strings.ToLower(strings.TrimSpace(raw))); err != nil {
			return fmt.Errorf("unknown domain %q", raw)
		}
	}
	for _, ref := range d.CrossReferences {
		if !validChapterIndices[ref] {
			return fmt.Errorf("cross_reference %d does not resolve to a chapter in this book", ref)
		}
	}
	for _, list := range [][]string{d.Principles, d.Rules, d.Claims, d.Warnings} {
		for _, s := range list {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("list field contains an empty string")
			}
		}
	}
	return nil
}
