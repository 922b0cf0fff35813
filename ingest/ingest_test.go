package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/store"
)

// fakeProvider is a deterministic stand-in for an LLM provider: Chat
// returns canned JSON keyed by whether the prompt looks like a
// structuring or extraction request, and Embed returns a fixed-length
// zero vector per text so the embedding dimension check in VectorStore
// always succeeds.
type fakeProvider struct {
	structureJSON string
	doctrineJSON  map[int]string // by chapter_index
	embedDim      int
}

func (f *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	user := req.Messages[len(req.Messages)-1].Content
	for idx, body := range f.doctrineJSON {
		prefix := fmt.Sprintf("Chapter %d:", idx)
		if len(user) >= len(prefix) && user[:len(prefix)] == prefix {
			return &llm.ChatResponse{Content: body}, nil
		}
	}
	return &llm.ChatResponse{Content: f.structureJSON}, nil
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.embedDim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func newTestPipeline(t *testing.T, chat llm.Provider) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	corpus := store.NewCorpus(dir)
	manager := store.NewManager(dir, 4)
	t.Cleanup(func() { manager.Close() })

	embed := &fakeProvider{embedDim: 4}
	p, err := New(Config{EmbedConcurrency: 2, Phase2Concurrency: 2}, corpus, manager, chat, embed, filepath.Join(dir, "progress.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestValidateChapterIndicesRejectsGaps(t *testing.T) {
	err := validateChapterIndices([]store.ChapterSpec{
		{ChapterIndex: 1, ChapterTitle: "One", ChapterText: "text"},
		{ChapterIndex: 3, ChapterTitle: "Three", ChapterText: "text"},
	})
	require.Error(t, err)
}

func TestValidateChapterIndicesAcceptsDenseSequence(t *testing.T) {
	err := validateChapterIndices([]store.ChapterSpec{
		{ChapterIndex: 1, ChapterTitle: "One", ChapterText: "text"},
		{ChapterIndex: 2, ChapterTitle: "Two", ChapterText: "text"},
	})
	require.NoError(t, err)
}

func TestValidateChapterIndicesRejectsEmptyTitle(t *testing.T) {
	err := validateChapterIndices([]store.ChapterSpec{
		{ChapterIndex: 1, ChapterTitle: "", ChapterText: "text"},
	})
	require.Error(t, err)
}

func TestValidateDoctrineRejectsUnknownDomain(t *testing.T) {
	d := store.DoctrineRecord{Domains: []string{"nonsense"}}
	err := validateDoctrine(d, map[int]bool{1: true})
	require.Error(t, err)
}

func TestValidateDoctrineRejectsDanglingCrossReference(t *testing.T) {
	d := store.DoctrineRecord{Domains: []string{"power"}, CrossReferences: []int{99}}
	err := validateDoctrine(d, map[int]bool{1: true, 2: true})
	require.Error(t, err)
}

func TestValidateDoctrineAcceptsWellFormedRecord(t *testing.T) {
	d := store.DoctrineRecord{
		Domains:         []string{"power", "conflict"},
		Principles:      []string{"seize the initiative"},
		CrossReferences: []int{1},
	}
	err := validateDoctrine(d, map[int]bool{1: true, 2: true})
	require.NoError(t, err)
}

func TestProgressLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.jsonl")

	l1, err := openProgressLedger(path)
	require.NoError(t, err)
	require.False(t, l1.Contains("abc"))
	require.NoError(t, l1.Append("abc"))
	require.True(t, l1.Contains("abc"))
	require.NoError(t, l1.Close())

	l2, err := openProgressLedger(path)
	require.NoError(t, err)
	require.True(t, l2.Contains("abc"))
	require.NoError(t, l2.Close())
}

func TestIngestEndToEndSingleChapter(t *testing.T) {
	structureJSON := `{"chapters": [{"chapter_index": 1, "chapter_title": "On Leverage", "chapter_text": "Leverage is everything."}]}`
	doctrineJSON := `{"domains": ["power"], "principles": ["seize leverage early", "never negotiate from weakness"],
		"rules": [], "claims": [], "warnings": [], "cross_references": []}`

	chat := &fakeProvider{
		structureJSON: structureJSON,
		doctrineJSON:  map[int]string{1: doctrineJSON},
	}
	p := newTestPipeline(t, chat)

	result, err := p.Ingest(context.Background(), "book-1", "On Leverage", "Author", "hash1", "book1.txt", "full raw book text", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.ChaptersStructured)
	require.Equal(t, 1, result.ChaptersExtracted)
	require.Empty(t, result.ChaptersFailed)
	require.Equal(t, 1, result.ChunksEmbedded)
	require.Equal(t, 0, result.ChunksSkipped)
}

func TestIngestIsIdempotent(t *testing.T) {
	structureJSON := `{"chapters": [{"chapter_index": 1, "chapter_title": "On Leverage", "chapter_text": "Leverage is everything."}]}`
	doctrineJSON := `{"domains": ["power"], "principles": ["seize leverage early"],
		"rules": [], "claims": [], "warnings": [], "cross_references": []}`

	chat := &fakeProvider{
		structureJSON: structureJSON,
		doctrineJSON:  map[int]string{1: doctrineJSON},
	}
	p := newTestPipeline(t, chat)
	ctx := context.Background()

	first, err := p.Ingest(ctx, "book-1", "On Leverage", "Author", "hash1", "book1.txt", "full raw book text", false)
	require.NoError(t, err)
	require.Equal(t, 1, first.ChunksEmbedded)

	second, err := p.Ingest(ctx, "book-1", "On Leverage", "Author", "hash1", "book1.txt", "full raw book text", false)
	require.NoError(t, err)
	require.Equal(t, 0, second.ChunksEmbedded)
	require.Equal(t, 1, second.ChunksSkipped)
}

func TestResumeOnlyRetriesMissingChapters(t *testing.T) {
	structureJSON := `{"chapters": [
		{"chapter_index": 1, "chapter_title": "One", "chapter_text": "First chapter content."},
		{"chapter_index": 2, "chapter_title": "Two", "chapter_text": "Second chapter content."}
	]}`
	doctrine1 := `{"domains": ["power"], "principles": ["p1"], "rules": [], "claims": [], "warnings": [], "cross_references": []}`

	chat := &fakeProvider{
		structureJSON: structureJSON,
		doctrineJSON:  map[int]string{1: doctrine1},
	}
	p := newTestPipeline(t, chat)
	ctx := context.Background()

	result, err := p.Ingest(ctx, "book-2", "Two Chapters", "Author", "hash2", "book2.txt", "raw text", false)
	require.Error(t, err) // chapter 2 has no fake doctrine response configured, so it fails
	require.Equal(t, 1, result.ChaptersExtracted)
	require.Equal(t, []int{2}, result.ChaptersFailed)

	doctrine2 := `{"domains": ["conflict"], "principles": ["p2"], "rules": [], "claims": [], "warnings": [], "cross_references": [1]}`
	chat.doctrineJSON[2] = doctrine2

	resumed, err := p.Resume(ctx, "book-2")
	require.NoError(t, err)
	require.Equal(t, 1, resumed.ChaptersExtracted)
	require.Empty(t, resumed.ChaptersFailed)
}
