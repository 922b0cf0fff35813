// Package ingest turns raw book text into embedded doctrine chunks,
// resumably, idempotently, and deterministically: a phase-1 LLM call
// structures the book into chapters, a phase-2 LLM call extracts each
// chapter's doctrine, a pure chunker hashes and splits the extracted
// text, and a bounded-concurrency embedding stage writes the result into
// the per-domain vector store. Every commit point is atomic and every
// step is safe to re-run.
package ingest

import (
	"runtime"

	"github.com/counselengine/counsel/chunker"
	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/store"
)

// schemaVersion is the ingestion schema version folded into every
// chunk's stable hash. Bumping it is the only supported way to force
// re-embedding of otherwise-unchanged doctrine text.
const schemaVersion = "v1"

// Config controls pipeline concurrency and chunking behavior.
type Config struct {
	// EmbedConcurrency bounds concurrent embedding calls (default 2).
	EmbedConcurrency int
	// Phase2Concurrency bounds concurrent per-chapter extraction calls
	// (default min(8, NumCPU)).
	Phase2Concurrency int
	// MaxChunkTokens and ChunkOverlap configure the chunker.
	MaxChunkTokens int
	ChunkOverlap   int
}

func (c Config) withDefaults() Config {
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 2
	}
	if c.Phase2Concurrency <= 0 {
		c.Phase2Concurrency = min(8, runtime.NumCPU())
	}
	if c.MaxChunkTokens <= 0 {
		c.MaxChunkTokens = 512
	}
	return c
}

// Pipeline runs the two-phase ingestion pipeline for a single process
// lifetime. It owns no long-lived LLM or store connections beyond what
// is handed to it — the corpus, vector-store manager, and providers are
// all supplied by the caller (typically the top-level Engine).
type Pipeline struct {
	cfg     Config
	corpus  *store.Corpus
	manager *store.Manager
	chatLLM llm.Provider
	embedLLM llm.Provider
	chunkr  *chunker.Chunker
	ledger  *progressLedger
}

// New constructs a Pipeline. progressLedgerPath is the append-only
// JSON-lines file recording completed chunk hashes, kept distinct from
// the permanent VectorStore record; its existing records are loaded on
// open, so a resumed run can skip work the crashed run already finished.
func New(cfg Config, corpus *store.Corpus, manager *store.Manager, chatLLM, embedLLM llm.Provider, progressLedgerPath string) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	led, err := openProgressLedger(progressLedgerPath)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:     cfg,
		corpus:  corpus,
		manager: manager,
		chatLLM: chatLLM,
		embedLLM: embedLLM,
		chunkr:  chunker.New(chunker.Config{MaxTokens: cfg.MaxChunkTokens, Overlap: cfg.ChunkOverlap}),
		ledger:  led,
	}, nil
}

// Close releases the progress ledger's file handle.
func (p *Pipeline) Close() error {
	return p.ledger.Close()
}

// Result summarizes one Ingest or Resume run.
type Result struct {
	BookID             string   `json:"book_id"`
	ChaptersStructured int      `json:"chapters_structured"`
	ChaptersExtracted  int      `json:"chapters_extracted"`
	ChaptersFailed     []int    `json:"chapters_failed,omitempty"`
	ChunksEmbedded     int      `json:"chunks_embedded"`
	ChunksSkipped      int      `json:"chunks_skipped_duplicate"`
	Metrics            Metrics  `json:"metrics"`
}
