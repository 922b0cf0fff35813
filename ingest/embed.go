package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/store"
)

// embedBatchSize is the batching window for embedding calls: large
// enough to amortize request overhead, small enough that one oversized
// text in a batch doesn't force refetching everything.
const embedBatchSize = 32

// embedAndStore chunks one DoctrineRecord, skips any chunk already
// recorded as done (by the progress ledger or the permanent vector
// store), then embeds the rest with up to EmbedConcurrency batches in
// flight at once. Embedding calls run concurrently; vector-store
// inserts are serialized behind a single-writer mutex. A chunk only
// counts as done once both the store insert and the progress ledger
// append have succeeded.
func (p *Pipeline) embedAndStore(ctx context.Context, bookID string, record store.DoctrineRecord) (embedded, skipped int, err error) {
	d, derr := domain.ParseDomain(record.PrimaryDomain())
	if derr != nil {
		return 0, 0, fmt.Errorf("ingest: chapter %d has no valid primary domain: %w", record.ChapterIndex, derr)
	}
	vs, err := p.manager.Get(d)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest: opening vector store for domain %s: %w", d, err)
	}

	chapter := store.ChapterRecord{
		BookID:       bookID,
		Version:      schemaVersion,
		ChapterIndex: record.ChapterIndex,
		Content:      record.Text(),
		Domains:      record.Domains,
	}
	chunks := p.chunkr.Chunk(chapter)

	var pending []store.EmbeddedChunk
	for _, c := range chunks {
		if p.ledger.Contains(c.ChunkHash) {
			skipped++
			continue
		}
		exists, cerr := vs.Contains(ctx, c.ChunkHash)
		if cerr != nil {
			return embedded, skipped, fmt.Errorf("ingest: checking existing chunk %s: %w", c.ChunkHash, cerr)
		}
		if exists {
			skipped++
			if aerr := p.ledger.Append(c.ChunkHash); aerr != nil {
				return embedded, skipped, aerr
			}
			continue
		}
		pending = append(pending, c)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)

	// writeMu serializes vector-store inserts (and the shared counter):
	// embedding requests fan out, the store stays single-writer.
	var writeMu sync.Mutex

	for i := 0; i < len(pending); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		g.Go(func() error {
			n, berr := p.embedBatch(gctx, vs, batch, &writeMu)
			writeMu.Lock()
			embedded += n
			writeMu.Unlock()
			return berr
		})
	}
	if err := g.Wait(); err != nil {
		return embedded, skipped, err
	}

	return embedded, skipped, nil
}

// embedBatch embeds one batch of chunks, then writes them under the
// single-writer lock. A batch-level embedding failure falls back to
// embedding each text individually so a single oversized or malformed
// text doesn't lose the whole batch.
func (p *Pipeline) embedBatch(ctx context.Context, vs *store.VectorStore, batch []store.EmbeddedChunk, writeMu *sync.Mutex) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	embeddings, err := p.embedLLM.Embed(ctx, texts)
	if err != nil {
		slog.Warn("ingest: embedding batch failed, falling back to individual", "batch_size", len(batch), "error", err)
		return p.embedIndividually(ctx, vs, batch, writeMu)
	}
	if len(embeddings) != len(batch) {
		slog.Warn("ingest: embedding batch returned mismatched count, falling back to individual",
			"expected", len(batch), "got", len(embeddings))
		return p.embedIndividually(ctx, vs, batch, writeMu)
	}

	for i, emb := range embeddings {
		batch[i].Embedding = emb
	}
	return p.storeBatch(ctx, vs, batch, writeMu)
}

// embedIndividually embeds one chunk at a time within the calling
// worker's concurrency slot, storing each success as it lands.
func (p *Pipeline) embedIndividually(ctx context.Context, vs *store.VectorStore, batch []store.EmbeddedChunk, writeMu *sync.Mutex) (int, error) {
	var stored, failed int
	for i := range batch {
		single, err := p.embedLLM.Embed(ctx, []string{batch[i].Content})
		if err != nil || len(single) == 0 {
			slog.Warn("ingest: embedding single chunk failed", "chunk_hash", batch[i].ChunkHash, "error", err)
			failed++
			continue
		}
		batch[i].Embedding = single[0]
		n, serr := p.storeBatch(ctx, vs, batch[i:i+1], writeMu)
		if serr != nil {
			return stored + n, serr
		}
		if n == 0 {
			failed++
			continue
		}
		stored += n
	}
	if failed == len(batch) && len(batch) > 0 {
		return stored, fmt.Errorf("%w: all %d chunks in batch failed", ErrEmbeddingFailed, len(batch))
	}
	return stored, nil
}

// storeBatch writes already-embedded chunks into the vector store and
// progress ledger under the single-writer lock. A chunk whose insert
// fails is logged and skipped; a progress-ledger failure aborts, since
// resume correctness depends on the ledger never silently missing a
// completed insert.
func (p *Pipeline) storeBatch(ctx context.Context, vs *store.VectorStore, batch []store.EmbeddedChunk, writeMu *sync.Mutex) (int, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	var stored int
	for i := range batch {
		if err := vs.Upsert(ctx, batch[i]); err != nil {
			slog.Warn("ingest: storing embedding failed", "chunk_hash", batch[i].ChunkHash, "error", err)
			continue
		}
		if err := p.ledger.Append(batch[i].ChunkHash); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}
