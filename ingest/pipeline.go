package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/counselengine/counsel/store"
)

// Ingest runs phase-1 structuring (skipped if structure.json already
// exists for bookID and forceRestructure is false) followed by
// phase-2 extraction, chunking, and embedding for every chapter. Each
// chapter's phase-2 call is independent and runs under a bounded
// worker pool (Phase2Concurrency); a failed chapter is logged and
// skipped rather than aborting the whole run, then retried next run.
func (p *Pipeline) Ingest(ctx context.Context, bookID, bookTitle, author, contentHash, sourceFilename, fullText string, forceRestructure bool) (Result, error) {
	start := time.Now()
	result := Result{BookID: bookID}

	if forceRestructure || !p.corpus.HasStructure(bookID) {
		slog.Info("ingest: structuring book", "book_id", bookID)
		structure, err := p.Structure(ctx, bookID, bookTitle, author, contentHash, sourceFilename, fullText)
		if err != nil {
			return result, fmt.Errorf("ingest: phase-1 structuring %s: %w", bookID, err)
		}
		result.ChaptersStructured = len(structure.Chapters)
	} else {
		slog.Info("ingest: structure already present, skipping phase-1", "book_id", bookID)
	}

	structure, err := p.corpus.LoadStructure(bookID)
	if err != nil {
		return result, fmt.Errorf("ingest: loading structure for %s: %w", bookID, err)
	}

	return p.runPhase2AndEmbed(ctx, bookID, structure, start)
}

// Resume re-scans books/<book_id> for chapters whose NN.json is
// missing and retries only those. Doctrine records are immutable once
// written, so resumption is driven by what is present on disk rather
// than a content-hash diff.
func (p *Pipeline) Resume(ctx context.Context, bookID string) (Result, error) {
	start := time.Now()
	result := Result{BookID: bookID}

	structure, err := p.corpus.LoadStructure(bookID)
	if err != nil {
		return result, fmt.Errorf("ingest: %s has no committed structure to resume from: %w", bookID, err)
	}

	present, err := p.corpus.PresentChapters(bookID)
	if err != nil {
		return result, fmt.Errorf("ingest: listing present chapters for %s: %w", bookID, err)
	}
	presentSet := make(map[int]bool, len(present))
	for _, idx := range present {
		presentSet[idx] = true
	}

	missing := make([]store.ChapterSpec, 0)
	for _, ch := range structure.Chapters {
		if !presentSet[ch.ChapterIndex] {
			missing = append(missing, ch)
		}
	}

	if len(missing) == 0 {
		slog.Info("ingest: resume found nothing missing", "book_id", bookID)
	}

	return p.extractAndEmbed(ctx, bookID, structure, missing, start, result)
}

func (p *Pipeline) runPhase2AndEmbed(ctx context.Context, bookID string, structure store.BookStructure, start time.Time) (Result, error) {
	return p.extractAndEmbed(ctx, bookID, structure, structure.Chapters, start, Result{BookID: bookID, ChaptersStructured: len(structure.Chapters)})
}

// extractAndEmbed runs phase-2 extraction for the given chapters (a
// subset for Resume, the full set for a fresh Ingest) under a bounded
// worker pool, then chunks and embeds every successfully extracted
// chapter.
func (p *Pipeline) extractAndEmbed(ctx context.Context, bookID string, structure store.BookStructure, chapters []store.ChapterSpec, start time.Time, result Result) (Result, error) {
	validIndices := make(map[int]bool, len(structure.Chapters))
	for _, ch := range structure.Chapters {
		validIndices[ch.ChapterIndex] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Phase2Concurrency)

	var mu sync.Mutex
	var extracted []store.DoctrineRecord
	var failed []int

	for _, ch := range chapters {
		ch := ch
		g.Go(func() error {
			record, err := p.ExtractChapter(gctx, bookID, ch, validIndices)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("ingest: chapter extraction failed, will retry on next run",
					"book_id", bookID, "chapter_index", ch.ChapterIndex, "error", err)
				failed = append(failed, ch.ChapterIndex)
				return nil // a single chapter's failure does not abort the run
			}
			extracted = append(extracted, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("ingest: phase-2 extraction: %w", err)
	}

	sort.Slice(extracted, func(i, j int) bool { return extracted[i].ChapterIndex < extracted[j].ChapterIndex })
	sort.Ints(failed)
	result.ChaptersExtracted = len(extracted)
	result.ChaptersFailed = failed

	total := len(chapters)
	var completed, skipped int
	for _, record := range extracted {
		n, s, err := p.embedAndStore(ctx, bookID, record)
		if err != nil {
			return result, fmt.Errorf("ingest: embedding chapter %d: %w", record.ChapterIndex, err)
		}
		completed += n
		skipped += s
		result.Metrics = computeMetrics(total, len(extracted), len(failed), time.Since(start))
	}
	result.ChunksEmbedded = completed
	result.ChunksSkipped = skipped

	if len(failed) > 0 {
		return result, fmt.Errorf("ingest: %d chapters unresolved for %s: %v", len(failed), bookID, failed)
	}
	return result, nil
}
