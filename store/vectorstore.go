// Package store persists doctrine once it has been embedded: one SQLite
// file per domain (vector + full-text index), plain JSON files for the
// doctrine corpus itself, and a YAML-backed book registry. The split
// keeps each domain's index physically separate from the
// domain-independent corpus.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// EmbeddedChunk is a doctrine chunk paired with its embedding, ready to be
// written into a domain's vector store.
type EmbeddedChunk struct {
	ChunkHash    string
	BookID       string
	ChapterIndex int
	Version      string
	Content      string
	Embedding    []float32
}

// RetrievalResult is a scored chunk returned from a domain's vector store.
type RetrievalResult struct {
	ChunkHash    string
	BookID       string
	ChapterIndex int
	Content      string
	Score        float64
}

// VectorStore is the per-domain vector + full-text index.
type VectorStore struct {
	db           *sql.DB
	embeddingDim int
}

// OpenVectorStore opens (creating if absent) the SQLite file backing a
// single domain's index.
func OpenVectorStore(path string, embeddingDim int) (*VectorStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating vector store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("store: opening vector store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging vector store %s: %w", path, err)
	}
	if _, err := db.Exec(chunkSchemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating vector store schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &VectorStore{db: db, embeddingDim: embeddingDim}, nil
}

func (s *VectorStore) Close() error { return s.db.Close() }

// Contains reports whether a chunk with the given stable hash has already
// been embedded, so ingestion can skip re-embedding unchanged doctrine.
func (s *VectorStore) Contains(ctx context.Context, chunkHash string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM chunks WHERE chunk_hash = ?", chunkHash).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of chunks in this domain's index.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Upsert writes a chunk and its embedding in one transaction. Safe to call
// for an already-present chunk_hash: the row and its vector are replaced.
func (s *VectorStore) Upsert(ctx context.Context, chunk EmbeddedChunk) error {
	if len(chunk.Embedding) != s.embeddingDim {
		return fmt.Errorf("store: embedding dimension %d does not match index dimension %d", len(chunk.Embedding), s.embeddingDim)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (chunk_hash, book_id, chapter_index, version, content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_hash) DO UPDATE SET
			book_id = excluded.book_id,
			chapter_index = excluded.chapter_index,
			version = excluded.version,
			content = excluded.content
	`, chunk.ChunkHash, chunk.BookID, chunk.ChapterIndex, chunk.Version, chunk.Content)
	if err != nil {
		return fmt.Errorf("store: upserting chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if id == 0 {
		if err := tx.QueryRowContext(ctx, "SELECT id FROM chunks WHERE chunk_hash = ?", chunk.ChunkHash).Scan(&id); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		id, serializeFloat32(chunk.Embedding)); err != nil {
		return fmt.Errorf("store: upserting embedding: %w", err)
	}

	return tx.Commit()
}

const (
	vectorWeight = 0.6
	ftsWeight    = 0.4
	rrfK         = 60
)

// Search fuses a vector KNN search and an FTS5 search with reciprocal
// rank fusion. Ties are broken deterministically on chunk_hash so
// identical inputs always rank the same result set in the same order.
func (s *VectorStore) Search(ctx context.Context, queryEmbedding []float32, queryText string, k int) ([]RetrievalResult, error) {
	vecResults, err := s.vectorSearch(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("store: vector search: %w", err)
	}
	var ftsResults []RetrievalResult
	if queryText != "" {
		ftsResults, err = s.ftsSearch(ctx, queryText, k)
		if err != nil {
			return nil, fmt.Errorf("store: fts search: %w", err)
		}
	}
	return fuseRRF(vecResults, ftsResults, k), nil
}

func (s *VectorStore) vectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance, c.chunk_hash, c.book_id, c.chapter_index, c.content
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var chunkID int64
		var distance float64
		if err := rows.Scan(&chunkID, &distance, &r.ChunkHash, &r.BookID, &r.ChapterIndex, &r.Content); err != nil {
			return nil, err
		}
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *VectorStore) ftsSearch(ctx context.Context, query string, limit int) ([]RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rank, c.chunk_hash, c.book_id, c.chapter_index, c.content
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var rank float64
		if err := rows.Scan(&rank, &r.ChunkHash, &r.BookID, &r.ChapterIndex, &r.Content); err != nil {
			return nil, err
		}
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// fuseRRF combines vector and FTS result sets by reciprocal rank fusion,
// then breaks ties deterministically by chunk_hash so repeated searches
// over unchanged data always return the same ordering.
func fuseRRF(vecResults, ftsResults []RetrievalResult, maxResults int) []RetrievalResult {
	type entry struct {
		result RetrievalResult
		score  float64
	}
	fused := make(map[string]*entry)

	for rank, r := range vecResults {
		e, ok := fused[r.ChunkHash]
		if !ok {
			e = &entry{result: r}
			fused[r.ChunkHash] = e
		}
		e.score += vectorWeight / float64(rrfK+rank+1)
	}
	for rank, r := range ftsResults {
		e, ok := fused[r.ChunkHash]
		if !ok {
			e = &entry{result: r}
			fused[r.ChunkHash] = e
		}
		e.score += ftsWeight / float64(rrfK+rank+1)
	}

	entries := make([]*entry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].result.ChunkHash < entries[j].result.ChunkHash
	})
	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	out := make([]RetrievalResult, len(entries))
	for i, e := range entries {
		out[i] = e.result
		out[i].Score = e.score
	}
	return out
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
