package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(dim int, lead float32) []float32 {
	v := make([]float32, dim)
	v[0] = lead
	return v
}

func TestVectorStoreUpsertAndContains(t *testing.T) {
	ctx := context.Background()
	vs, err := OpenVectorStore(filepath.Join(t.TempDir(), "index.db"), 4)
	require.NoError(t, err)
	defer vs.Close()

	present, err := vs.Contains(ctx, "hash-a")
	require.NoError(t, err)
	require.False(t, present)

	err = vs.Upsert(ctx, EmbeddedChunk{
		ChunkHash:    "hash-a",
		BookID:       "book-1",
		ChapterIndex: 0,
		Version:      "1",
		Content:      "timing determines the outcome more than force",
		Embedding:    vec(4, 1.0),
	})
	require.NoError(t, err)

	present, err = vs.Contains(ctx, "hash-a")
	require.NoError(t, err)
	require.True(t, present)
}

func TestVectorStoreUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	vs, err := OpenVectorStore(filepath.Join(t.TempDir(), "index.db"), 4)
	require.NoError(t, err)
	defer vs.Close()

	err = vs.Upsert(ctx, EmbeddedChunk{
		ChunkHash: "hash-b",
		BookID:    "book-1",
		Content:   "content",
		Embedding: vec(3, 1.0),
	})
	require.Error(t, err)
}

func TestVectorStoreSearchIsDeterministic(t *testing.T) {
	ctx := context.Background()
	vs, err := OpenVectorStore(filepath.Join(t.TempDir(), "index.db"), 4)
	require.NoError(t, err)
	defer vs.Close()

	chunks := []EmbeddedChunk{
		{ChunkHash: "h1", BookID: "b", ChapterIndex: 0, Version: "1", Content: "decisive timing wins wars", Embedding: vec(4, 1.0)},
		{ChunkHash: "h2", BookID: "b", ChapterIndex: 1, Version: "1", Content: "patience and timing matter", Embedding: vec(4, 1.0)},
	}
	for _, c := range chunks {
		require.NoError(t, vs.Upsert(ctx, c))
	}

	first, err := vs.Search(ctx, vec(4, 1.0), "timing", 10)
	require.NoError(t, err)
	second, err := vs.Search(ctx, vec(4, 1.0), "timing", 10)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ChunkHash, second[i].ChunkHash)
	}
}

func TestFuseRRFIsStableAcrossRepeatedFusion(t *testing.T) {
	// Two results at consecutive ranks of one FTS list; fusing the same
	// input twice must yield the same ordering and scores.
	a := []RetrievalResult{{ChunkHash: "zeta", BookID: "b"}}
	bRes := []RetrievalResult{{ChunkHash: "alpha", BookID: "b"}}
	fused := fuseRRF(nil, append(append([]RetrievalResult{}, a...), bRes...), 10)
	require.Len(t, fused, 2)
	// both are rank 0/1 in the same list, so scores differ by construction;
	// assert only that repeated fusion of the same input is stable.
	fusedAgain := fuseRRF(nil, append(append([]RetrievalResult{}, a...), bRes...), 10)
	require.Equal(t, fused, fusedAgain)
}
