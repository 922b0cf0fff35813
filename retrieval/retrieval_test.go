package retrieval

import (
	"testing"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/store"
	"github.com/stretchr/testify/require"
)

func result(hash string, cat Category, score float64) Result {
	return Result{
		RetrievalResult: store.RetrievalResult{ChunkHash: hash, Score: score},
		Domain:          domain.DomainStrategy,
		Category:        cat,
	}
}

func TestCategorizeByDoctrineSection(t *testing.T) {
	require.Equal(t, CategoryCounter, categorize("Warnings:\n- never overextend supply lines"))
	require.Equal(t, CategorySupport, categorize("Principles:\n- seize the initiative"))
	require.Equal(t, CategorySupport, categorize("Rules:\n- always secure an exit"))
	require.Equal(t, CategoryNeutral, categorize("Claims:\n- most sieges fail in winter"))
}

func TestQuickModeKeepsOnlySupportDoctrine(t *testing.T) {
	in := []Result{
		result("a", CategorySupport, 1.0),
		result("b", CategoryCounter, 0.9),
		result("c", CategoryNeutral, 0.8),
	}
	out := applyModeWeighting(in, domain.ModeQuick)
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].ChunkHash)
	require.Equal(t, CategorySupport, out[0].Category)
}

func TestNormalModeHalvesCounterWeight(t *testing.T) {
	in := []Result{
		result("a", CategorySupport, 1.0),
		result("b", CategoryCounter, 0.9),
	}
	out := applyModeWeighting(in, domain.ModeNormal)
	require.Len(t, out, 2)
	require.InDelta(t, 0.45, out[1].Score, 1e-9)
	require.InDelta(t, 1.0, out[0].Score, 1e-9)
}

func TestWarModeKeepsCounterAtFullWeight(t *testing.T) {
	in := []Result{result("b", CategoryCounter, 0.9)}
	out := applyModeWeighting(in, domain.ModeWar)
	require.InDelta(t, 0.9, out[0].Score, 1e-9)
}

func TestPartitionPreservesOrderWithinCategory(t *testing.T) {
	in := []Result{
		result("a", CategorySupport, 1.0),
		result("b", CategoryCounter, 0.9),
		result("c", CategorySupport, 0.8),
		result("d", CategoryNeutral, 0.7),
	}
	support, counter, neutral := Partition(in)
	require.Len(t, support, 2)
	require.Equal(t, "a", support[0].ChunkHash)
	require.Equal(t, "c", support[1].ChunkHash)
	require.Len(t, counter, 1)
	require.Len(t, neutral, 1)
}
