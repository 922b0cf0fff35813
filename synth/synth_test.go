package synth

import (
	"context"
	"testing"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/retrieval"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCapsConfidenceBelowTwoDoctrineIDs(t *testing.T) {
	pos := domain.MinisterPosition{
		Minister:    domain.MinisterRisk,
		Stance:      domain.StanceAdvance,
		DoctrineIDs: []string{"h1"},
		Confidence:  0.95,
	}
	known := map[string]bool{"h1": true}

	out := sanitize(pos, known)
	require.Equal(t, 1, out.UniqueDoctrineCount)
	require.LessOrEqual(t, out.Confidence, lowConfidenceCap)
}

func TestSanitizeRecomputesUniqueDoctrineCount(t *testing.T) {
	pos := domain.MinisterPosition{
		Minister:    domain.MinisterRisk,
		DoctrineIDs: []string{"h1", "h2", "h1", "hallucinated"},
		Confidence:  0.9,
	}
	known := map[string]bool{"h1": true, "h2": true}

	out := sanitize(pos, known)
	require.ElementsMatch(t, []string{"h1", "h2"}, out.DoctrineIDs)
	require.Equal(t, 2, out.UniqueDoctrineCount)
	require.Equal(t, 0.9, out.Confidence)
}

func TestSanitizeForcesStopWhenTruthReportsViolation(t *testing.T) {
	pos := domain.MinisterPosition{
		Minister:    domain.MinisterTruth,
		Stance:      domain.StanceAdvance,
		Violations:  []string{"contradicts chapter 3"},
		DoctrineIDs: []string{"h1", "h2"},
		Confidence:  0.9,
	}
	known := map[string]bool{"h1": true, "h2": true}

	out := sanitize(pos, known)
	require.Equal(t, domain.StanceStop, out.Stance)
	require.Contains(t, out.Constraints, "factual inconsistencies detected")
}

func TestSanitizeDropsViolationsFromNonTruthMinisters(t *testing.T) {
	pos := domain.MinisterPosition{
		Minister:    domain.MinisterRisk,
		Stance:      domain.StanceAdvance,
		Violations:  []string{"some concern"},
		DoctrineIDs: []string{"h1", "h2"},
		Confidence:  0.9,
	}
	known := map[string]bool{"h1": true, "h2": true}

	out := sanitize(pos, known)
	require.Empty(t, out.Violations)
	require.Equal(t, domain.StanceAdvance, out.Stance)
}

func TestSanitizeStripsNarrativePhrases(t *testing.T) {
	pos := domain.MinisterPosition{
		Minister:      domain.MinisterPower,
		Stance:        domain.StanceAdvance,
		Justification: "Respectfully, I believe the doctrine of leverage applies here.",
		DoctrineIDs:   []string{"h1", "h2"},
	}
	known := map[string]bool{"h1": true, "h2": true}

	out := sanitize(pos, known)
	require.NotContains(t, out.Justification, "I believe")
	require.NotContains(t, out.Justification, "Respectfully")
	require.Contains(t, out.Justification, "doctrine of leverage")
}

func TestSynthesizeShortCircuitsOnInsufficientKnowledge(t *testing.T) {
	e := New(nil) // a nil provider proves no LLM call happens

	pos, err := e.Synthesize(context.Background(), domain.MinisterTiming, "should we wait?",
		retrieval.RetrievedSet{Insufficient: true})
	require.NoError(t, err)
	require.Equal(t, domain.StanceNeedsData, pos.Stance)
	require.Equal(t, 0.0, pos.Confidence)
	require.Equal(t, "no doctrine available for this domain", pos.Justification)
}
