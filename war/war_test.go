package war

import (
	"testing"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/store"
	"github.com/stretchr/testify/require"
)

func TestConstraintGateBlocksIllegalAction(t *testing.T) {
	r := ConstraintGate("plan an assassination of the rival leader")
	require.True(t, r.Blocked())
	require.Equal(t, "blocked", r.Feasibility)
	require.Equal(t, "assassinat", r.MatchedSignal)
	require.Equal(t, "halt", r.RecommendedPosture)
}

func TestConstraintGateBlocksIndividualTargeting(t *testing.T) {
	r := ConstraintGate("target individual politicians and frame them")
	require.True(t, r.Blocked())
	require.Equal(t, "blocked", r.Feasibility)
	require.Equal(t, "target individual", r.MatchedSignal)
	require.Equal(t, "halt", r.RecommendedPosture)
}

func TestConstraintGateAllowsOrdinaryGoal(t *testing.T) {
	r := ConstraintGate("secure the eastern supply line before winter")
	require.False(t, r.Blocked())
	require.Equal(t, "viable", r.Feasibility)
	require.Empty(t, r.MatchedSignal)
	require.Empty(t, r.RecommendedPosture)
}

func TestSelectCouncilAlwaysIncludesTruthAndRisk(t *testing.T) {
	sel := SelectCouncil([]domain.Domain{domain.DomainTiming})
	require.Contains(t, sel.Selected, domain.MinisterTruth)
	require.Contains(t, sel.Selected, domain.MinisterRisk)
	require.True(t, sel.GuardrailsPresent)
}

func TestSelectCouncilSizeIsBounded(t *testing.T) {
	sel := SelectCouncil([]domain.Domain{
		domain.DomainConflict, domain.DomainDeception, domain.DomainPsychology,
		domain.DomainTiming, domain.DomainDiplomacy, domain.DomainPower,
	})
	require.GreaterOrEqual(t, len(sel.Selected), councilMin)
	require.LessOrEqual(t, len(sel.Selected), councilMax)
}

func TestSelectCouncilExcludesDeprioritizedDiplomacy(t *testing.T) {
	sel := SelectCouncil([]domain.Domain{domain.DomainDiplomacy})
	require.Contains(t, sel.Selected, domain.MinisterTruth)
	require.Contains(t, sel.Selected, domain.MinisterRisk)
	require.NotContains(t, sel.Selected, domain.MinisterDiplomacy)
	require.GreaterOrEqual(t, len(sel.Selected), councilMin)
	require.LessOrEqual(t, len(sel.Selected), councilMax)
}

func TestSelectCouncilSeatsConditionalMinisterOnMatchingTag(t *testing.T) {
	sel := SelectCouncil([]domain.Domain{domain.DomainLaw})
	require.Contains(t, sel.Selected, domain.MinisterLegitimacy)
	require.GreaterOrEqual(t, sel.SoftCount, 1)
}

func TestSelectCouncilIsDeterministic(t *testing.T) {
	domains := []domain.Domain{domain.DomainTiming, domain.DomainConflict}
	first := SelectCouncil(domains)
	second := SelectCouncil(domains)
	require.Equal(t, first, second)
}

func TestSelectBooksBoundedAndDeterministic(t *testing.T) {
	books := []store.BookMetadata{
		{BookID: "war-classic", Domains: []string{"conflict", "power"}, Tones: []string{"ruthless"}, Priority: store.BookPriority{War: 1.0}},
		{BookID: "diplomacy-guide", Domains: []string{"diplomacy"}, Tones: []string{"diplomatic"}, Priority: store.BookPriority{War: 1.0}},
		{BookID: "timing-primer", Domains: []string{"timing"}, Tones: []string{"decisive"}, Priority: store.BookPriority{War: 1.0}},
		{BookID: "psych-ops", Domains: []string{"psychology", "deception"}, Tones: []string{"aggressive"}, Priority: store.BookPriority{War: 0.8}},
		{BookID: "neutral-manual", Domains: []string{"resources"}, Tones: []string{"patient"}, Priority: store.BookPriority{War: 1.0}},
		{BookID: "restraint-doctrine", Domains: []string{"morality", "adaptation"}, Tones: []string{"principled", "cautious"}, Priority: store.BookPriority{War: 1.0}},
	}

	first := SelectBooks(books)
	second := SelectBooks(books)
	require.Equal(t, first, second)
	require.GreaterOrEqual(t, len(first), booksMin)
	require.LessOrEqual(t, len(first), booksMax)
	require.Equal(t, "war-classic", first[0].BookID)

	for _, b := range first {
		require.NotEqual(t, "restraint-doctrine", b.BookID)
	}
}

func TestSelectBooksExcludesBooksBelowThreshold(t *testing.T) {
	books := []store.BookMetadata{
		{BookID: "only-diplomacy", Domains: []string{"diplomacy"}, Tones: []string{"diplomatic"}, Priority: store.BookPriority{War: 1.0}},
	}
	require.Empty(t, SelectBooks(books))
}

func TestFilterSpeechExemptsTruth(t *testing.T) {
	text := "I cannot help with this because this is unethical."
	result := FilterSpeech(domain.MinisterTruth, text)
	require.False(t, result.WasFiltered)
	require.Equal(t, text, result.Filtered)
}

func TestFilterSpeechRemovesRefusalPhrases(t *testing.T) {
	text := "I cannot help with this because this is unethical and wrong"
	result := FilterSpeech(domain.MinisterPsychology, text)
	require.True(t, result.WasFiltered)
	require.GreaterOrEqual(t, result.PhrasesRemoved, 2)
	require.Contains(t, result.Filtered, refusalMarker)
	require.NotContains(t, result.Filtered, "I cannot help with this")
	require.Equal(t, text, result.Original)
}

func TestFilterSpeechStripsHedgesAndAddsMandatorySections(t *testing.T) {
	text := "It could be argued that perhaps we should proceed."
	result := FilterSpeech(domain.MinisterPsychology, text)
	require.NotContains(t, result.Filtered, "it could be argued")
	require.NotContains(t, result.Filtered, "perhaps")
	require.Contains(t, result.Filtered, "[COSTS]")
	require.Contains(t, result.Filtered, "[RISKS]")
	require.Contains(t, result.Filtered, "[EXITS]")
}

func TestFilterSpeechRiskKeepsHedges(t *testing.T) {
	text := "Perhaps the downside outweighs the gain; exit costs and risk are high."
	result := FilterSpeech(domain.MinisterRisk, text)
	require.Contains(t, result.Filtered, "Perhaps")
	require.Zero(t, result.PatternsSuppressed)
}
