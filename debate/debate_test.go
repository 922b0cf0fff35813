package debate

import (
	"testing"

	"github.com/counselengine/counsel/domain"
	"github.com/stretchr/testify/require"
)

func TestDetectConflictsIsPermutationInvariant(t *testing.T) {
	a := domain.MinisterPosition{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.9}
	b := domain.MinisterPosition{Minister: domain.MinisterTruth, Stance: domain.StanceStop}
	c := domain.MinisterPosition{Minister: domain.MinisterTiming, Stance: domain.StanceAvoid, Confidence: 0.9}

	forward := detectConflicts([]domain.MinisterPosition{a, b, c})
	reversed := detectConflicts([]domain.MinisterPosition{c, b, a})

	require.Equal(t, forward, reversed)
}

func TestDetectConflictsStanceNeedsBothConfident(t *testing.T) {
	confident := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.8},
		{Minister: domain.MinisterTiming, Stance: domain.StanceAvoid, Confidence: 0.7},
	}
	conflicts := detectConflicts(confident)
	require.Len(t, conflicts, 1)
	require.Equal(t, domain.ConflictStance, conflicts[0].Kind)
	require.Equal(t, domain.SeverityMedium, conflicts[0].Severity)

	tepid := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.8},
		{Minister: domain.MinisterTiming, Stance: domain.StanceAvoid, Confidence: 0.5},
	}
	require.Empty(t, detectConflicts(tepid))
}

func TestDetectConflictsStanceSeverityHighWhenBothVeryConfident(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.9},
		{Minister: domain.MinisterTiming, Stance: domain.StanceAvoid, Confidence: 0.95},
	}
	conflicts := detectConflicts(positions)
	require.Len(t, conflicts, 1)
	require.Equal(t, domain.SeverityHigh, conflicts[0].Severity)
}

func TestDetectConflictsVetoFromOptionality(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterOptionality, Stance: domain.StanceStop},
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.9},
	}
	conflicts := detectConflicts(positions)
	require.NotEmpty(t, conflicts)
	require.Equal(t, domain.ConflictVeto, conflicts[0].Kind)
	require.Equal(t, domain.SeverityHigh, conflicts[0].Severity)
}

func TestDetectConflictsIrreversibility(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterRisk, Stance: domain.StanceDelay, Justification: "the commitment is irreversible once signed"},
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.7},
	}
	conflicts := detectConflicts(positions)

	var found bool
	for _, c := range conflicts {
		if c.Kind == domain.ConflictIrreversibility {
			found = true
			require.Equal(t, domain.SeverityHigh, c.Severity)
		}
	}
	require.True(t, found)
}

func TestConveneFactualUncertaintyOutranksVeto(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterTruth, Stance: domain.StanceStop, Violations: []string{"claimed revenue figure contradicts chapter 4"}},
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.9},
	}
	conflicts := detectConflicts(positions)
	verdict := convene(positions, conflicts)

	require.Equal(t, domain.DecisionDelayPendingData, verdict.Decision)
	require.Equal(t, []string{"claimed revenue figure contradicts chapter 4"}, verdict.RequiredData)
}

func TestConveneVetoAborts(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterRisk, Stance: domain.StanceStop},
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.9},
	}
	conflicts := detectConflicts(positions)
	verdict := convene(positions, conflicts)
	require.Equal(t, domain.DecisionAbort, verdict.Decision)
}

func TestConveneStanceConflictAllowsWithUnionOfConstraints(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance, Confidence: 0.8, Constraints: []string{"cap spend at 10%"}},
		{Minister: domain.MinisterTiming, Stance: domain.StanceAvoid, Confidence: 0.8, Constraints: []string{"wait for the quarterly report"}},
	}
	conflicts := detectConflicts(positions)
	verdict := convene(positions, conflicts)

	require.Equal(t, domain.DecisionAllowWithConstraints, verdict.Decision)
	require.ElementsMatch(t, []string{"cap spend at 10%", "wait for the quarterly report"}, verdict.Constraints)
}

func TestFrameFinalVerdictEnforcesTribunal(t *testing.T) {
	stance, verdict := frameFinalVerdict(nil, &domain.TribunalVerdict{
		Decision:     domain.DecisionDelayPendingData,
		RequiredData: []string{"actual churn rate"},
	})
	require.Equal(t, domain.StanceDelay, stance)
	require.Contains(t, verdict, "actual churn rate")
}

func TestFrameFinalVerdictAdoptsTwoThirdsMajority(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance},
		{Minister: domain.MinisterTiming, Stance: domain.StanceAdvance},
		{Minister: domain.MinisterRisk, Stance: domain.StanceDelay},
	}
	stance, _ := frameFinalVerdict(positions, nil)
	require.Equal(t, domain.StanceAdvance, stance)
}

func TestFrameFinalVerdictConditionalWithoutMajority(t *testing.T) {
	positions := []domain.MinisterPosition{
		{Minister: domain.MinisterPower, Stance: domain.StanceAdvance},
		{Minister: domain.MinisterTiming, Stance: domain.StanceDelay},
		{Minister: domain.MinisterRisk, Stance: domain.StanceAvoid},
	}
	stance, _ := frameFinalVerdict(positions, nil)
	require.Equal(t, domain.StanceConditional, stance)
}
