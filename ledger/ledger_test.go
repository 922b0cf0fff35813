package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/counselengine/counsel/domain"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecordOutcome(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.AppendEvent(ctx, domain.DecisionEvent{
		Mode:            domain.ModeNormal,
		Domain:          domain.DomainTiming,
		Stakes:          "medium",
		MinistersCalled: []domain.MinisterId{domain.MinisterTruth, domain.MinisterRisk},
		VerdictSummary:  "2 of 3 ministers hold ADVANCE",
		Posture:         "counsel",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)

	err = s.RecordOutcome(ctx, domain.Outcome{
		EventID: ev.ID,
		Result:  domain.OutcomeSuccess,
		Benefit: 0.5,
		Lessons: []string{"timing doctrine held"},
	})
	require.NoError(t, err)

	err = s.RecordOutcome(ctx, domain.Outcome{EventID: ev.ID, Result: domain.OutcomePartial})
	require.ErrorIs(t, err, ErrOutcomeExists)

	err = s.RecordOutcome(ctx, domain.Outcome{EventID: "does-not-exist", Result: domain.OutcomeFailure})
	require.ErrorIs(t, err, ErrEventNotFound)

	outcomes, err := s.ListOutcomes(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, []string{"timing doctrine held"}, outcomes[0].Lessons)
}

func TestEventsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.AppendEvent(ctx, domain.DecisionEvent{
		Mode: domain.ModeNormal, Domain: domain.DomainRisk, VerdictSummary: "advance",
	})
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, "UPDATE events SET verdict = 'STOP' WHERE id = ?", ev.ID)
	require.Error(t, err)

	_, err = s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", ev.ID)
	require.Error(t, err)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "advance", events[0].VerdictSummary)
}

func TestEventRoundTripPreservesFields(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	followed := false
	ev, err := s.AppendEvent(ctx, domain.DecisionEvent{
		Mode:                  domain.ModeWar,
		Domain:                domain.DomainConflict,
		Stakes:                "high",
		EmotionalLoad:         0.8,
		Urgency:               0.9,
		MinistersCalled:       []domain.MinisterId{domain.MinisterTruth, domain.MinisterRisk, domain.MinisterConflict},
		VerdictSummary:        "abort: a veto stands",
		Posture:               "escalation",
		IllusionsDetected:     []string{"sunk cost"},
		ContradictionsFound:   2,
		SovereignAction:       "proceeded anyway",
		ActionFollowedCounsel: &followed,
		OverrideReason:        "felt the window was closing",
	})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, domain.ModeWar, got.Mode)
	require.Equal(t, domain.DomainConflict, got.Domain)
	require.Equal(t, 0.8, got.EmotionalLoad)
	require.Equal(t, []string{"sunk cost"}, got.IllusionsDetected)
	require.Equal(t, 2, got.ContradictionsFound)
	require.NotNil(t, got.ActionFollowedCounsel)
	require.False(t, *got.ActionFollowedCounsel)
	require.False(t, got.FollowedCounsel())
}

func warEvent(i int, urgency float64, followed *bool) domain.DecisionEvent {
	return domain.DecisionEvent{
		ID:                    fmt.Sprintf("ev-%02d", i),
		Timestamp:             time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
		Mode:                  domain.ModeWar,
		Domain:                domain.DomainConflict,
		Urgency:               urgency,
		Posture:               "escalation",
		ActionFollowedCounsel: followed,
	}
}

func TestDetectPatternsRepetitionLoop(t *testing.T) {
	var events []domain.DecisionEvent
	for i := 0; i < 2; i++ {
		events = append(events, domain.DecisionEvent{
			ID:                fmt.Sprintf("ev-%d", i),
			Timestamp:         time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
			Mode:              domain.ModeNormal,
			Domain:            domain.DomainTiming,
			IllusionsDetected: []string{"sunk cost"},
		})
	}

	patterns := DetectPatterns(events, nil)
	require.Len(t, patterns, 1)
	require.Equal(t, domain.PatternRepetitionLoop, patterns[0].Kind)
	require.Equal(t, 2, patterns[0].Frequency)
	require.Equal(t, domain.DomainTiming, patterns[0].Domain)
}

func TestDetectPatternsWarEscalationBias(t *testing.T) {
	var events []domain.DecisionEvent
	var outcomes []domain.Outcome
	for i := 0; i < 3; i++ {
		ev := warEvent(i, 0.5, nil)
		events = append(events, ev)
		outcomes = append(outcomes, domain.Outcome{
			EventID: ev.ID,
			Result:  domain.OutcomeFailure,
			Damage:  0.7,
		})
	}

	patterns := DetectPatterns(events, outcomes)

	var bias *domain.Pattern
	for i := range patterns {
		if patterns[i].Kind == domain.PatternWarEscalationBias {
			bias = &patterns[i]
		}
	}
	require.NotNil(t, bias)
	require.Equal(t, 3, bias.Frequency)
	require.Equal(t, domain.OutcomeFailure, bias.LastOutcome)
}

func TestDetectPatternsWarFalseUrgencyLoop(t *testing.T) {
	var events []domain.DecisionEvent
	var outcomes []domain.Outcome
	for i := 0; i < 2; i++ {
		ev := warEvent(i, 0.9, nil)
		events = append(events, ev)
		outcomes = append(outcomes, domain.Outcome{EventID: ev.ID, Result: domain.OutcomeFailure})
	}

	patterns := DetectPatterns(events, outcomes)

	var found bool
	for _, p := range patterns {
		if p.Kind == domain.PatternWarFalseUrgencyLoop {
			found = true
			require.Equal(t, 2, p.Frequency)
		}
	}
	require.True(t, found)
}

func TestDetectPatternsWarRepeatedOverrides(t *testing.T) {
	ignored := false
	events := []domain.DecisionEvent{
		warEvent(0, 0.5, &ignored),
		warEvent(1, 0.5, &ignored),
	}

	patterns := DetectPatterns(events, nil)

	kinds := map[domain.PatternKind]bool{}
	for _, p := range patterns {
		kinds[p.Kind] = true
	}
	require.True(t, kinds[domain.PatternWarRepeatedOverrides])
	require.True(t, kinds[domain.PatternOverrideLoop])
}

func TestDetectPatternsOutcomeConsistency(t *testing.T) {
	var events []domain.DecisionEvent
	var outcomes []domain.Outcome
	for i := 0; i < 3; i++ {
		ev := domain.DecisionEvent{
			ID:        fmt.Sprintf("ev-%d", i),
			Timestamp: time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
			Mode:      domain.ModeNormal,
			Domain:    domain.DomainDiplomacy,
		}
		events = append(events, ev)
		outcomes = append(outcomes, domain.Outcome{EventID: ev.ID, Result: domain.OutcomeFailure})
	}

	patterns := DetectPatterns(events, outcomes)

	var found bool
	for _, p := range patterns {
		if p.Kind == domain.PatternOutcome {
			found = true
			require.Equal(t, domain.DomainDiplomacy, p.Domain)
			require.Equal(t, domain.OutcomeFailure, p.LastOutcome)
		}
	}
	require.True(t, found)
}

func TestCalibratePostureAppliesBoundedMultipliers(t *testing.T) {
	patterns := []domain.Pattern{
		{Kind: domain.PatternWarEscalationBias},
		{Kind: domain.PatternWarFalseUrgencyLoop},
		{Kind: domain.PatternWarRepeatedOverrides},
	}

	p := CalibratePosture(domain.DefaultPosture(), patterns)
	require.InDelta(t, 0.7, p.Caution, 1e-9)
	require.InDelta(t, 1.5, p.UrgencyThreshold, 1e-9)
	require.InDelta(t, 1.3, p.Bluntness, 1e-9)
}

func TestCalibratePostureClampsAtBounds(t *testing.T) {
	patterns := []domain.Pattern{
		{Kind: domain.PatternWarEscalationBias},
		{Kind: domain.PatternWarFalseUrgencyLoop},
		{Kind: domain.PatternWarRepeatedOverrides},
	}

	p := domain.DefaultPosture()
	for i := 0; i < 10; i++ {
		p = CalibratePosture(p, patterns)
	}
	require.GreaterOrEqual(t, p.Caution, 0.3)
	require.LessOrEqual(t, p.UrgencyThreshold, 3.0)
	require.LessOrEqual(t, p.Bluntness, 2.0)
}

func TestCalibrateConfidenceBoundedSteps(t *testing.T) {
	patterns := []domain.Pattern{
		{Kind: domain.PatternRepetitionLoop, Domain: domain.DomainTiming},
		{Kind: domain.PatternOutcome, Domain: domain.DomainTiming, LastOutcome: domain.OutcomeFailure},
	}

	cals := CalibrateConfidence(patterns, func(string, domain.Domain) float64 { return 0.5 })
	require.Len(t, cals, 1)
	require.Equal(t, "n", cals[0].Target)
	require.Equal(t, domain.DomainTiming, cals[0].Domain)
	require.InDelta(t, 0.4, cals[0].Confidence, 1e-9)
}

func TestPatternsPersistAndRebuild(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	patterns := []domain.Pattern{{
		ID:          "repetition_loop:timing|sunk cost",
		Kind:        domain.PatternRepetitionLoop,
		Description: "the same illusion recurred 2 times in timing decisions",
		Domain:      domain.DomainTiming,
		Frequency:   2,
		LastSeen:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, s.ReplacePatterns(ctx, patterns))

	got, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, patterns[0].ID, got[0].ID)
	require.Equal(t, patterns[0].Frequency, got[0].Frequency)

	// a rebuild replaces wholesale
	require.NoError(t, s.ReplacePatterns(ctx, nil))
	got, err = s.ListPatterns(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPosturePersistence(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	p, err := s.LoadPosture(ctx)
	require.NoError(t, err)
	require.Equal(t, 1.0, p.Caution)

	p.Caution = 0.7
	require.NoError(t, s.SavePosture(ctx, p))

	got, err := s.LoadPosture(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.7, got.Caution, 1e-9)
}

func TestOverrideOverlaysOntoImmutableEvent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.AppendEvent(ctx, domain.DecisionEvent{
		Mode: domain.ModeWar, Domain: domain.DomainConflict, VerdictSummary: "abort",
	})
	require.NoError(t, err)

	require.NoError(t, s.RecordOverride(ctx, ev.ID, "proceeded despite the veto"))

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.False(t, events[0].FollowedCounsel())
	require.Equal(t, "proceeded despite the veto", events[0].OverrideReason)
}

func TestConfidenceDefaultsToStartingValue(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	conf, err := s.Confidence(ctx, "n", domain.DomainRisk)
	require.NoError(t, err)
	require.Equal(t, startingConfidence, conf)

	require.NoError(t, s.UpsertCalibration(ctx, domain.Calibration{
		Target: "n", Domain: domain.DomainRisk, Confidence: 0.35,
	}))
	conf, err = s.Confidence(ctx, "n", domain.DomainRisk)
	require.NoError(t, err)
	require.InDelta(t, 0.35, conf, 1e-9)
}
