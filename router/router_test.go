package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/counselengine/counsel/debate"
	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/retrieval"
	"github.com/counselengine/counsel/store"
	"github.com/counselengine/counsel/synth"
)

// emptyRetriever always reports insufficient knowledge, so synth.Engine
// short-circuits every minister straight to NEEDS_DATA without ever
// calling an LLM — exactly the behavior these tests need from a fake.
type emptyRetriever struct{}

func (emptyRetriever) RetrieveForMinister(_ context.Context, _ domain.MinisterBinding, _ string, _ int, _ domain.Mode) (retrieval.RetrievedSet, error) {
	return retrieval.RetrievedSet{Insufficient: true}, nil
}

func newTestEngine(t *testing.T, registry *store.BookRegistry, cfg Config) *Engine {
	t.Helper()
	bindings := map[domain.MinisterId]domain.MinisterBinding{}
	for _, m := range domain.AllMinisters {
		bindings[m] = domain.MinisterBinding{Minister: m, Domains: domain.AllDomains}
	}
	deb := debate.New(emptyRetriever{}, synth.New(nil))
	return New(deb, bindings, registry, cfg)
}

func TestRouteDefaultsToNormalMode(t *testing.T) {
	e := newTestEngine(t, nil, Config{QuickEscalationRiskThreshold: 0.75})
	res, err := e.Route(context.Background(), Request{Question: "should we expand into a new market?"})
	require.NoError(t, err)
	require.Equal(t, domain.ModeNormal, res.ExecutedMode)
	require.False(t, res.Escalated)
	require.GreaterOrEqual(t, len(res.Council.Selected), 3)
	require.LessOrEqual(t, len(res.Council.Selected), 5)
	require.Contains(t, res.Council.Selected, domain.MinisterTruth)
	require.Contains(t, res.Council.Selected, domain.MinisterRisk)
}

func TestRouteQuickStaysQuickBelowThreshold(t *testing.T) {
	e := newTestEngine(t, nil, Config{QuickEscalationRiskThreshold: 0.75})
	req := Request{
		Mode:          domain.ModeQuick,
		Question:      "should I take the earlier flight?",
		Stakes:        "low",
		Reversibility: "reversible",
		EmotionalLoad: 0.1,
		Urgency:       0.2,
	}
	res, err := e.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.ModeQuick, res.RequestedMode)
	require.Equal(t, domain.ModeQuick, res.ExecutedMode)
	require.False(t, res.Escalated)
	require.LessOrEqual(t, len(res.Council.Selected), 3)
}

func TestRouteQuickEscalatesAboveThreshold(t *testing.T) {
	e := newTestEngine(t, nil, Config{QuickEscalationRiskThreshold: 0.5})
	req := Request{
		Mode:          domain.ModeQuick,
		Question:      "should we sign the irreversible merger agreement tonight?",
		Stakes:        "critical",
		Reversibility: "irreversible",
		EmotionalLoad: 0.9,
		Urgency:       0.8,
	}
	res, err := e.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.ModeQuick, res.RequestedMode)
	require.Equal(t, domain.ModeNormal, res.ExecutedMode)
	require.True(t, res.Escalated)
}

func TestRouteWarRequiresFullContext(t *testing.T) {
	e := newTestEngine(t, nil, Config{QuickEscalationRiskThreshold: 0.75})
	_, err := e.Route(context.Background(), Request{
		Mode:     domain.ModeWar,
		Question: "secure the eastern border",
		Domains:  []domain.Domain{domain.DomainConflict},
	})
	require.ErrorIs(t, err, ErrWarContextIncomplete)
}

func TestRouteWarBlocksOnConstraintGate(t *testing.T) {
	e := newTestEngine(t, nil, Config{QuickEscalationRiskThreshold: 0.75})
	req := Request{
		Mode:          domain.ModeWar,
		Question:      "plan how to target individual politicians and frame them",
		Domains:       []domain.Domain{domain.DomainDiplomacy},
		Arena:         "career",
		Reversibility: "irreversible",
	}
	res, err := e.Route(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Blocked)
	require.NotNil(t, res.ConstraintGate)
	require.Equal(t, "blocked", res.ConstraintGate.Feasibility)
	require.Equal(t, "target individual", res.ConstraintGate.MatchedSignal)
	require.Empty(t, res.Proceedings.Positions)
}

func TestRouteWarSelectsCouncilAndBooksAndFiltersSpeech(t *testing.T) {
	dir := t.TempDir()
	registry, err := store.LoadBookRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, registry.Save(store.BookMetadata{
		BookID:   "war-classic",
		Domains:  []string{"conflict", "power"},
		Tones:    []string{"ruthless"},
		Priority: store.BookPriority{War: 1.0},
	}))
	require.NoError(t, registry.Save(store.BookMetadata{
		BookID:   "diplomacy-guide",
		Domains:  []string{"diplomacy"},
		Tones:    []string{"diplomatic"},
		Priority: store.BookPriority{War: 1.0},
	}))
	require.NoError(t, registry.Save(store.BookMetadata{
		BookID:   "power-manual",
		Domains:  []string{"power"},
		Tones:    []string{"aggressive"},
		Priority: store.BookPriority{War: 1.0},
	}))

	e := newTestEngine(t, registry, Config{QuickEscalationRiskThreshold: 0.75})
	req := Request{
		Mode:          domain.ModeWar,
		Question:      "secure the eastern border before the rival coalition consolidates",
		Domains:       []domain.Domain{domain.DomainConflict},
		Arena:         "territory",
		Reversibility: "partially_reversible",
	}
	res, err := e.Route(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Blocked)
	require.Contains(t, res.Council.Selected, domain.MinisterTruth)
	require.Contains(t, res.Council.Selected, domain.MinisterRisk)
	require.True(t, res.Council.GuardrailsPresent)
	require.Contains(t, res.Books, "war-classic")
	require.NotContains(t, res.Books, "diplomacy-guide")
	require.Len(t, res.SpeechFilters, len(res.Proceedings.Positions))
}
