// Package war implements the war-mode pipeline: a constraint gate that can
// block a goal outright, deterministic council and book selection biased
// toward the goal's domain tags, and a speech filter applied to every
// minister's justification before it reaches the final proceedings.
package war

import (
	"strings"

	"github.com/counselengine/counsel/domain"
)

// illegalActionSignals are substrings indicating the goal itself asks for
// a plainly illegal act. Matching is case-insensitive and intentionally
// coarse: the gate only needs to catch the plainly stated intent, not
// disguised phrasing.
var illegalActionSignals = []string{
	"assassinat",
	"genocide",
	"ethnic cleansing",
	"mass casualt",
	"chemical weapon",
	"biological weapon",
	"torture",
	"bribe",
	"extort",
	"blackmail",
}

// individualTargetingSignals catch goals aimed at a specific natural
// person rather than an institution, policy, or market position — the
// kind of targeting war-mode doctrine is never entitled to bias toward.
var individualTargetingSignals = []string{
	"target individual",
	"target a specific person",
	"target the individual",
	"frame them",
	"frame him",
	"frame her",
	"personally destroy",
	"ruin their life",
	"dox ",
}

// ConstraintGateResult is the outcome of screening a goal statement
// before any council or retrieval work begins.
type ConstraintGateResult struct {
	// Feasibility is "viable" or "blocked".
	Feasibility string
	// MatchedSignal is the substring that triggered a block, empty when viable.
	MatchedSignal string
	// RecommendedPosture is "halt" when blocked, empty when viable.
	RecommendedPosture string
}

// Blocked reports whether the gate rejected the goal.
func (r ConstraintGateResult) Blocked() bool { return r.Feasibility == "blocked" }

// ConstraintGate scans a goal statement for forbidden-intent signals —
// illegal actions and individual-targeting — in that priority order. It
// is a pure, deterministic scan: the same goal text always produces the
// same verdict, and nothing downstream of a block (council selection,
// retrieval, debate) ever runs.
func ConstraintGate(goal string) ConstraintGateResult {
	lower := strings.ToLower(goal)
	for _, signal := range illegalActionSignals {
		if strings.Contains(lower, signal) {
			return ConstraintGateResult{
				Feasibility:        "blocked",
				MatchedSignal:      signal,
				RecommendedPosture: "halt",
			}
		}
	}
	for _, signal := range individualTargetingSignals {
		if strings.Contains(lower, signal) {
			return ConstraintGateResult{
				Feasibility:        "blocked",
				MatchedSignal:      strings.TrimSpace(signal),
				RecommendedPosture: "halt",
			}
		}
	}
	return ConstraintGateResult{Feasibility: "viable"}
}

// The three council tiers. Preferred ministers are the leverage-heavy
// core a war council is built from; conditional ministers join only when
// the goal's domain tags call for their specialty and room remains;
// deprioritized ministers are excluded unless nothing else can fill the
// council to its minimum.
var preferredMinisters = []domain.MinisterId{
	domain.MinisterPower, domain.MinisterPsychology, domain.MinisterConflict,
	domain.MinisterIntelligence, domain.MinisterNarrative, domain.MinisterTiming,
	domain.MinisterOptionality, domain.MinisterTruth, domain.MinisterRisk,
}

var conditionalMinisters = []domain.MinisterId{
	domain.MinisterLegitimacy, domain.MinisterTechnology,
	domain.MinisterData, domain.MinisterOperations,
}

var deprioritizedMinisters = []domain.MinisterId{
	domain.MinisterDiplomacy, domain.MinisterAdaptation,
}

// ministerDomains maps each minister to the domain tags that make it
// relevant to a goal. Preferred ministers with a matching tag are seated
// ahead of non-matching ones; conditional ministers require a match.
var ministerDomains = map[domain.MinisterId][]domain.Domain{
	domain.MinisterPower:        {domain.DomainPower, domain.DomainLeadership},
	domain.MinisterPsychology:   {domain.DomainPsychology, domain.DomainDeception},
	domain.MinisterConflict:     {domain.DomainConflict},
	domain.MinisterIntelligence: {domain.DomainIntelligence, domain.DomainDeception},
	domain.MinisterNarrative:    {domain.DomainPsychology, domain.DomainDiplomacy},
	domain.MinisterTiming:       {domain.DomainTiming},
	domain.MinisterOptionality:  {domain.DomainRisk, domain.DomainTiming, domain.DomainAdaptation},
	domain.MinisterLegitimacy:   {domain.DomainLaw, domain.DomainMorality},
	domain.MinisterTechnology:   {domain.DomainResources, domain.DomainOrganization},
	domain.MinisterData:         {domain.DomainIntelligence, domain.DomainResources},
	domain.MinisterOperations:   {domain.DomainOrganization, domain.DomainResources, domain.DomainConflict},
	domain.MinisterDiplomacy:    {domain.DomainDiplomacy},
	domain.MinisterAdaptation:   {domain.DomainAdaptation},
}

const (
	councilMin = 3
	councilMax = 5
)

// CouncilSelection is the audit record of one council selection.
type CouncilSelection struct {
	Selected          []domain.MinisterId `json:"selected"`
	LeverageCount     int                 `json:"leverage_count"`
	SoftCount         int                 `json:"soft_count"`
	GuardrailsPresent bool                `json:"guardrails_present"`
}

// SelectCouncil is a pure function of a goal's domain tags. Truth and
// Risk are always seated; preferred ministers whose specialty matches a
// tag join next, then conditional ministers with a matching tag while
// room remains; if the council is still short of its minimum it is
// filled from the preferred tier regardless of tags, and only then — as
// a last resort — from the deprioritized tier. Size is clamped to
// [councilMin, councilMax].
func SelectCouncil(domains []domain.Domain) CouncilSelection {
	tags := make(map[domain.Domain]bool, len(domains))
	for _, d := range domains {
		tags[d] = true
	}

	present := map[domain.MinisterId]bool{
		domain.MinisterTruth: true,
		domain.MinisterRisk:  true,
	}
	order := []domain.MinisterId{domain.MinisterTruth, domain.MinisterRisk}

	seat := func(m domain.MinisterId) {
		if !present[m] && len(order) < councilMax {
			present[m] = true
			order = append(order, m)
		}
	}

	for _, m := range preferredMinisters {
		if matchesTags(m, tags) {
			seat(m)
		}
	}
	for _, m := range conditionalMinisters {
		if matchesTags(m, tags) {
			seat(m)
		}
	}
	for _, m := range preferredMinisters {
		if len(order) >= councilMin {
			break
		}
		seat(m)
	}
	for _, m := range deprioritizedMinisters {
		if len(order) >= councilMin {
			break
		}
		seat(m)
	}

	return CouncilSelection{
		Selected:          order,
		LeverageCount:     countTier(order, preferredMinisters),
		SoftCount:         countTier(order, conditionalMinisters) + countTier(order, deprioritizedMinisters),
		GuardrailsPresent: present[domain.MinisterTruth] && present[domain.MinisterRisk],
	}
}

func matchesTags(m domain.MinisterId, tags map[domain.Domain]bool) bool {
	for _, d := range ministerDomains[m] {
		if tags[d] {
			return true
		}
	}
	return false
}

func countTier(council []domain.MinisterId, tier []domain.MinisterId) int {
	inTier := make(map[domain.MinisterId]bool, len(tier))
	for _, m := range tier {
		inTier[m] = true
	}
	n := 0
	for _, m := range council {
		if inTier[m] {
			n++
		}
	}
	return n
}
