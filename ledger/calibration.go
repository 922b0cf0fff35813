package ledger

import (
	"time"

	"github.com/counselengine/counsel/domain"
)

// Posture dials move multiplicatively but are clamped so no single batch
// of patterns can collapse N's posture: caution never drops below 0.3,
// the urgency threshold never exceeds 3.0, bluntness never exceeds 2.0.
const (
	cautionFactor    = 0.7
	cautionFloor     = 0.3
	urgencyFactor    = 1.5
	urgencyCeiling   = 3.0
	bluntnessFactor  = 1.3
	bluntnessCeiling = 2.0
)

// Confidence calibrations start at 0.50 and move in bounded additive
// steps, clamped to keep any single recalibration from swinging a
// minister's weight to an extreme.
const (
	startingConfidence = 0.50
	confidenceStep     = 0.05
	confidenceFloor    = 0.10
	confidenceCeiling  = 0.90
)

// CalibratePosture applies detected war patterns to N's posture:
// escalation bias lowers caution, false urgency raises the urgency
// threshold, repeated overrides raise bluntness. Each pattern kind
// applies its multiplier once per calibration run regardless of
// frequency — the frequency already had to clear the detection
// threshold, and compounding by it would let one bad streak collapse
// the posture in a single step.
func CalibratePosture(current domain.Posture, patterns []domain.Pattern) domain.Posture {
	next := current
	applied := map[domain.PatternKind]bool{}
	for _, p := range patterns {
		if applied[p.Kind] {
			continue
		}
		applied[p.Kind] = true
		switch p.Kind {
		case domain.PatternWarEscalationBias:
			next.Caution = clampFloat(next.Caution*cautionFactor, cautionFloor, 1.0)
		case domain.PatternWarFalseUrgencyLoop:
			next.UrgencyThreshold = clampFloat(next.UrgencyThreshold*urgencyFactor, 0, urgencyCeiling)
		case domain.PatternWarRepeatedOverrides:
			next.Bluntness = clampFloat(next.Bluntness*bluntnessFactor, 0, bluntnessCeiling)
		}
	}
	next.UpdatedAt = time.Now().UTC()
	return next
}

// CalibrateConfidence turns domain-scoped patterns into bounded steps on
// N's per-domain confidence: repeated illusions, emotional decisions, and
// consistent failures lower it; consistently successful outcomes raise
// it. Returns one Calibration per affected (target, domain) pair.
func CalibrateConfidence(patterns []domain.Pattern, current func(target string, d domain.Domain) float64) []domain.Calibration {
	steps := map[domain.Domain]float64{}
	for _, p := range patterns {
		if p.Domain == "" {
			continue
		}
		switch p.Kind {
		case domain.PatternRepetitionLoop, domain.PatternEmotionalLoop, domain.PatternOverrideLoop:
			steps[p.Domain] -= confidenceStep
		case domain.PatternOutcome:
			if p.LastOutcome == domain.OutcomeFailure {
				steps[p.Domain] -= confidenceStep
			} else if p.LastOutcome == domain.OutcomeSuccess {
				steps[p.Domain] += confidenceStep
			}
		}
	}

	var out []domain.Calibration
	for _, d := range domain.AllDomains {
		step, ok := steps[d]
		if !ok || step == 0 {
			continue
		}
		base := current("n", d)
		out = append(out, domain.Calibration{
			Target:     "n",
			Domain:     d,
			Confidence: clampFloat(base+step, confidenceFloor, confidenceCeiling),
			UpdatedAt:  time.Now().UTC(),
		})
	}
	return out
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
