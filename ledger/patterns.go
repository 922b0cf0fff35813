package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/counselengine/counsel/domain"
)

// Pattern thresholds. A pattern needs at least two occurrences in the
// same context; outcome consistency additionally needs three resolved
// events before a 70% share means anything.
const (
	minFrequency          = 2
	outcomeMinSample      = 3
	outcomeConsistency    = 0.70
	highEmotionalLoad     = 0.6
	highUrgency           = 0.7
	escalationDamageFloor = 0.3
)

// DetectPatterns scans the full ledger history for the seven recognized
// recurring behaviors. Detectors are pure functions of events plus
// outcomes: re-running them on the same ledger always yields the same
// patterns, in a stable order.
func DetectPatterns(events []domain.DecisionEvent, outcomes []domain.Outcome) []domain.Pattern {
	byEvent := make(map[string]domain.Outcome, len(outcomes))
	for _, o := range outcomes {
		byEvent[o.EventID] = o
	}

	var patterns []domain.Pattern
	patterns = append(patterns, detectRepetitionLoops(events, byEvent)...)
	patterns = append(patterns, detectOverrideLoops(events, byEvent, false)...)
	patterns = append(patterns, detectEmotionalLoops(events, byEvent)...)
	patterns = append(patterns, detectOutcomePatterns(events, byEvent)...)
	patterns = append(patterns, detectWarEscalationBias(events, byEvent)...)
	patterns = append(patterns, detectWarFalseUrgencyLoops(events, byEvent)...)
	patterns = append(patterns, detectOverrideLoops(events, byEvent, true)...)

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
	return patterns
}

// group is the shared accumulator every detector builds before deciding
// whether its threshold is met.
type group struct {
	events []domain.DecisionEvent
}

func (g *group) add(e domain.DecisionEvent) { g.events = append(g.events, e) }

func (g *group) lastSeen() time.Time {
	var last time.Time
	for _, e := range g.events {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

func (g *group) lastOutcome(byEvent map[string]domain.Outcome) domain.OutcomeResult {
	var last time.Time
	var result domain.OutcomeResult
	for _, e := range g.events {
		o, ok := byEvent[e.ID]
		if ok && !e.Timestamp.Before(last) {
			last = e.Timestamp
			result = o.Result
		}
	}
	return result
}

// detectRepetitionLoops finds the same illusion recurring in the same
// domain: the sovereign keeps bringing the same distorted premise back.
func detectRepetitionLoops(events []domain.DecisionEvent, byEvent map[string]domain.Outcome) []domain.Pattern {
	groups := map[string]*group{}
	for _, e := range events {
		for _, illusion := range e.IllusionsDetected {
			key := string(e.Domain) + "|" + illusion
			if groups[key] == nil {
				groups[key] = &group{}
			}
			groups[key].add(e)
		}
	}

	var out []domain.Pattern
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if len(g.events) < minFrequency {
			continue
		}
		d := g.events[0].Domain
		out = append(out, domain.Pattern{
			ID:          fmt.Sprintf("%s:%s", domain.PatternRepetitionLoop, key),
			Kind:        domain.PatternRepetitionLoop,
			Description: fmt.Sprintf("the same illusion recurred %d times in %s decisions", len(g.events), d),
			Domain:      d,
			Frequency:   len(g.events),
			LastSeen:    g.lastSeen(),
			LastOutcome: g.lastOutcome(byEvent),
		})
	}
	return out
}

// detectOverrideLoops finds the sovereign repeatedly acting against
// counsel in the same domain. warOnly restricts the scan to war-mode
// events, yielding war_repeated_overrides instead.
func detectOverrideLoops(events []domain.DecisionEvent, byEvent map[string]domain.Outcome, warOnly bool) []domain.Pattern {
	kind := domain.PatternOverrideLoop
	if warOnly {
		kind = domain.PatternWarRepeatedOverrides
	}

	groups := map[string]*group{}
	for _, e := range events {
		if e.FollowedCounsel() {
			continue
		}
		if warOnly && e.Mode != domain.ModeWar {
			continue
		}
		key := string(e.Domain)
		if groups[key] == nil {
			groups[key] = &group{}
		}
		groups[key].add(e)
	}

	var out []domain.Pattern
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if len(g.events) < minFrequency {
			continue
		}
		out = append(out, domain.Pattern{
			ID:          fmt.Sprintf("%s:%s", kind, key),
			Kind:        kind,
			Description: fmt.Sprintf("counsel ignored %d times in %s decisions", len(g.events), key),
			Domain:      domain.Domain(key),
			Frequency:   len(g.events),
			LastSeen:    g.lastSeen(),
			LastOutcome: g.lastOutcome(byEvent),
		})
	}
	return out
}

func detectEmotionalLoops(events []domain.DecisionEvent, byEvent map[string]domain.Outcome) []domain.Pattern {
	groups := map[string]*group{}
	for _, e := range events {
		if e.EmotionalLoad <= highEmotionalLoad {
			continue
		}
		key := string(e.Domain)
		if groups[key] == nil {
			groups[key] = &group{}
		}
		groups[key].add(e)
	}

	var out []domain.Pattern
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if len(g.events) < minFrequency {
			continue
		}
		out = append(out, domain.Pattern{
			ID:          fmt.Sprintf("%s:%s", domain.PatternEmotionalLoop, key),
			Kind:        domain.PatternEmotionalLoop,
			Description: fmt.Sprintf("%d %s decisions made under emotional load above %.1f", len(g.events), key, highEmotionalLoad),
			Domain:      domain.Domain(key),
			Frequency:   len(g.events),
			LastSeen:    g.lastSeen(),
			LastOutcome: g.lastOutcome(byEvent),
		})
	}
	return out
}

// detectOutcomePatterns finds a domain where at least three resolved
// decisions share the same result at least 70% of the time.
func detectOutcomePatterns(events []domain.DecisionEvent, byEvent map[string]domain.Outcome) []domain.Pattern {
	groups := map[string]*group{}
	for _, e := range events {
		if _, resolved := byEvent[e.ID]; !resolved {
			continue
		}
		key := string(e.Domain)
		if groups[key] == nil {
			groups[key] = &group{}
		}
		groups[key].add(e)
	}

	var out []domain.Pattern
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if len(g.events) < outcomeMinSample {
			continue
		}
		counts := map[domain.OutcomeResult]int{}
		for _, e := range g.events {
			counts[byEvent[e.ID].Result]++
		}
		for _, result := range []domain.OutcomeResult{domain.OutcomeSuccess, domain.OutcomePartial, domain.OutcomeFailure} {
			n := counts[result]
			if float64(n)/float64(len(g.events)) < outcomeConsistency {
				continue
			}
			out = append(out, domain.Pattern{
				ID:          fmt.Sprintf("%s:%s:%s", domain.PatternOutcome, key, result),
				Kind:        domain.PatternOutcome,
				Description: fmt.Sprintf("%d of %d resolved %s decisions ended in %s", n, len(g.events), key, result),
				Domain:      domain.Domain(key),
				Frequency:   n,
				LastSeen:    g.lastSeen(),
				LastOutcome: result,
			})
		}
	}
	return out
}

// detectWarEscalationBias finds repeated escalation postures in war
// events whose resolved outcomes averaged real damage.
func detectWarEscalationBias(events []domain.DecisionEvent, byEvent map[string]domain.Outcome) []domain.Pattern {
	g := &group{}
	var damageSum float64
	var resolved int
	for _, e := range events {
		if e.Mode != domain.ModeWar || !isEscalation(e.Posture) {
			continue
		}
		g.add(e)
		if o, ok := byEvent[e.ID]; ok {
			damageSum += o.Damage
			resolved++
		}
	}
	if len(g.events) < minFrequency || resolved == 0 {
		return nil
	}
	avgDamage := damageSum / float64(resolved)
	if avgDamage <= escalationDamageFloor {
		return nil
	}
	return []domain.Pattern{{
		ID:          string(domain.PatternWarEscalationBias),
		Kind:        domain.PatternWarEscalationBias,
		Description: fmt.Sprintf("%d escalation postures in war decisions with average damage %.2f", len(g.events), avgDamage),
		Frequency:   len(g.events),
		LastSeen:    g.lastSeen(),
		LastOutcome: g.lastOutcome(byEvent),
	}}
}

// detectWarFalseUrgencyLoops finds high-urgency war decisions that
// resolved as failures: urgency was claimed, and it bought nothing.
func detectWarFalseUrgencyLoops(events []domain.DecisionEvent, byEvent map[string]domain.Outcome) []domain.Pattern {
	g := &group{}
	for _, e := range events {
		if e.Mode != domain.ModeWar || e.Urgency <= highUrgency {
			continue
		}
		if o, ok := byEvent[e.ID]; ok && o.Result == domain.OutcomeFailure {
			g.add(e)
		}
	}
	if len(g.events) < minFrequency {
		return nil
	}
	return []domain.Pattern{{
		ID:          string(domain.PatternWarFalseUrgencyLoop),
		Kind:        domain.PatternWarFalseUrgencyLoop,
		Description: fmt.Sprintf("%d high-urgency war decisions resolved as failures", len(g.events)),
		Frequency:   len(g.events),
		LastSeen:    g.lastSeen(),
		LastOutcome: domain.OutcomeFailure,
	}}
}

func isEscalation(posture string) bool {
	switch posture {
	case "escalate", "escalation", "aggressive":
		return true
	}
	return false
}

func sortedKeys(groups map[string]*group) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
