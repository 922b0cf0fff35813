// Package debate runs independent minister positions against a question,
// detects typed conflicts between them, convenes a tribunal when any
// conflict exists, and frames the final verdict from elements the
// ministers themselves produced.
package debate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/retrieval"
	"github.com/counselengine/counsel/synth"
	"golang.org/x/sync/errgroup"
)

// vetoMinisters lists the ministers whose STOP stance is a veto rather
// than one vote among many: truth, risk, and optionality guard the three
// things doctrine treats as non-negotiable — facts, downside, and the
// ability to change course later.
var vetoMinisters = map[domain.MinisterId]bool{
	domain.MinisterTruth:       true,
	domain.MinisterRisk:        true,
	domain.MinisterOptionality: true,
}

// stanceConflictConfidence is the confidence both sides of an
// ADVANCE/AVOID split must exceed before the split counts as a conflict;
// two tepid opinions disagreeing is noise, not a stance conflict.
const stanceConflictConfidence = 0.65

// stanceConflictHighConfidence upgrades a stance conflict's severity when
// both parties are this sure of themselves.
const stanceConflictHighConfidence = 0.85

// Retriever is the subset of retrieval.Engine the debate needs, narrowed
// so debate can be tested against a fake.
type Retriever interface {
	RetrieveForMinister(ctx context.Context, binding domain.MinisterBinding, query string, k int, mode domain.Mode) (retrieval.RetrievedSet, error)
}

// Engine conducts debates among a selected council of ministers.
type Engine struct {
	retriever Retriever
	synth     *synth.Engine
	window    int
}

func New(retriever Retriever, synthEngine *synth.Engine) *Engine {
	return &Engine{retriever: retriever, synth: synthEngine, window: 8}
}

// Conduct runs one independent position per minister binding
// concurrently, detects conflicts between the resulting positions, and
// resolves them into a DebateProceedings. Positions are side-effect-free
// and order-independent: the proceedings are a pure function of the set
// of positions, not of arrival order.
func (e *Engine) Conduct(ctx context.Context, question string, bindings []domain.MinisterBinding, mode domain.Mode) (domain.DebateProceedings, error) {
	positions := make([]domain.MinisterPosition, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bindings {
		i, b := i, b
		g.Go(func() error {
			retrieved, err := e.retriever.RetrieveForMinister(gctx, b, question, e.window, mode)
			if err != nil {
				return fmt.Errorf("debate: retrieving for %s: %w", b.Minister, err)
			}
			pos, err := e.synth.Synthesize(gctx, b.Minister, question, retrieved)
			if err != nil {
				return fmt.Errorf("debate: synthesizing for %s: %w", b.Minister, err)
			}
			positions[i] = pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.DebateProceedings{}, err
	}

	conflicts := detectConflicts(positions)

	var tribunal *domain.TribunalVerdict
	if len(conflicts) > 0 {
		v := convene(positions, conflicts)
		tribunal = &v
	}

	stance, verdict := frameFinalVerdict(positions, tribunal)

	return domain.DebateProceedings{
		Positions:    positions,
		Conflicts:    conflicts,
		Tribunal:     tribunal,
		FinalStance:  stance,
		FinalVerdict: verdict,
	}, nil
}

// detectConflicts classifies disagreement between positions into the
// four typed conflict kinds. Detection is order-independent: positions
// are sorted by minister before pairwise scanning, so a permutation of
// the same input yields the same conflicts in the same order.
func detectConflicts(positions []domain.MinisterPosition) []domain.ConflictEvent {
	sorted := append([]domain.MinisterPosition{}, positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Minister < sorted[j].Minister })

	var conflicts []domain.ConflictEvent

	// VETO_CONFLICT: a STOP from any veto-holding minister, regardless of
	// what anyone else said.
	for _, p := range sorted {
		if p.Stance == domain.StanceStop && vetoMinisters[p.Minister] {
			conflicts = append(conflicts, domain.ConflictEvent{
				Kind:     domain.ConflictVeto,
				Severity: domain.SeverityHigh,
				Parties:  []domain.MinisterId{p.Minister},
				Reason:   fmt.Sprintf("%s vetoes with STOP", p.Minister),
			})
		}
	}

	// FACTUAL_UNCERTAINTY: any position carrying violations.
	for _, p := range sorted {
		if len(p.Violations) > 0 {
			conflicts = append(conflicts, domain.ConflictEvent{
				Kind:     domain.ConflictFactual,
				Severity: domain.SeverityHigh,
				Parties:  []domain.MinisterId{p.Minister},
				Reason:   fmt.Sprintf("%s reports %d factual violations", p.Minister, len(p.Violations)),
			})
		}
	}

	// STANCE_CONFLICT: confident ADVANCE against confident AVOID.
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if !opposed(a, b) {
				continue
			}
			if a.Confidence <= stanceConflictConfidence || b.Confidence <= stanceConflictConfidence {
				continue
			}
			severity := domain.SeverityMedium
			if a.Confidence > stanceConflictHighConfidence && b.Confidence > stanceConflictHighConfidence {
				severity = domain.SeverityHigh
			}
			conflicts = append(conflicts, domain.ConflictEvent{
				Kind:     domain.ConflictStance,
				Severity: severity,
				Parties:  []domain.MinisterId{a.Minister, b.Minister},
				Reason:   fmt.Sprintf("%s=%s vs %s=%s", a.Minister, a.Stance, b.Minister, b.Stance),
			})
		}
	}

	// IRREVERSIBILITY_CONFLICT: Risk warns about irreversibility while
	// someone still wants to advance.
	for _, p := range sorted {
		if p.Minister != domain.MinisterRisk || !mentionsIrreversibility(p.Justification) {
			continue
		}
		for _, other := range sorted {
			if other.Minister != domain.MinisterRisk && other.Stance == domain.StanceAdvance {
				conflicts = append(conflicts, domain.ConflictEvent{
					Kind:     domain.ConflictIrreversibility,
					Severity: domain.SeverityHigh,
					Parties:  []domain.MinisterId{domain.MinisterRisk, other.Minister},
					Reason:   fmt.Sprintf("risk warns of irreversibility while %s advances", other.Minister),
				})
			}
		}
	}

	return conflicts
}

func opposed(a, b domain.MinisterPosition) bool {
	return (a.Stance == domain.StanceAdvance && b.Stance == domain.StanceAvoid) ||
		(a.Stance == domain.StanceAvoid && b.Stance == domain.StanceAdvance)
}

func mentionsIrreversibility(justification string) bool {
	lower := strings.ToLower(justification)
	return strings.Contains(lower, "irreversib") || strings.Contains(lower, "cannot be undone") ||
		strings.Contains(lower, "no way back")
}

// convene maps conflicts to one TribunalVerdict by fixed priority:
// factual uncertainty outranks everything (no verdict is sound on
// contested facts), a veto outranks escalation, irreversibility
// escalates, and a bare stance conflict allows the action under the
// union of every position's constraints. If none of those shapes match,
// the tribunal stays silent — a legitimate outcome, not an error.
func convene(positions []domain.MinisterPosition, conflicts []domain.ConflictEvent) domain.TribunalVerdict {
	var hasVeto, hasIrreversibility, hasStance bool
	for _, c := range conflicts {
		switch c.Kind {
		case domain.ConflictFactual:
			if c.Severity == domain.SeverityHigh {
				return domain.TribunalVerdict{
					Decision:     domain.DecisionDelayPendingData,
					RequiredData: truthViolations(positions),
					Reasoning:    "factual uncertainty must be resolved before any verdict can stand",
				}
			}
		case domain.ConflictVeto:
			hasVeto = true
		case domain.ConflictIrreversibility:
			hasIrreversibility = true
		case domain.ConflictStance:
			hasStance = true
		}
	}

	if hasVeto {
		return domain.TribunalVerdict{
			Decision:  domain.DecisionAbort,
			Reasoning: "a veto-holding minister issued STOP",
		}
	}
	if hasIrreversibility {
		return domain.TribunalVerdict{
			Decision:  domain.DecisionEscalate,
			Reasoning: "irreversible downside contested; the sovereign must weigh it directly",
		}
	}
	if hasStance {
		return domain.TribunalVerdict{
			Decision:    domain.DecisionAllowWithConstraints,
			Constraints: unionConstraints(positions),
			Reasoning:   "confident ministers split on advance vs avoid; action allowed only under every stated constraint",
		}
	}

	return domain.TribunalVerdict{
		Decision:  domain.DecisionSilence,
		Reasoning: "no conflict shape warrants a tribunal ruling",
	}
}

// truthViolations collects the Truth minister's violations as the data
// the sovereign must resolve before the question can be re-asked.
func truthViolations(positions []domain.MinisterPosition) []string {
	for _, p := range positions {
		if p.Minister == domain.MinisterTruth && len(p.Violations) > 0 {
			out := append([]string{}, p.Violations...)
			sort.Strings(out)
			return out
		}
	}
	return nil
}

// unionConstraints merges every position's constraints, deduplicated and
// sorted so the verdict is stable under position permutation.
func unionConstraints(positions []domain.MinisterPosition) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range positions {
		for _, c := range p.Constraints {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// frameFinalVerdict enforces the tribunal verdict when one exists and
// otherwise adopts the majority stance only if at least two thirds of
// positions share it. It composes only elements the ministers produced —
// it never invents strategy.
func frameFinalVerdict(positions []domain.MinisterPosition, tribunal *domain.TribunalVerdict) (domain.Stance, string) {
	if tribunal != nil {
		switch tribunal.Decision {
		case domain.DecisionSilence:
			return domain.StanceAbstain, "the council is silent: no action is recommended"
		case domain.DecisionDelayPendingData:
			return domain.StanceDelay, fmt.Sprintf(
				"delay pending data: resolve %s before deciding", strings.Join(tribunal.RequiredData, "; "))
		case domain.DecisionAbort:
			return domain.StanceStop, "abort: a veto stands — " + tribunal.Reasoning
		case domain.DecisionEscalate:
			return domain.StanceConditional, "escalate: " + tribunal.Reasoning
		case domain.DecisionAllowWithConstraints:
			return domain.StanceConditional, fmt.Sprintf(
				"allowed only under constraints: %s", strings.Join(tribunal.Constraints, "; "))
		}
	}

	counts := map[domain.Stance]int{}
	for _, p := range positions {
		counts[p.Stance]++
	}
	var majorityStance domain.Stance
	var majorityCount int
	for _, s := range domain.AllStances {
		if counts[s] > majorityCount {
			majorityStance, majorityCount = s, counts[s]
		}
	}

	if len(positions) > 0 && majorityCount*3 >= len(positions)*2 {
		return majorityStance, fmt.Sprintf(
			"%d of %d ministers hold %s", majorityCount, len(positions), majorityStance)
	}
	return domain.StanceConditional, "no two-thirds majority: proceed only conditionally, if at all"
}
