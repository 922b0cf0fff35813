// Package router is the counsel engine's mode dispatch table: given a
// request and its declared mode (quick, normal, or war) it selects a
// council, runs the debate, and — for war mode — layers the constraint
// gate, book bias, and speech filter on top. Mode selection defaults to
// normal; quick auto-escalates to normal when its own cheap risk estimate
// crosses a configured threshold.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/counselengine/counsel/debate"
	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/store"
	"github.com/counselengine/counsel/war"
)

// ErrWarContextIncomplete is returned when war mode is requested without
// the goal, arena, and reversibility it requires.
var ErrWarContextIncomplete = errors.New("router: war mode requires goal, arena, and reversibility")

// Config governs quick-mode escalation. Council and book-selection bounds
// live in the war package's own constants (councilMin/Max, booksMin/Max),
// which mirror Config.WarCouncilMin/Max and Config.WarBooksMin/Max at the
// root — the router does not re-parameterize them.
type Config struct {
	QuickEscalationRiskThreshold float64

	// ConfidenceThreshold flags any minister whose post-synthesis
	// confidence falls below it: its advice is still shown, but never
	// surfaced as authoritative.
	ConfidenceThreshold float64
}

// Request is one counsel invocation: the situation text plus the context
// fields the CLI collects from flags.
type Request struct {
	Mode          domain.Mode
	Question      string
	Domains       []domain.Domain
	Stakes        string  // stakes category, e.g. "career", "financial"
	Urgency       float64 // 0-1
	EmotionalLoad float64 // 0-1
	Fatigue       float64 // 0-1
	Reversibility string  // "reversible" | "partially_reversible" | "irreversible"; war-mode required
	Arena         string  // war-mode required
	Constraints   []string
}

// Result is the router's full answer: which mode actually ran, the
// council and (war-mode) book set it used, and the underlying debate
// proceedings. SpeechFilters is populated only in war mode, one entry per
// council member, each preserving the pre-filter justification alongside
// the filtered one.
type Result struct {
	RequestedMode  domain.Mode
	ExecutedMode   domain.Mode
	Escalated      bool
	Blocked        bool
	ConstraintGate *war.ConstraintGateResult
	Council        war.CouncilSelection
	Books          []string
	Proceedings    domain.DebateProceedings
	SpeechFilters  []war.FilterResult

	// LowConfidence lists ministers whose confidence fell below the
	// configured threshold; their advice is flagged, not authoritative.
	LowConfidence []domain.MinisterId
}

// Engine wires the debate engine, the fixed minister->domain bindings,
// and (for war mode) the book registry into mode-specific handlers.
type Engine struct {
	debate   *debate.Engine
	bindings map[domain.MinisterId]domain.MinisterBinding
	registry *store.BookRegistry
	cfg      Config
}

func New(debateEngine *debate.Engine, bindings map[domain.MinisterId]domain.MinisterBinding, registry *store.BookRegistry, cfg Config) *Engine {
	return &Engine{debate: debateEngine, bindings: bindings, registry: registry, cfg: cfg}
}

// Route dispatches a request to its mode handler. An empty Mode defaults
// to normal.
func (e *Engine) Route(ctx context.Context, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeNormal
	}

	var res Result
	var err error
	switch mode {
	case domain.ModeWar:
		res, err = e.routeWar(ctx, req)
	case domain.ModeQuick:
		res, err = e.routeQuick(ctx, req)
	default:
		res, err = e.routeNormal(ctx, req)
	}
	if err != nil {
		return res, err
	}
	res.LowConfidence = flagLowConfidence(res.Proceedings.Positions, e.cfg.ConfidenceThreshold)
	return res, nil
}

// flagLowConfidence lists every minister whose confidence fell below the
// threshold. Their positions remain in the proceedings; the flag tells
// callers not to treat them as authoritative.
func flagLowConfidence(positions []domain.MinisterPosition, threshold float64) []domain.MinisterId {
	if threshold <= 0 {
		return nil
	}
	var flagged []domain.MinisterId
	for _, p := range positions {
		if p.Confidence < threshold {
			flagged = append(flagged, p.Minister)
		}
	}
	return flagged
}

func (e *Engine) routeNormal(ctx context.Context, req Request) (Result, error) {
	council := war.SelectCouncil(req.Domains)
	bindings := e.bindingsFor(council.Selected, nil)

	proceedings, err := e.debate.Conduct(ctx, req.Question, bindings, domain.ModeNormal)
	if err != nil {
		return Result{}, fmt.Errorf("router: normal mode: %w", err)
	}

	return Result{
		RequestedMode: domain.ModeNormal,
		ExecutedMode:  domain.ModeNormal,
		Council:       council,
		Proceedings:   proceedings,
	}, nil
}

// routeQuick estimates a cheap, pre-debate risk score directly from the
// request's own declared fields. Crossing the threshold escalates to a
// full normal-mode run before any retrieval or synthesis happens, so the
// expensive path is only ever paid once.
func (e *Engine) routeQuick(ctx context.Context, req Request) (Result, error) {
	score := quickRiskScore(req)
	if score > e.cfg.QuickEscalationRiskThreshold {
		escalated := req
		escalated.Mode = domain.ModeNormal
		res, err := e.routeNormal(ctx, escalated)
		if err != nil {
			return Result{}, err
		}
		res.RequestedMode = domain.ModeQuick
		res.Escalated = true
		return res, nil
	}

	council := war.SelectCouncil(req.Domains)
	const quickCouncilSize = 3
	if len(council.Selected) > quickCouncilSize {
		council.Selected = council.Selected[:quickCouncilSize]
	}
	bindings := e.bindingsFor(council.Selected, nil)

	proceedings, err := e.debate.Conduct(ctx, req.Question, bindings, domain.ModeQuick)
	if err != nil {
		return Result{}, fmt.Errorf("router: quick mode: %w", err)
	}

	return Result{
		RequestedMode: domain.ModeQuick,
		ExecutedMode:  domain.ModeQuick,
		Council:       council,
		Proceedings:   proceedings,
	}, nil
}

func (e *Engine) routeWar(ctx context.Context, req Request) (Result, error) {
	if req.Question == "" || req.Arena == "" || req.Reversibility == "" {
		return Result{}, ErrWarContextIncomplete
	}

	gate := war.ConstraintGate(req.Question)
	if gate.Blocked() {
		return Result{
			RequestedMode:  domain.ModeWar,
			ExecutedMode:   domain.ModeWar,
			Blocked:        true,
			ConstraintGate: &gate,
		}, nil
	}

	council := war.SelectCouncil(req.Domains)

	var bookIDs []string
	if e.registry != nil {
		selected := war.SelectBooks(e.registry.AllBooks())
		bookIDs = make([]string, len(selected))
		for i, b := range selected {
			bookIDs[i] = b.BookID
		}
	}

	bindings := e.bindingsFor(council.Selected, bookIDs)
	proceedings, err := e.debate.Conduct(ctx, req.Question, bindings, domain.ModeWar)
	if err != nil {
		return Result{}, fmt.Errorf("router: war mode: %w", err)
	}

	filters := make([]war.FilterResult, len(proceedings.Positions))
	for i, pos := range proceedings.Positions {
		fr := war.FilterSpeech(pos.Minister, pos.Justification)
		filters[i] = fr
		proceedings.Positions[i].Justification = fr.Filtered
	}

	return Result{
		RequestedMode:  domain.ModeWar,
		ExecutedMode:   domain.ModeWar,
		ConstraintGate: &gate,
		Council:        council,
		Books:          bookIDs,
		Proceedings:    proceedings,
		SpeechFilters:  filters,
	}, nil
}

// bindingsFor resolves a council into its bound-access records, narrowing
// to bookIDs (war mode's selected set) when non-nil.
func (e *Engine) bindingsFor(council []domain.MinisterId, bookIDs []string) []domain.MinisterBinding {
	out := make([]domain.MinisterBinding, 0, len(council))
	for _, m := range council {
		b := e.bindings[m]
		if bookIDs != nil {
			b.Books = bookIDs
		}
		out = append(out, b)
	}
	return out
}

var reversibilityWeight = map[string]float64{
	"reversible":           0.0,
	"partially_reversible": 0.5,
	"irreversible":         1.0,
}

// stakesWeight maps the declared stakes category to a rough severity.
// Unknown categories land in the middle rather than at either extreme.
var stakesWeight = map[string]float64{
	"":          0.0,
	"low":       0.2,
	"routine":   0.2,
	"medium":    0.5,
	"career":    0.7,
	"financial": 0.7,
	"high":      0.8,
	"critical":  1.0,
}

// quickRiskScore is a cheap, LLM-free estimate from the request's own
// declared fields — stakes, reversibility, emotional load, and urgency —
// weighted toward the two hardest-to-walk-back inputs. It never consults
// doctrine; it only decides whether quick mode is allowed to skip the
// full debate.
func quickRiskScore(req Request) float64 {
	stakes, ok := stakesWeight[req.Stakes]
	if !ok {
		stakes = 0.5
	}
	reversibility := reversibilityWeight[req.Reversibility]
	emotional := clamp01(req.EmotionalLoad)
	urgency := clamp01(req.Urgency)
	return 0.4*stakes + 0.3*reversibility + 0.2*emotional + 0.1*urgency
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
