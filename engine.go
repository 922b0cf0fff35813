// Package counsel is the decision counsel engine: it ingests doctrine
// books into permissioned per-domain indices, routes decision queries
// through quick, normal, or war deliberation, and keeps an append-only
// ledger of every decision and outcome from which it calibrates its own
// posture over time. The user is always the decider — the engine only
// counsels.
package counsel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/counselengine/counsel/debate"
	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/ingest"
	"github.com/counselengine/counsel/ledger"
	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/retrieval"
	"github.com/counselengine/counsel/router"
	"github.com/counselengine/counsel/store"
	"github.com/counselengine/counsel/synth"
)

// Engine is the top-level facade wiring every subsystem together. All
// state the subsystems share — the corpus, the per-domain indices, the
// book registry, the ledger — is owned here and threaded explicitly, so
// tests can build an Engine against a temp directory with no hidden
// process-wide registries.
type Engine struct {
	cfg      Config
	corpus   *store.Corpus
	manager  *store.Manager
	registry *store.BookRegistry
	ledger   *ledger.Store
	pipeline *ingest.Pipeline
	router   *router.Engine
}

// New builds an Engine from configuration: LLM providers, the persisted
// data layout under cfg.DataDir, and the fixed minister bindings.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = resolveDataDir("")
	}

	chatLLM, err := llm.NewProvider(cfg.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("counsel: creating reasoning provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("counsel: creating embedding provider: %w", err)
	}

	corpus := store.NewCorpus(cfg.DataDir)
	manager := store.NewManager(cfg.DataDir, cfg.EmbeddingDim)

	registry, err := store.LoadBookRegistry(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("counsel: loading book registry: %w", err)
	}

	led, err := ledger.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingest.New(ingest.Config{
		EmbedConcurrency: cfg.EmbedConcurrency,
		MaxChunkTokens:   cfg.MaxChunkTokens,
		ChunkOverlap:     cfg.ChunkOverlap,
	}, corpus, manager, chatLLM, embedLLM,
		filepath.Join(cfg.DataDir, "state", "ingest_progress.jsonl"))
	if err != nil {
		led.Close()
		return nil, err
	}

	retriever := retrieval.New(manager, embedLLM, retrieval.Config{
		Window:          cfg.RetrievalWindow,
		SynthesisWindow: cfg.SynthesisWindow,
	})
	debateEngine := debate.New(retriever, synth.New(chatLLM))
	routerEngine := router.New(debateEngine, DefaultBindings(), registry, router.Config{
		QuickEscalationRiskThreshold: cfg.QuickEscalationRiskThreshold,
		ConfidenceThreshold:          cfg.ConfidenceThreshold,
	})

	return &Engine{
		cfg:      cfg,
		corpus:   corpus,
		manager:  manager,
		registry: registry,
		ledger:   led,
		pipeline: pipeline,
		router:   routerEngine,
	}, nil
}

// Close releases every open resource.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []func() error{
		e.pipeline.Close,
		e.manager.Close,
		e.ledger.Close,
		e.registry.StopWatch,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IngestBook runs the full ingestion pipeline for one book's extracted
// text. PDF-to-text extraction is an external collaborator; callers hand
// in the text. Re-running on unchanged input inserts nothing and reports
// every chunk as skipped.
func (e *Engine) IngestBook(ctx context.Context, bookID, bookTitle, author, sourceFilename, fullText string, force bool) (ingest.Result, error) {
	hash := sha256.Sum256([]byte(fullText))
	result, err := e.pipeline.Ingest(ctx, bookID, bookTitle, author, hex.EncodeToString(hash[:]), sourceFilename, fullText, force)
	e.writeIngestMetrics(result)
	return result, err
}

// ResumeIngest retries only the chapters whose phase-2 commit is missing.
func (e *Engine) ResumeIngest(ctx context.Context, bookID string) (ingest.Result, error) {
	result, err := e.pipeline.Resume(ctx, bookID)
	e.writeIngestMetrics(result)
	return result, err
}

// writeIngestMetrics persists the advisory progress snapshot. Failures
// are logged and swallowed: metrics never affect correctness.
func (e *Engine) writeIngestMetrics(result ingest.Result) {
	dir := filepath.Join(e.cfg.DataDir, "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("counsel: creating state directory for metrics", "error", err)
		return
	}
	data, err := json.MarshalIndent(result.Metrics, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(dir, "ingest_metrics.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("counsel: writing ingest metrics", "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Warn("counsel: renaming ingest metrics into place", "error", err)
	}
}

// CounselResult is one counsel invocation's full answer plus the ledger
// event id when the decision was recorded to memory.
type CounselResult struct {
	router.Result
	EventID string
	Posture domain.Posture
}

// Counsel routes a decision request through its mode, logs the query to
// the audit log, and — when logMemory is set — appends a DecisionEvent
// to the ledger so the outcome can be resolved against it later.
func (e *Engine) Counsel(ctx context.Context, req router.Request, logMemory bool) (CounselResult, error) {
	posture, err := e.ledger.LoadPosture(ctx)
	if err != nil {
		return CounselResult{}, fmt.Errorf("counsel: loading posture: %w", err)
	}

	res, err := e.router.Route(ctx, req)
	if err != nil {
		return CounselResult{}, err
	}

	out := CounselResult{Result: res, Posture: posture}

	if logMemory {
		ev, err := e.ledger.AppendEvent(ctx, eventFromResult(req, res))
		if err != nil {
			return out, err
		}
		out.EventID = ev.ID
	}

	if err := e.ledger.LogQuery(ctx, out.EventID, req.Question); err != nil {
		slog.Warn("counsel: logging query", "error", err)
	}

	return out, nil
}

// eventFromResult flattens a routed result into its append-only ledger
// row. Illusions are the violations the Truth minister surfaced;
// contradictions are the detected conflict count.
func eventFromResult(req router.Request, res router.Result) domain.DecisionEvent {
	var primary domain.Domain
	if len(req.Domains) > 0 {
		primary = req.Domains[0]
	}

	var illusions []string
	for _, p := range res.Proceedings.Positions {
		illusions = append(illusions, p.Violations...)
	}

	posture := "counsel"
	if res.Blocked {
		posture = "halt"
	} else if res.ExecutedMode == domain.ModeWar {
		posture = "escalation"
	}

	verdict := res.Proceedings.FinalVerdict
	if res.Blocked && res.ConstraintGate != nil {
		verdict = "blocked: " + res.ConstraintGate.MatchedSignal
	}

	return domain.DecisionEvent{
		Mode:                res.ExecutedMode,
		Domain:              primary,
		Stakes:              req.Stakes,
		EmotionalLoad:       req.EmotionalLoad,
		Urgency:             req.Urgency,
		MinistersCalled:     res.Council.Selected,
		VerdictSummary:      verdict,
		Posture:             posture,
		IllusionsDetected:   illusions,
		ContradictionsFound: len(res.Proceedings.Conflicts),
	}
}

// LearningSummary is what ResolveOutcome hands back: the refreshed
// pattern set and the recalibrated posture the next decision will run
// under.
type LearningSummary struct {
	Patterns     []domain.Pattern     `json:"patterns"`
	Posture      domain.Posture       `json:"posture"`
	Calibrations []domain.Calibration `json:"calibrations"`
}

// ResolveOutcome records the real-world outcome for a decision event,
// re-runs pattern detection over the whole ledger, and recalibrates N's
// posture and per-domain confidence from what it finds.
func (e *Engine) ResolveOutcome(ctx context.Context, out domain.Outcome) (LearningSummary, error) {
	if err := e.ledger.RecordOutcome(ctx, out); err != nil {
		return LearningSummary{}, err
	}
	return e.Relearn(ctx)
}

// RecordOverride records that the sovereign acted against counsel.
func (e *Engine) RecordOverride(ctx context.Context, eventID, reason string) error {
	return e.ledger.RecordOverride(ctx, eventID, reason)
}

// Relearn rebuilds the derived pattern and calibration state from the
// append-only ledger. Safe to run at any time; patterns and calibrations
// are never authoritative and always reconstructable.
func (e *Engine) Relearn(ctx context.Context) (LearningSummary, error) {
	events, err := e.ledger.ListEvents(ctx)
	if err != nil {
		return LearningSummary{}, err
	}
	outcomes, err := e.ledger.ListOutcomes(ctx)
	if err != nil {
		return LearningSummary{}, err
	}

	patterns := ledger.DetectPatterns(events, outcomes)
	if err := e.ledger.ReplacePatterns(ctx, patterns); err != nil {
		return LearningSummary{}, err
	}

	posture, err := e.ledger.LoadPosture(ctx)
	if err != nil {
		return LearningSummary{}, err
	}
	posture = ledger.CalibratePosture(posture, patterns)
	if err := e.ledger.SavePosture(ctx, posture); err != nil {
		return LearningSummary{}, err
	}

	calibrations := ledger.CalibrateConfidence(patterns, func(target string, d domain.Domain) float64 {
		conf, cerr := e.ledger.Confidence(ctx, target, d)
		if cerr != nil {
			slog.Warn("counsel: reading calibration", "target", target, "domain", d, "error", cerr)
			return 0.5
		}
		return conf
	})
	for _, c := range calibrations {
		if err := e.ledger.UpsertCalibration(ctx, c); err != nil {
			return LearningSummary{}, err
		}
	}

	return LearningSummary{Patterns: patterns, Posture: posture, Calibrations: calibrations}, nil
}

// Status is the engine's diagnostic snapshot: what is ingested, how big
// each domain's index is, and how much history the ledger holds.
type Status struct {
	Books           []string              `json:"books"`
	ChunksPerDomain map[domain.Domain]int `json:"chunks_per_domain"`
	Events          int                   `json:"events"`
	Outcomes        int                   `json:"outcomes"`
	Patterns        int                   `json:"patterns"`
}

// Stats gathers the diagnostic snapshot.
func (e *Engine) Stats(ctx context.Context) (Status, error) {
	books, err := e.corpus.ListBooks()
	if err != nil {
		return Status{}, err
	}

	st := Status{Books: books, ChunksPerDomain: make(map[domain.Domain]int)}
	for _, d := range domain.AllDomains {
		vs, err := e.manager.Get(d)
		if err != nil {
			return Status{}, err
		}
		n, err := vs.Count(ctx)
		if err != nil {
			return Status{}, err
		}
		if n > 0 {
			st.ChunksPerDomain[d] = n
		}
	}

	events, err := e.ledger.ListEvents(ctx)
	if err != nil {
		return Status{}, err
	}
	outcomes, err := e.ledger.ListOutcomes(ctx)
	if err != nil {
		return Status{}, err
	}
	patterns, err := e.ledger.ListPatterns(ctx)
	if err != nil {
		return Status{}, err
	}
	st.Events = len(events)
	st.Outcomes = len(outcomes)
	st.Patterns = len(patterns)
	return st, nil
}

// Registry exposes the book registry for CLI metadata management.
func (e *Engine) Registry() *store.BookRegistry { return e.registry }

// Ledger exposes the ledger store for CLI outcome resolution.
func (e *Engine) Ledger() *ledger.Store { return e.ledger }
