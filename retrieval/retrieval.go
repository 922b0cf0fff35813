// Package retrieval implements permissioned retrieval: given a minister's
// binding, it searches only the domains (and optionally books) the
// binding allows, fuses the per-domain result streams, partitions the
// fused window into support/counter/neutral doctrine, and applies the
// active mode's weighting before a synthesis step grounds an answer in
// it.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/store"
)

// minResults is the floor below which a retrieval is reported as
// insufficient knowledge rather than handed to synthesis: a single chunk
// is not a doctrine base, it is an anecdote.
const minResults = 2

// counterWeightNormal is the score multiplier applied to opposing
// doctrine in normal mode, where counter-evidence is surfaced but does
// not dominate. War mode includes it at full weight; quick mode drops it.
const counterWeightNormal = 0.5

// Category classifies a retrieved chunk's relationship to the question.
type Category string

const (
	CategorySupport Category = "support"
	CategoryCounter Category = "counter"
	CategoryNeutral Category = "neutral"
)

// Config controls retrieval behavior.
type Config struct {
	Window          int // default results per query
	SynthesisWindow int // widened window when the caller needs fuller grounding
}

// Engine performs permissioned retrieval over the per-domain vector stores.
type Engine struct {
	manager  *store.Manager
	embedder llm.Provider
	cfg      Config
}

func New(manager *store.Manager, embedder llm.Provider, cfg Config) *Engine {
	if cfg.Window == 0 {
		cfg.Window = 8
	}
	if cfg.SynthesisWindow == 0 {
		cfg.SynthesisWindow = 40
	}
	return &Engine{manager: manager, embedder: embedder, cfg: cfg}
}

// Result is a scored doctrine chunk annotated with the domain it came
// from and its support/counter/neutral category, so downstream debate
// and war logic can reason about provenance.
type Result struct {
	store.RetrievalResult
	Domain   domain.Domain
	Category Category
}

// RetrievedSet is one retrieval's full answer: the mode-weighted,
// score-ordered window plus the insufficient-knowledge flag. Callers
// must treat Insufficient as "do not synthesize a stance from this".
type RetrievedSet struct {
	Results      []Result
	Insufficient bool
}

// cross-domain reciprocal rank fusion constant, matching the per-domain
// fusion inside store.VectorStore.Search.
const rrfK = 60

// RetrieveForMinister searches every domain a minister's binding allows,
// fuses the per-domain result streams with equal-weight reciprocal rank
// fusion, partitions by category, applies mode weighting, and returns
// the top-k window. The binding is a hard ACL: no chunk from a domain or
// book outside it is ever returned, regardless of score.
func (e *Engine) RetrieveForMinister(ctx context.Context, binding domain.MinisterBinding, query string, k int, mode domain.Mode) (RetrievedSet, error) {
	if k <= 0 {
		k = e.cfg.Window
	}
	if len(binding.Domains) == 0 {
		return RetrievedSet{Insufficient: true}, nil
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		return RetrievedSet{}, fmt.Errorf("retrieval: embedding query: %w", err)
	}
	queryEmbedding := embeddings[0]

	// Each allowed domain contributes one ranked stream; RRF rewards a
	// chunk that ranks well in more than one allowed domain over one that
	// ranks well in a single domain.
	type fusedEntry struct {
		result Result
		score  float64
	}
	fused := make(map[string]*fusedEntry)

	domains := append([]domain.Domain{}, binding.Domains...)
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	for _, d := range domains {
		vs, err := e.manager.Get(d)
		if err != nil {
			return RetrievedSet{}, fmt.Errorf("retrieval: opening %s index: %w", d, err)
		}
		results, err := vs.Search(ctx, queryEmbedding, query, k)
		if err != nil {
			return RetrievedSet{}, fmt.Errorf("retrieval: searching %s: %w", d, err)
		}
		rank := 0
		for _, r := range results {
			if !binding.AllowsBook(r.BookID) {
				continue
			}
			entry, ok := fused[r.ChunkHash]
			if !ok {
				entry = &fusedEntry{result: Result{
					RetrievalResult: r,
					Domain:          d,
					Category:        categorize(r.Content),
				}}
				fused[r.ChunkHash] = entry
			}
			entry.score += 1.0 / float64(rrfK+rank+1)
			rank++
		}
	}

	all := make([]Result, 0, len(fused))
	for _, entry := range fused {
		entry.result.Score = entry.score
		all = append(all, entry.result)
	}

	all = applyModeWeighting(all, mode)

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ChunkHash < all[j].ChunkHash
	})
	if len(all) > k {
		all = all[:k]
	}

	return RetrievedSet{
		Results:      all,
		Insufficient: len(all) < minResults,
	}, nil
}

// categorize maps a chunk's labeled doctrine sections to its category:
// warnings argue against action (counter), principles and rules argue
// for a course (support), bare claims are neutral evidence.
func categorize(content string) Category {
	lower := strings.ToLower(content)
	if strings.Contains(lower, "warnings:") {
		return CategoryCounter
	}
	if strings.Contains(lower, "principles:") || strings.Contains(lower, "rules:") {
		return CategorySupport
	}
	return CategoryNeutral
}

// applyModeWeighting applies the per-mode category policy: quick mode
// uses supporting doctrine only, normal mode includes counter at
// reduced weight, war mode includes everything at full weight.
func applyModeWeighting(results []Result, mode domain.Mode) []Result {
	switch mode {
	case domain.ModeQuick:
		kept := results[:0]
		for _, r := range results {
			if r.Category == CategorySupport {
				kept = append(kept, r)
			}
		}
		return kept
	case domain.ModeWar:
		return results
	default:
		for i := range results {
			if results[i].Category == CategoryCounter {
				results[i].Score *= counterWeightNormal
			}
		}
		return results
	}
}

// Partition splits a retrieved window into its three categories,
// preserving score order within each.
func Partition(results []Result) (support, counter, neutral []Result) {
	for _, r := range results {
		switch r.Category {
		case CategorySupport:
			support = append(support, r)
		case CategoryCounter:
			counter = append(counter, r)
		default:
			neutral = append(neutral, r)
		}
	}
	return support, counter, neutral
}
