// Package synth turns retrieved doctrine into one minister's grounded
// position: an LLM call constrained by a JSON schema, followed by
// deterministic post-processing that no amount of prompting can be
// trusted to enforce on its own.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/llm"
	"github.com/counselengine/counsel/retrieval"
)

const systemPrompt = `You are a minister advising on a decision. You must ground every
claim in the doctrine excerpts provided. Never invent doctrine ids. Respond with a
single JSON object matching the required schema: stance, justification, doctrine_ids,
violations, constraints, confidence. Justification must cite doctrine only — no
narrative or courtly phrasing. Use NEEDS_DATA when the doctrine provided does not
support a confident stance. Only report violations if you are the truth minister and
the doctrine factually contradicts the premise of the question.`

// lowConfidenceCap caps confidence when a position cites fewer than two
// distinct doctrine chunks: a stance grounded on a single excerpt is not
// entitled to high confidence regardless of what the model reports.
const lowConfidenceCap = 0.6

// narrativePhrases is the fixed list of courtly or first-person narrative
// constructions stripped from every justification. The prompt forbids
// them; the sanitizer enforces it.
var narrativePhrases = []string{
	"i believe",
	"i think",
	"respectfully",
	"honored members",
	"esteemed colleagues",
	"in my humble opinion",
	"if i may",
	"with all due respect",
}

// insufficientKnowledgeJustification is the fixed justification a
// position carries when retrieval produced nothing to ground a stance in.
const insufficientKnowledgeJustification = "no doctrine available for this domain"

// Engine synthesizes a minister's position from retrieved doctrine.
type Engine struct {
	chat llm.Provider
}

func New(chat llm.Provider) *Engine {
	return &Engine{chat: chat}
}

// Synthesize produces one MinisterPosition for a minister given the
// doctrine retrieved on its behalf. When retrieval reported insufficient
// knowledge, no LLM call is made: the position is forced to NEEDS_DATA
// so a hallucinated stance can never stand in for missing grounding.
func (e *Engine) Synthesize(ctx context.Context, minister domain.MinisterId, question string, retrieved retrieval.RetrievedSet) (domain.MinisterPosition, error) {
	if retrieved.Insufficient || len(retrieved.Results) == 0 {
		return domain.MinisterPosition{
			Minister:      minister,
			Stance:        domain.StanceNeedsData,
			Justification: insufficientKnowledgeJustification,
			Confidence:    0,
		}, nil
	}

	prompt := buildPrompt(minister, question, retrieved)
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return domain.MinisterPosition{}, fmt.Errorf("synth: chat request: %w", err)
	}

	raw, err := validateSchema(ctx, []byte(resp.Content))
	if err != nil {
		return domain.MinisterPosition{}, err
	}

	pos, err := toPosition(minister, raw)
	if err != nil {
		return domain.MinisterPosition{}, err
	}

	knownIDs := make(map[string]bool, len(retrieved.Results))
	for _, r := range retrieved.Results {
		knownIDs[r.ChunkHash] = true
	}
	pos = sanitize(pos, knownIDs)
	return pos, nil
}

func buildPrompt(minister domain.MinisterId, question string, retrieved retrieval.RetrievedSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Minister: %s\n\nQuestion: %s\n\nDoctrine excerpts:\n", minister, question)
	for _, r := range retrieved.Results {
		fmt.Fprintf(&b, "- [%s] (book=%s, chapter=%d, kind=%s) %s\n",
			r.ChunkHash, r.BookID, r.ChapterIndex, r.Category, r.Content)
	}
	return b.String()
}

func toPosition(minister domain.MinisterId, raw map[string]interface{}) (domain.MinisterPosition, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return domain.MinisterPosition{}, fmt.Errorf("synth: re-marshaling validated output: %w", err)
	}
	var pos domain.MinisterPosition
	if err := json.Unmarshal(b, &pos); err != nil {
		return domain.MinisterPosition{}, fmt.Errorf("synth: decoding validated output: %w", err)
	}
	pos.Minister = minister
	return pos, nil
}

// sanitize applies the deterministic invariants a synthesized position
// must hold regardless of what the LLM produced:
//  1. narrative phrases are stripped from the justification.
//  2. doctrine_ids are deduplicated and filtered to ids that were
//     actually retrieved — an LLM cannot cite doctrine it wasn't shown —
//     and unique_doctrine_count is recomputed from the result.
//  3. citing fewer than two distinct doctrine chunks caps confidence at 0.6.
//  4. only the Truth minister may populate violations; anyone else's are
//     dropped. A surviving non-empty violations list forces STOP and adds
//     "factual inconsistencies detected" to the constraints.
func sanitize(pos domain.MinisterPosition, knownIDs map[string]bool) domain.MinisterPosition {
	pos.Justification = stripNarrative(pos.Justification)

	pos.DoctrineIDs = dedupKnown(pos.DoctrineIDs, knownIDs)
	pos.UniqueDoctrineCount = len(pos.DoctrineIDs)

	if pos.UniqueDoctrineCount < 2 && pos.Confidence > lowConfidenceCap {
		pos.Confidence = lowConfidenceCap
	}

	if pos.Minister != domain.MinisterTruth {
		pos.Violations = nil
	}
	if len(pos.Violations) > 0 {
		pos.Stance = domain.StanceStop
		pos.Constraints = append(pos.Constraints, "factual inconsistencies detected")
	}

	return pos
}

func stripNarrative(s string) string {
	for _, phrase := range narrativePhrases {
		for {
			idx := strings.Index(strings.ToLower(s), phrase)
			if idx < 0 {
				break
			}
			s = s[:idx] + s[idx+len(phrase):]
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimPrefix(strings.TrimSpace(s), ", ")
}

func dedupKnown(ids []string, knownIDs map[string]bool) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] || !knownIDs[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
