package war

import (
	"regexp"
	"strings"

	"github.com/counselengine/counsel/domain"
)

// refusalPhrases are disallowed refusal-style constructions that must
// never reach a war-mode justification verbatim — a minister refusing to
// engage is not a position, it is a missing one. Each match is replaced
// with the fixed marker so the audit record shows exactly what was
// removed without guessing at free-form replacement text.
var refusalPhrases = []string{
	"i cannot help with this",
	"i can't help with this",
	"i cannot assist with this",
	"i am not comfortable",
	"i'm not comfortable",
	"as an ai",
	"this is unethical",
	"i must decline",
	"i won't provide",
}

const refusalMarker = "[REFUSAL_REMOVED]"

// hedgePatterns catch hedged or diffused-responsibility phrasing that
// isn't an outright refusal but still has no place in a war-mode
// recommendation. Matches are tagged rather than deleted so the audit
// trail shows what conceptual pattern was present.
var hedgePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)it could be argued that`),
	regexp.MustCompile(`(?i)some might say`),
	regexp.MustCompile(`(?i)in a sense`),
	regexp.MustCompile(`(?i)to some extent`),
	regexp.MustCompile(`(?i)might possibly`),
	regexp.MustCompile(`(?i)\bperhaps\b`),
}

const suppressedMarker = "[SUPPRESSED]"

// mandatorySections lists the bracketed placeholders a war-mode
// justification must carry, appended if missing so the composition step
// always has a slot to fill in costs, risks, and exit conditions.
var mandatorySections = []struct {
	keyword     string
	placeholder string
}{
	{"cost", "[COSTS]"},
	{"risk", "[RISKS]"},
	{"exit", "[EXITS]"},
}

// filterRules is the per-minister rule subset: which of the three filter
// stages apply to that minister's speech. Behavior differences are data,
// not subclass overrides.
type filterRules struct {
	removeRefusals    bool
	suppressHedges    bool
	mandatorySections bool
}

var defaultRules = filterRules{removeRefusals: true, suppressHedges: true, mandatorySections: true}

// ministerRules customizes the rule subset per minister. Truth is fully
// exempt (handled before the rules are consulted). Risk and Optionality
// keep their hedged phrasing — those two ministers exist to voice doubt,
// and suppressing their hedges would flatten the one signal they carry.
// Diplomacy's refusal-style language survives for the same reason: a
// diplomatic objection is a position, not a refusal to hold one.
var ministerRules = map[domain.MinisterId]filterRules{
	domain.MinisterRisk:        {removeRefusals: true, suppressHedges: false, mandatorySections: true},
	domain.MinisterOptionality: {removeRefusals: true, suppressHedges: false, mandatorySections: true},
	domain.MinisterDiplomacy:   {removeRefusals: false, suppressHedges: true, mandatorySections: true},
}

// FilterResult records what FilterSpeech did to one minister's
// justification: how many disallowed phrases and hedge patterns were
// found, which mandatory placeholders were appended, and both the
// original and filtered text so a user can always see what was
// suppressed.
type FilterResult struct {
	Minister           domain.MinisterId `json:"minister"`
	Original           string            `json:"original"`
	Filtered           string            `json:"filtered"`
	PhrasesRemoved     int               `json:"phrases_removed"`
	PatternsSuppressed int               `json:"patterns_suppressed"`
	MandatoryAdded     []string          `json:"mandatory_added"`
	WasFiltered        bool              `json:"was_filtered"`
}

// FilterSpeech applies the deterministic war-mode speech filter to one
// minister's justification: refusal-phrase removal, hedge-pattern
// suppression, then mandatory-section backfill, each stage gated by the
// minister's rule subset. The Truth minister is exempt in full — its
// role is to state facts plainly, including uncomfortable ones, and
// flattening its language would defeat that.
func FilterSpeech(minister domain.MinisterId, text string) FilterResult {
	if minister == domain.MinisterTruth {
		return FilterResult{Minister: minister, Original: text, Filtered: text}
	}

	rules, ok := ministerRules[minister]
	if !ok {
		rules = defaultRules
	}

	out := text
	phrasesRemoved := 0
	if rules.removeRefusals {
		for _, phrase := range refusalPhrases {
			re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(phrase))
			if n := len(re.FindAllStringIndex(out, -1)); n > 0 {
				phrasesRemoved += n
				out = re.ReplaceAllString(out, refusalMarker)
			}
		}
	}

	patternsSuppressed := 0
	if rules.suppressHedges {
		for _, pattern := range hedgePatterns {
			if n := len(pattern.FindAllStringIndex(out, -1)); n > 0 {
				patternsSuppressed += n
				out = pattern.ReplaceAllString(out, suppressedMarker)
			}
		}
	}
	out = collapseSpaces(out)

	var added []string
	if rules.mandatorySections {
		lower := strings.ToLower(out)
		for _, section := range mandatorySections {
			if !strings.Contains(lower, section.keyword) {
				out = strings.TrimSpace(out) + " " + section.placeholder
				added = append(added, section.placeholder)
			}
		}
	}

	return FilterResult{
		Minister:           minister,
		Original:           text,
		Filtered:           out,
		PhrasesRemoved:     phrasesRemoved,
		PatternsSuppressed: patternsSuppressed,
		MandatoryAdded:     added,
		WasFiltered:        phrasesRemoved > 0 || patternsSuppressed > 0 || len(added) > 0,
	}
}

func collapseSpaces(s string) string {
	re := regexp.MustCompile(`[ \t]{2,}`)
	return strings.TrimSpace(re.ReplaceAllString(s, " "))
}
