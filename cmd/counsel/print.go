package main

import (
	"fmt"
	"strings"

	counsel "github.com/counselengine/counsel"
	"github.com/counselengine/counsel/domain"
)

func printVerdict(res counsel.CounselResult) {
	if res.Blocked {
		fmt.Println("feasibility: blocked")
		if res.ConstraintGate != nil {
			fmt.Printf("matched signal: %s\n", res.ConstraintGate.MatchedSignal)
			fmt.Printf("recommended posture: %s\n", res.ConstraintGate.RecommendedPosture)
		}
		return
	}

	fmt.Printf("mode: %s", res.ExecutedMode)
	if res.Escalated {
		fmt.Printf(" (escalated from %s)", res.RequestedMode)
	}
	fmt.Println()

	ministers := make([]string, len(res.Council.Selected))
	for i, m := range res.Council.Selected {
		ministers[i] = string(m)
	}
	fmt.Printf("council: %s\n", strings.Join(ministers, ", "))
	if len(res.Books) > 0 {
		fmt.Printf("books: %s\n", strings.Join(res.Books, ", "))
	}

	fmt.Println()
	for _, p := range res.Proceedings.Positions {
		fmt.Printf("%s [%s, confidence %.2f, doctrine %d]\n  %s\n",
			p.Minister, p.Stance, p.Confidence, p.UniqueDoctrineCount, p.Justification)
		if len(p.Constraints) > 0 {
			fmt.Printf("  constraints: %s\n", strings.Join(p.Constraints, "; "))
		}
	}

	if len(res.Proceedings.Conflicts) > 0 {
		fmt.Println()
		for _, c := range res.Proceedings.Conflicts {
			fmt.Printf("conflict [%s/%s]: %s\n", c.Kind, c.Severity, c.Reason)
		}
	}
	if t := res.Proceedings.Tribunal; t != nil {
		fmt.Printf("\ntribunal: %s — %s\n", t.Decision, t.Reasoning)
		if len(t.Constraints) > 0 {
			fmt.Printf("  constraints: %s\n", strings.Join(t.Constraints, "; "))
		}
		if len(t.RequiredData) > 0 {
			fmt.Printf("  required data: %s\n", strings.Join(t.RequiredData, "; "))
		}
	}

	if len(res.SpeechFilters) > 0 {
		for _, f := range res.SpeechFilters {
			if f.WasFiltered {
				fmt.Printf("\nspeech filter [%s]: %d phrases removed, %d patterns suppressed\n  original: %s\n",
					f.Minister, f.PhrasesRemoved, f.PatternsSuppressed, f.Original)
			}
		}
	}

	if len(res.LowConfidence) > 0 {
		names := make([]string, len(res.LowConfidence))
		for i, m := range res.LowConfidence {
			names[i] = string(m)
		}
		fmt.Printf("\nflagged (below confidence threshold, not authoritative): %s\n", strings.Join(names, ", "))
	}

	fmt.Printf("\nverdict [%s]: %s\n", res.Proceedings.FinalStance, res.Proceedings.FinalVerdict)
}

func printPatterns(patterns []domain.Pattern) {
	if len(patterns) == 0 {
		fmt.Println("\nno recurring patterns detected")
		return
	}
	fmt.Println("\nrecurring patterns:")
	for _, p := range patterns {
		fmt.Printf("  %s (x%d): %s\n", p.Kind, p.Frequency, p.Description)
	}
}

func printLearning(summary counsel.LearningSummary) {
	printPatterns(summary.Patterns)
	fmt.Printf("\nposture: caution %.2f, urgency threshold %.2f, bluntness %.2f\n",
		summary.Posture.Caution, summary.Posture.UrgencyThreshold, summary.Posture.Bluntness)
	for _, c := range summary.Calibrations {
		fmt.Printf("calibration: %s/%s -> %.2f\n", c.Target, c.Domain, c.Confidence)
	}
}
