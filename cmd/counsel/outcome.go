package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/ledger"
)

func newOutcomeCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "outcome <event_id>",
		Short: "record how a counseled decision actually turned out",
		Long: `Prompts for the result, damage, benefit, and lessons of a previously
recorded decision event, appends the outcome to the ledger, and prints
what the engine learned from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID := args[0]
			switch domain.Mode(mode) {
			case domain.ModeQuick, domain.ModeNormal, domain.ModeWar:
			default:
				return exitError{code: exitInvalidArgs, msg: fmt.Sprintf("unknown mode %q", mode)}
			}

			out, err := promptOutcome(eventID)
			if err != nil {
				return err
			}

			followed, overrideReason, err := promptFollowed()
			if err != nil {
				return err
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if !followed {
				if err := eng.RecordOverride(cmd.Context(), eventID, overrideReason); err != nil {
					return err
				}
			}

			summary, err := eng.ResolveOutcome(cmd.Context(), out)
			if err != nil {
				if errors.Is(err, ledger.ErrEventNotFound) {
					return exitError{code: exitInvalidArgs, msg: fmt.Sprintf("event %s not found", eventID)}
				}
				return err
			}

			printLearning(summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "normal", "mode the decision ran in (quick|normal|war)")
	cmd.MarkFlagRequired("mode")
	return cmd
}

func promptOutcome(eventID string) (domain.Outcome, error) {
	reader := bufio.NewReader(os.Stdin)

	result, err := promptLine(reader, "result (success|partial|failure): ")
	if err != nil {
		return domain.Outcome{}, err
	}
	switch domain.OutcomeResult(result) {
	case domain.OutcomeSuccess, domain.OutcomePartial, domain.OutcomeFailure:
	default:
		return domain.Outcome{}, exitError{code: exitInvalidArgs, msg: fmt.Sprintf("unknown result %q", result)}
	}

	damage, err := promptFloat(reader, "damage (0-1): ")
	if err != nil {
		return domain.Outcome{}, err
	}
	benefit, err := promptFloat(reader, "benefit (0-1): ")
	if err != nil {
		return domain.Outcome{}, err
	}
	lessonsLine, err := promptLine(reader, "lessons (semicolon-separated, optional): ")
	if err != nil {
		return domain.Outcome{}, err
	}

	var lessons []string
	for _, l := range strings.Split(lessonsLine, ";") {
		if l = strings.TrimSpace(l); l != "" {
			lessons = append(lessons, l)
		}
	}

	return domain.Outcome{
		EventID: eventID,
		Result:  domain.OutcomeResult(result),
		Damage:  damage,
		Benefit: benefit,
		Lessons: lessons,
	}, nil
}

func promptFollowed() (bool, string, error) {
	reader := bufio.NewReader(os.Stdin)
	answer, err := promptLine(reader, "did the action follow the counsel? (y/n): ")
	if err != nil {
		return true, "", err
	}
	if answer == "" || strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
		return true, "", nil
	}
	reason, err := promptLine(reader, "why was the counsel overridden? ")
	if err != nil {
		return false, "", err
	}
	return false, reason, nil
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptFloat(reader *bufio.Reader, prompt string) (float64, error) {
	line, err := promptLine(reader, prompt)
	if err != nil {
		return 0, err
	}
	if line == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, exitError{code: exitInvalidArgs, msg: fmt.Sprintf("expected a number in [0,1], got %q", line)}
	}
	return v, nil
}
