package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/router"
)

func newCounselCmd() *cobra.Command {
	var (
		domainFlag      string
		stakes          string
		urgency         float64
		emotionalLoad   float64
		fatigue         float64
		arena           string
		reversibility   string
		constraints     string
		analyzePatterns bool
		logMemory       bool
	)

	cmd := &cobra.Command{
		Use:   "counsel <quick|normal|war>",
		Short: "ask the council for a verdict on a decision",
		Long: `Reads a free-text situation description from stdin and prints a
structured verdict. War mode additionally requires --arena and
--reversibility; a goal the constraint gate blocks exits with code 3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := domain.Mode(args[0])
			switch mode {
			case domain.ModeQuick, domain.ModeNormal, domain.ModeWar:
			default:
				return exitError{code: exitInvalidArgs, msg: fmt.Sprintf("unknown mode %q (want quick, normal, or war)", args[0])}
			}

			d, err := domain.ParseDomain(domainFlag)
			if err != nil {
				return exitError{code: exitInvalidArgs, msg: err.Error()}
			}
			if mode == domain.ModeWar && (arena == "" || reversibility == "") {
				return exitError{code: exitInvalidArgs, msg: "war mode requires --arena and --reversibility"}
			}
			if reversibility != "" {
				switch reversibility {
				case "reversible", "partially_reversible", "irreversible":
				default:
					return exitError{code: exitInvalidArgs, msg: fmt.Sprintf("unknown reversibility %q", reversibility)}
				}
			}

			question, err := readSituation()
			if err != nil {
				return err
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Counsel(cmd.Context(), router.Request{
				Mode:          mode,
				Question:      question,
				Domains:       []domain.Domain{d},
				Stakes:        stakes,
				Urgency:       urgency,
				EmotionalLoad: emotionalLoad,
				Fatigue:       fatigue,
				Arena:         arena,
				Reversibility: reversibility,
				Constraints:   splitCSV(constraints),
			}, logMemory)
			if err != nil {
				return err
			}

			printVerdict(res)

			if analyzePatterns {
				summary, err := eng.Relearn(cmd.Context())
				if err != nil {
					return err
				}
				printPatterns(summary.Patterns)
			}
			if logMemory && res.EventID != "" {
				fmt.Printf("\nevent_id: %s\n", res.EventID)
			}

			if res.Blocked {
				return exitError{code: exitBlocked}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "", "decision domain (required)")
	cmd.Flags().StringVar(&stakes, "stakes", "", "stakes category (low, medium, high, critical, ...)")
	cmd.Flags().Float64Var(&urgency, "urgency", 0, "urgency 0-1")
	cmd.Flags().Float64Var(&emotionalLoad, "emotional-load", 0, "emotional load 0-1")
	cmd.Flags().Float64Var(&fatigue, "fatigue", 0, "fatigue 0-1")
	cmd.Flags().StringVar(&arena, "arena", "", "war-mode arena (career, market, ...)")
	cmd.Flags().StringVar(&reversibility, "reversibility", "", "reversible | partially_reversible | irreversible")
	cmd.Flags().StringVar(&constraints, "constraints", "", "comma-separated hard constraints")
	cmd.Flags().BoolVar(&analyzePatterns, "analyze-patterns", false, "re-run pattern detection and print what recurs")
	cmd.Flags().BoolVar(&logMemory, "log-memory", false, "record this decision to the ledger and print its event_id")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func readSituation() (string, error) {
	fmt.Fprintln(os.Stderr, "Describe the situation (end with EOF / ctrl-d):")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading situation: %w", err)
	}
	question := strings.TrimSpace(strings.Join(lines, "\n"))
	if question == "" {
		return "", exitError{code: exitInvalidArgs, msg: "empty situation description"}
	}
	return question, nil
}
