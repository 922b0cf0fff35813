package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/counselengine/counsel/domain"
)

func newIngestCmd() *cobra.Command {
	var (
		bookID string
		title  string
		author string
		force  bool
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <text-file>",
		Short: "ingest a book's extracted text into the doctrine store",
		Long: `Runs the two-phase ingestion pipeline on a book's extracted text:
chapter structuring, per-chapter doctrine extraction, and deduplicated
embedding. Re-running on unchanged input inserts nothing. With --resume
the file argument is optional and only missing chapters are retried.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID == "" {
				return exitError{code: exitInvalidArgs, msg: "--book-id is required"}
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if resume {
				result, err := eng.ResumeIngest(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				fmt.Printf("resumed %s: %d chapters extracted, %d chunks embedded, %d skipped\n",
					bookID, result.ChaptersExtracted, result.ChunksEmbedded, result.ChunksSkipped)
				return nil
			}

			if len(args) != 1 {
				return exitError{code: exitInvalidArgs, msg: "a text file argument is required unless --resume is set"}
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return exitError{code: exitInvalidArgs, msg: err.Error()}
			}
			if title == "" {
				title = bookID
			}

			result, err := eng.IngestBook(cmd.Context(), bookID, title, author, filepath.Base(args[0]), string(data), force)
			if err != nil {
				return err
			}
			fmt.Printf("ingested %s: %d chapters, %d chunks embedded, %d skipped as duplicates\n",
				bookID, result.ChaptersExtracted, result.ChunksEmbedded, result.ChunksSkipped)
			if len(result.ChaptersFailed) > 0 {
				fmt.Printf("unresolved chapters (retry with --resume): %v\n", result.ChaptersFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bookID, "book-id", "", "stable book identifier (required)")
	cmd.Flags().StringVar(&title, "title", "", "book title (defaults to book-id)")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().BoolVar(&force, "force", false, "re-run phase-1 structuring even if structure.json exists")
	cmd.Flags().BoolVar(&resume, "resume", false, "retry only chapters whose extraction is missing")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report what is ingested and how much history the ledger holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			st, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("books: %d\n", len(st.Books))
			for _, b := range st.Books {
				fmt.Printf("  %s\n", b)
			}

			domains := make([]domain.Domain, 0, len(st.ChunksPerDomain))
			for d := range st.ChunksPerDomain {
				domains = append(domains, d)
			}
			sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
			for _, d := range domains {
				fmt.Printf("%s: %d chunks\n", d, st.ChunksPerDomain[d])
			}

			fmt.Printf("ledger: %d events, %d outcomes, %d patterns\n", st.Events, st.Outcomes, st.Patterns)
			return nil
		},
	}
}
