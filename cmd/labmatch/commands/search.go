package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/logging"
	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/store"
)

// NewSearchCmd constructs the `labmatch search` command, which runs one
// retrieval pattern and prints the explained candidates as JSON.
func NewSearchCmd() *cobra.Command {
	var qf queryFlags
	var pattern string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find and explain researcher candidates with one pattern",
		Long: `Embed the project request, search the pattern's collection and ask the
chat model to explain every candidate. Prints the result set as JSON.

Examples:
  labmatch search --category AI --title 医療画像診断 --description "深層学習による画像診断"
  labmatch search -P C --category 材料 --title 電池 --description 全固体電池 -k 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := match.ParsePattern(pattern)
			if err != nil {
				return err
			}
			q, err := qf.query()
			if err != nil {
				return err
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			eng, err := buildEngine(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer eng.Close()

			start := time.Now()
			set, err := eng.retriever.Retrieve(ctx, q, p)
			eng.record(ctx, log, store.SearchEntry(q, p, set, time.Since(start), err))
			if err != nil {
				return err
			}

			log.Debug("search complete", slog.Int("results", len(set.Results)))
			return printJSON(cmd.OutOrStdout(), set)
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVarP(&pattern, "pattern", "P", string(match.PatternA), "Retrieval pattern: A, B or C")

	return cmd
}
