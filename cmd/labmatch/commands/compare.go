package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/logging"
	"github.com/54b3r/labmatch-go/internal/match"
	"github.com/54b3r/labmatch-go/internal/store"
)

// NewCompareCmd constructs the `labmatch compare` command, which runs all
// three patterns concurrently and prints the side-by-side result.
func NewCompareCmd() *cobra.Command {
	var qf queryFlags
	var allowPartial bool

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run patterns A, B and C side by side",
		Long: `Run every retrieval pattern against the same request concurrently.

By default any pattern failure fails the whole comparison. With
--allow-partial the patterns that succeeded are returned and the failures
are listed under "failures".

Examples:
  labmatch compare --category AI --title 医療画像診断 --description "深層学習による画像診断"
  labmatch compare --allow-partial --category AI --title t --description d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			eng, err := buildEngine(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}
			defer eng.Close()

			start := time.Now()
			res, err := eng.comparator.CompareWith(ctx, q, match.CompareOptions{AllowPartial: allowPartial})
			eng.record(ctx, log, store.CompareEntry(q, res, time.Since(start), err))
			if err != nil {
				return err
			}

			log.Info("compare complete", "summary", res.String())
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	qf.register(cmd)
	cmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "Return successful patterns even if others fail")

	return cmd
}
