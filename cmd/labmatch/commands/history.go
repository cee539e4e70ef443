package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/logging"
)

// NewHistoryCmd constructs the `labmatch history` command, which prints the
// most recent searches and comparisons from the local history log.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches and comparisons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("history: --limit must be positive, got %d", limit)
			}
			hs := openHistory(logging.New())
			if hs == nil {
				return fmt.Errorf("history: history log is not available")
			}
			defer func() { _ = hs.Close() }()

			entries, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKIND\tPATTERN\tTITLE\tTOP_K\tHITS\tDURATION\tERROR")
			for _, e := range entries {
				pattern := e.Pattern
				if pattern == "" {
					pattern = "-"
				}
				errKind := e.ErrorKind
				if errKind == "" && e.Error != "" {
					errKind = "error"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Kind, pattern, e.Title,
					e.TopK, e.Hits, e.Duration.Round(time.Millisecond), errKind)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
