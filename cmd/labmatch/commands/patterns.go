package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/match"
)

// NewPatternsCmd constructs the `labmatch patterns` command, which lists the
// retrieval pattern table.
func NewPatternsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the retrieval patterns and their collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs := match.Patterns()
			if asJSON {
				type row struct {
					Pattern     match.Pattern `json:"pattern"`
					Description string        `json:"description"`
					Collection  string        `json:"collection"`
					Fields      []string      `json:"fields"`
				}
				rows := make([]row, 0, len(cfgs))
				for _, c := range cfgs {
					rows = append(rows, row{c.Pattern, c.Description, c.Collection, c.Projection()})
				}
				return printJSON(cmd.OutOrStdout(), rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATTERN\tDESCRIPTION\tCOLLECTION\tFIELDS")
			for _, c := range cfgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Pattern, c.Description, c.Collection, strings.Join(c.Projection(), ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
