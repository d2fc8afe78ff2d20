package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ahj-registry/internal/store"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show registry totals and coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)

		st, err := initStore(ctx, cfg, "")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "summary")
		}
		formatStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

// formatStats writes registry totals and per-dimension counts to out.
func formatStats(out io.Writer, s *store.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Jurisdictions:\t%d\n", s.TotalJurisdictions)
	_, _ = fmt.Fprintf(w, "Adoptions:\t%d\n", s.TotalAdoptions)
	_, _ = fmt.Fprintf(w, "Amendments:\t%d\n", s.TotalAmendments)

	section := func(title string, counts []store.Count) {
		if len(counts) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "\n%s\n", title)
		for _, c := range counts {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", c.Key, c.N)
		}
	}
	section("By type", s.ByType)
	section("Code coverage", s.CodeCoverage)
	section("By status", s.ByStatus)
	_ = w.Flush()

	if len(s.RecentRuns) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent runs")
		formatRunsList(out, s.RecentRuns)
	}
}
