package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ahj-registry/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find jurisdictions by name, county or state",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		st, err := initStore(ctx, cfg, "")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		js, err := st.SearchJurisdictions(ctx, strings.Join(args, " "), limit)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		formatJurisdictions(cmd.OutOrStdout(), js)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "max number of matches")
	rootCmd.AddCommand(searchCmd)
}

func formatJurisdictions(out io.Writer, js []model.Jurisdiction) {
	if len(js) == 0 {
		_, _ = fmt.Fprintln(out, "No matches.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tNAME\tTYPE\tCOUNTY")
	for _, j := range js {
		county := "-"
		if j.CountyName != nil {
			county = *j.CountyName
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", j.ID, j.StateAbbr, j.Name, j.Type, county)
	}
	_ = w.Flush()
}
