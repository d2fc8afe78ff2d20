package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/ahj-registry/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the state/local adoption hierarchy as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Export.Output = out
		}
		ctx := commandContext(cmd)

		st, err := initStore(ctx, cfg, "export")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := export.New(st).WriteFile(ctx, cfg.Export.Output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d jurisdictions, %d adoptions\n",
			cfg.Export.Output, doc.Meta.TotalJurisdictions, doc.Meta.TotalAdoptions)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output path (default export.output)")
	rootCmd.AddCommand(exportCmd)
}
