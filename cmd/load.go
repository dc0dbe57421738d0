package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dining-cli/internal/inspection"
	"github.com/sells-group/dining-cli/internal/model"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the inspection dataset and report what was read",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("load"); err != nil {
			return err
		}
		remote, _ := cmd.Flags().GetBool("remote")

		table, err := newLoader().Load(cmd.Context(), sourceFromFlags(remote))
		if err != nil {
			return eris.Wrap(err, "load")
		}

		formatLoadReport(os.Stdout, table, inspection.Current(table.Records))
		return nil
	},
}

func init() {
	loadCmd.Flags().Bool("remote", false, "fetch from the open data API (falls back to the archive)")
	rootCmd.AddCommand(loadCmd)
}

// formatLoadReport writes row counts for a loaded table to w.
func formatLoadReport(out io.Writer, table *model.RecordTable, current []model.CurrentInspection) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", table.Source)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", table.Len())
	_, _ = fmt.Fprintf(w, "Establishments:\t%d\n", len(current))
	if len(table.UncastColumns) > 0 {
		_, _ = fmt.Fprintf(w, "Uncast columns:\t%s\n", strings.Join(table.UncastColumns, ", "))
	}
	_ = w.Flush()
}
