package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"benchweaver/internal/core"
)

func (a *app) artifactCommand() *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "artifact <executable> <dataset>",
		Short: "Show the measurement table produced for one pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			key := core.ArtifactKey{Executable: args[0], Dataset: core.NewDataset(args[1]).Name}
			layout := layoutFor(m)
			if !layout.Exists(key) {
				return exitf(ExitPairFailure, "no artifact for %s at %s", key, layout.Path(key))
			}
			table, err := core.ReadArtifact(layout.Path(key))
			if err != nil {
				return withExit(ExitPairFailure, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "path: %s\n", layout.Path(key))
			fmt.Fprintf(w, "columns: %s\n", strings.Join(table.Header, ", "))
			fmt.Fprintf(w, "rows: %d\n", len(table.Rows))
			if column != "" {
				values, ok := table.Column(column)
				if !ok {
					return exitf(ExitInvalidInvocation, "artifact has no column %q", column)
				}
				for _, v := range values {
					fmt.Fprintln(w, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "also print every value of this column")
	return cmd
}
