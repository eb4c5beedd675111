package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"benchweaver/internal/core"
)

func (a *app) statusCommand() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report which pairs are fresh without building or running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			pairs, err := m.Pairs(only...)
			if err != nil {
				return withExit(ExitInvalidInvocation, err)
			}
			sess, err := core.OpenSession(core.SessionOptions{
				RegistryPath: m.Registry,
				Resolver:     resolverFor(m),
				Artifacts:    layoutFor(m),
				Builder:      core.NewCommandBuilder(m.Build.Command, m.Build.Dir),
				Runner:       core.NewProcessRunner(m.DataDir),
				Logger:       a.logger,
			})
			if err != nil {
				return withExit(ExitConfigError, err)
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			stale := 0
			for _, st := range sess.Status(pairs) {
				state, reason := "fresh", "-"
				if !st.Freshness.Fresh() {
					state, reason = "stale", string(st.Freshness.Reason)
					stale++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", st.Pair.Executable, st.Pair.Dataset.Name, state, reason, st.Artifact)
			}
			_ = tw.Flush()
			fmt.Fprintf(w, "fresh=%d stale=%d\n", len(pairs)-stale, stale)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "restrict the report to these executables")
	return cmd
}
