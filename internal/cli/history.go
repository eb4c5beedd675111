package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"benchweaver/internal/state"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			st, err := state.NewStore(m.StateDir)
			if err != nil {
				return withExit(ExitConfigError, err)
			}
			sessions, skipped, err := st.ListSessions()
			if err != nil {
				return withExit(ExitInternalError, err)
			}
			for _, id := range skipped {
				a.logger.Warn("Skipping unreadable session record", zap.String("session", id))
			}
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[len(sessions)-limit:]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, s := range sessions {
				var executed, skippedPairs, failed int
				for _, p := range s.Pairs {
					switch {
					case p.Failed:
						failed++
					case p.Decision == "EXECUTED":
						executed++
					default:
						skippedPairs++
					}
				}
				line := fmt.Sprintf("%s\t%s\t%s\t%s\texecuted=%d skipped=%d failed=%d",
					s.SessionID, s.StartTime.Format(time.RFC3339), s.Mode, s.Status, executed, skippedPairs, failed)
				if f, err := st.LoadFailure(s.SessionID); err == nil {
					line += fmt.Sprintf("\t%s: %s", f.ErrorCode, f.ErrorMessage)
				}
				fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent sessions")
	return cmd
}
