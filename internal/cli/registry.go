package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"benchweaver/internal/core"
)

func (a *app) registryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect or edit the digest registry",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every recorded executable and its digest",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := a.openRegistry()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, name := range reg.Names() {
					d, _ := reg.Lookup(name)
					fmt.Fprintf(w, "%s  %s\n", d, name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "forget <executable>",
			Short: "Drop an executable's digest so its next run re-measures every dataset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := a.openRegistry()
				if err != nil {
					return err
				}
				removed, err := reg.Forget(args[0])
				if err != nil {
					return withExit(ExitInternalError, err)
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is not recorded\n", args[0])
					return nil
				}
				a.logger.Info("Forgot executable digest", zap.String("executable", args[0]), zap.String("registry", reg.Path()))
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// openRegistry loads the manifest's registry. Unlike a session, maintenance
// commands refuse to work on a corrupt file.
func (a *app) openRegistry() (*core.Registry, error) {
	m, err := a.loadManifest()
	if err != nil {
		return nil, err
	}
	reg, err := core.LoadRegistry(m.Registry)
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	return reg, nil
}
