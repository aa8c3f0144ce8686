package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize strata storage",
		Long:  "Create the configuration and data directories, write a default config.yaml,\nand apply the storage schema.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := writeDefaultConfig(a.configDir)
			if err != nil {
				return err
			}
			if written {
				// Reload so data_dir and output from the new file apply.
				if err := a.load(cmd); err != nil {
					return err
				}
			}

			store, err := a.attach()
			if err != nil {
				return err
			}
			if err := store.Detach(); err != nil {
				return fmt.Errorf("detaching store: %w", err)
			}

			a.logger.Info("initialized", "config_dir", a.configDir, "data_dir", store.DataDir())
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized strata in %s\n", store.DataDir())
			return nil
		},
	}
}
