package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/pkg/logger"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect service configuration",
	}
	cmd.AddCommand(newConfigCheckCommand())
	return cmd
}

func newConfigCheckCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, printing any warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfigFrom(logger.NewNop(), dir)
			if err != nil {
				return err
			}
			for _, warning := range cfg.Warnings() {
				fmt.Fprintln(cmd.OutOrStdout(), "warning:", warning)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"ok: backend=%s algorithm=%s rotation=%s expiration=%s\n",
				cfg.Registry.Backend, cfg.Keys.Algorithm,
				cfg.Keys.RotationInterval(), cfg.Keys.Expiration(),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "config-dir", "", "directory containing config.yaml")
	return cmd
}
