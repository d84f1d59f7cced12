// Package cli implements the keywheelctl operator commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the keywheelctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "keywheelctl",
		Short:         "Operator tooling for the keywheel signing-key service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeysCommand())
	root.AddCommand(newConfigCommand())
	return root
}
