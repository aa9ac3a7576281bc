// Package cli implements the l10nsched command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the l10nsched command tree.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "l10nsched",
		Short:         "Fan localized builds out from en-US build events",
		Long:          "l10nsched resolves locale lists, filters them by platform and enqueues one localized build per locale into the build database.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "./l10nsched.yaml", "path to config file (yaml or json)")

	cmd.AddCommand(
		runCmd(&cfgPath),
		parseCmd(),
		triggerCmd(&cfgPath),
		onceCmd(),
	)
	return cmd
}
