package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the vpanel command tree. Running the binary without a
// subcommand serves HTTP.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vpanel",
		Short:        "VPanel dashboard API server",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run migrations and start the HTTP server",
			RunE:  runServe,
		},
		newMigrateCmd(),
		newHashPasswordCmd(),
	)
	return root
}
