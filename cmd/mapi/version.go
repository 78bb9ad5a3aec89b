package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the mapi build version, set via -ldflags "-X main.Version=...".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mapi version",
		// version needs no database connection, so it overrides the root's
		// PersistentPreRunE (cobra runs only the nearest one in the chain).
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}
