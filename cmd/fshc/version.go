package main

import (
	"fmt"

	"github.com/spf13/cobra"

	fsh "github.com/gofhir/fsh"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fshc version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fshc %s\n", fsh.Version)
	},
}
