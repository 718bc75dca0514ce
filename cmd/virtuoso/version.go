package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/virtuoso"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of virtuoso",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "virtuoso version %s\n", strings.TrimSpace(virtuoso.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
