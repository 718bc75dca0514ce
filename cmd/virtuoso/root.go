package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "virtuoso",
	Short: "Virtuoso records and plays scripted XMPP conversations",
	Long: `Virtuoso plays compositions (scripts of connect, send, cue and assert stanzas)
against XMPP accounts and reports a performance with a verdict per stanza.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the configuration file (default virtuoso.yaml)")
	flags.String("data-dir", "", "Directory of the file store")
	flags.String("store", "", "Store backend: file, memory or redis")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
}
