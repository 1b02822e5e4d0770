package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "duraqd",
	Short: "Inspect and drive a duraq commit log directly",
	Long: `duraqd operates a single commit log directory without a network
front-end: put appends one record, fetch reads one back by physical
offset, recover replays the startup scan, and warm pre-faults a
segment's pages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults)")
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
