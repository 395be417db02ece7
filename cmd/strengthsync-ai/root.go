package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "strengthsync-ai",
	Short: "StrengthSync AI governance gateway",
	Long: `The StrengthSync AI governance gateway is the single choke point for
the platform's model invocations.

Every generation request passes a combined admission check (request rate
ceilings plus daily token budgets) before reaching the provider, and every
attempted invocation leaves exactly one record in the durable usage ledger.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
}
