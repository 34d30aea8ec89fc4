// Package cmd provides the CLI commands for moltworker.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/XPrime17/moltworker/internal/config"
)

var cfgFile string
var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "moltworker",
	Short: "moltworker - gateway lifecycle supervisor",
	Long: `moltworker keeps the gateway process inside the sandbox aligned with
the current configuration.

It computes a fingerprint over the gateway-affecting configuration, compares
it to the fingerprint the running gateway persisted at startup, and either
reuses the process or replaces it. The sandbox process table is the single
source of truth: moltworker itself keeps no state between invocations.

Quick start:
  1. Create a config file: moltworker.yaml
  2. Run: moltworker ensure

Configuration:
  Config is loaded from moltworker.yaml in the current directory,
  $HOME/.moltworker/, or /etc/moltworker/.

  Environment variables can override config values with the MOLTWORKER_ prefix.
  Example: MOLTWORKER_GATEWAY_PORT=18790

Commands:
  ensure      Start the gateway if needed, reusing a current one
  restart     Unconditionally replace the gateway
  status      Show the gateway as the supervisor sees it
  serve       Run the reconcile loop with the admin API
  stop        Stop a running serve daemon
  hash-token  Generate an argon2id hash for the admin token
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./moltworker.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level override (debug, info, warn, error)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
