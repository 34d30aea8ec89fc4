package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/XPrime17/moltworker/internal/telemetry"
)

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Start the gateway if needed, reusing a current one",
	Long: `Ensure a gateway matching the current configuration is running.

A running gateway whose persisted fingerprint matches the current config is
reused after a readiness check. A gateway with a different or missing
fingerprint is killed and replaced. If no gateway is running, one is
started.

Examples:
  # Converge the gateway to the current config
  moltworker ensure

  # With a specific config file
  moltworker --config /path/to/moltworker.yaml ensure`,
	RunE: runEnsure,
}

func init() {
	rootCmd.AddCommand(ensureCmd)
}

func runEnsure(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rt.cfg.Supervisor.Tracing, "moltworker")
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	proc, err := rt.sup.Ensure(ctx, rt.sandbox, rt.cfg)
	if err != nil {
		return err
	}

	fmt.Printf("gateway ready: %s (%s)\n", proc.ID(), proc.Command())
	return nil
}
