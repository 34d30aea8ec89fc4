package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/XPrime17/moltworker/internal/telemetry"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Unconditionally replace the gateway",
	Long: `Kill any running gateway and start a fresh one.

Unlike ensure, restart never reuses an existing process, even one whose
fingerprint matches the current configuration. Use it to force a clean
slate after a gateway misbehaves in ways the fingerprint cannot see.

Examples:
  moltworker restart`,
	RunE: runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
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

	proc, err := rt.sup.Restart(ctx, rt.sandbox, rt.cfg)
	if err != nil {
		return err
	}

	fmt.Printf("gateway restarted: %s (%s)\n", proc.ID(), proc.Command())
	return nil
}
