package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	adminhttp "github.com/XPrime17/moltworker/internal/adapter/inbound/http"
	"github.com/XPrime17/moltworker/internal/guard"
	"github.com/XPrime17/moltworker/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconcile loop with the admin API",
	Long: `Run moltworker as a daemon.

The daemon re-checks the gateway's fingerprint on every reconcile interval
and replaces stale gateways automatically. An optional CEL guard expression
(supervisor.restart_guard) can confine automatic replacement, for example
to a maintenance window.

The admin HTTP API (admin.addr) exposes health, metrics, gateway status,
the lifecycle journal, and manual ensure/restart endpoints.

Examples:
  moltworker serve
  MOLTWORKER_SUPERVISOR_RECONCILE_INTERVAL=30s moltworker serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	shutdownTracing, err := telemetry.Setup(rt.cfg.Supervisor.Tracing, "moltworker")
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Write PID file so "moltworker stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	var restartGuard *guard.RestartGuard
	if expr := rt.cfg.Supervisor.RestartGuard; expr != "" {
		restartGuard, err = guard.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid restart_guard: %w", err)
		}
		logger.Info("restart guard active", "expression", expr)
	}

	interval, err := time.ParseDuration(rt.cfg.Supervisor.ReconcileInterval)
	if err != nil {
		return fmt.Errorf("invalid reconcile_interval: %w", err)
	}

	// Initial convergence before the loop takes over.
	if _, err := rt.sup.Ensure(ctx, rt.sandbox, rt.cfg); err != nil {
		return fmt.Errorf("initial ensure failed: %w", err)
	}

	errCh := make(chan error, 1)
	if rt.cfg.Admin.Addr != "" {
		opts := []adminhttp.Option{
			adminhttp.WithAddr(rt.cfg.Admin.Addr),
			adminhttp.WithLogger(logger),
			adminhttp.WithRegistry(rt.registry),
			adminhttp.WithTokenHash(rt.cfg.Admin.TokenHash),
		}
		if rt.journal != nil {
			opts = append(opts, adminhttp.WithJournal(rt.journal))
		}
		transport := adminhttp.NewTransport(rt.sup, rt.sandbox, rt.cfg, opts...)
		go func() {
			if err := transport.Start(ctx); err != nil {
				errCh <- fmt.Errorf("admin server failed: %w", err)
			}
		}()
	}

	logger.Info("reconcile loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("moltworker stopped")
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			reconcile(ctx, rt, restartGuard)
		}
	}
}

// reconcile runs one pass of the loop: check the fingerprint, consult the
// guard, converge if permitted. Failures are logged and retried on the next
// tick rather than tearing the daemon down.
func reconcile(ctx context.Context, rt *appRuntime, restartGuard *guard.RestartGuard) {
	res := rt.sup.CheckVersion(ctx, rt.sandbox, rt.cfg)
	if res.Current {
		rt.logger.Debug("gateway current", "fingerprint", res.Expected)
		return
	}

	allowed, err := restartGuard.Allow(ctx, res, time.Now())
	if err != nil {
		rt.logger.Error("restart guard evaluation failed", "error", err)
		return
	}
	if !allowed {
		rt.logger.Info("restart withheld by guard", "reason", res.Reason)
		return
	}

	if _, err := rt.sup.Ensure(ctx, rt.sandbox, rt.cfg); err != nil {
		rt.logger.Error("reconcile ensure failed", "error", err)
	}
}

// pidFilePath returns the standard location for the moltworker PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".moltworker", "server.pid")
	}
	return filepath.Join(os.TempDir(), "moltworker-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// readPIDFile reads a PID from the given file path. Returns 0 if unreadable.
func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
