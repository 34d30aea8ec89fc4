package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running moltworker daemon",
	Long: `Stop a running moltworker daemon by reading its PID file and sending
SIGTERM.

The gateway itself keeps running: stopping the supervisor never touches the
sandbox. Use "moltworker restart" to replace the gateway.

The PID file is located at ~/.moltworker/server.pid.

Examples:
  moltworker stop`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := pidFilePath()

	pid := readPIDFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("no daemon PID file found at %s\nIs moltworker serve running?", pidPath)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("invalid PID %d: %w", pid, err)
	}

	if !processIsAlive(proc) {
		os.Remove(pidPath)
		return fmt.Errorf("daemon process %d is not running (stale PID file removed)", pid)
	}

	fmt.Fprintf(os.Stderr, "Stopping moltworker daemon (PID %d)...\n", pid)
	if err := sendGracefulStop(proc); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Wait for the process to exit (poll every 200ms, max 10s).
	for i := 0; i < 50; i++ {
		time.Sleep(200 * time.Millisecond)
		if !processIsAlive(proc) {
			fmt.Fprintln(os.Stderr, "Daemon stopped.")
			return nil
		}
	}
	return fmt.Errorf("daemon did not exit within 10s; kill it manually with: kill -9 %d", pid)
}
