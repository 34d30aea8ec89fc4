package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/XPrime17/moltworker/internal/supervisor"
)

var (
	statusOutput  string
	statusHistory int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway as the supervisor sees it",
	Long: `Inspect the sandbox process table and the persisted fingerprint.

Reports whether a gateway is running, its process ID and status, and how
its fingerprint compares to the current configuration. With --history, the
most recent lifecycle journal entries are included (requires
supervisor.journal_path). The command never changes anything.

Examples:
  moltworker status
  moltworker status -o json
  moltworker status --history 20`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format (text, json, yaml)")
	statusCmd.Flags().IntVar(&statusHistory, "history", 0, "include the N most recent journal entries")
	rootCmd.AddCommand(statusCmd)
}

// gatewayStatus is the status command's report.
type gatewayStatus struct {
	Running   bool                          `json:"running" yaml:"running"`
	ProcessID string                        `json:"process_id,omitempty" yaml:"process_id,omitempty"`
	Command   string                        `json:"command,omitempty" yaml:"command,omitempty"`
	Status    string                        `json:"status,omitempty" yaml:"status,omitempty"`
	Version   supervisor.VersionCheckResult `json:"version" yaml:"version"`
	History   []supervisor.Event            `json:"history,omitempty" yaml:"history,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	report, err := collectStatus(ctx, rt, statusHistory)
	if err != nil {
		return err
	}

	switch statusOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Print(string(data))
		return nil
	case "text":
		printTextStatus(report)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or yaml)", statusOutput)
	}
}

// collectStatus assembles the report: process table lookup, version check,
// and optionally the journal tail.
func collectStatus(ctx context.Context, rt *appRuntime, history int) (gatewayStatus, error) {
	report := gatewayStatus{
		Version: rt.sup.CheckVersion(ctx, rt.sandbox, rt.cfg),
	}
	if proc := rt.sup.FindExisting(ctx, rt.sandbox); proc != nil {
		report.Running = true
		report.ProcessID = proc.ID()
		report.Command = proc.Command()
		report.Status = string(proc.Status())
	}
	if history > 0 {
		if rt.journal == nil {
			return report, errors.New("--history requires supervisor.journal_path to be configured")
		}
		events, err := rt.journal.List(ctx, history)
		if err != nil {
			return report, fmt.Errorf("read journal: %w", err)
		}
		report.History = events
	}
	return report, nil
}

func printTextStatus(report gatewayStatus) {
	if !report.Running {
		fmt.Println("gateway: not running")
	} else {
		fmt.Printf("gateway: %s (%s, %s)\n", report.ProcessID, report.Status, report.Command)
	}
	if report.Version.Current {
		fmt.Printf("config:  current (%s)\n", report.Version.Expected)
	} else {
		fmt.Printf("config:  stale, expected %s", report.Version.Expected)
		if report.Version.Reason != "" {
			fmt.Printf(" (%s)", report.Version.Reason)
		}
		fmt.Println()
	}
	for _, ev := range report.History {
		fmt.Printf("%s  %-8s %-12s %s %s\n",
			ev.Time.Format("2006-01-02 15:04:05"), ev.Op, ev.Outcome, ev.ProcessID, ev.Reason)
	}
}
