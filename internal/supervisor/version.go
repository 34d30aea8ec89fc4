package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/fingerprint"
	"github.com/XPrime17/moltworker/internal/port/outbound"
)

// VersionCheckResult is the outcome of comparing the running gateway's
// persisted fingerprint against the fingerprint of the current configuration.
// Ephemeral, computed per call. Reason is set iff Current is false.
type VersionCheckResult struct {
	Current  bool   `json:"current"`
	Expected string `json:"expected"`
	Running  string `json:"running,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// CheckVersion reads the fingerprint the running gateway persisted at startup
// and compares it to the fingerprint of cfg. It never returns an error:
// every failure collapses into a not-current result so callers can proceed to
// the safe default (restart).
func (s *Supervisor) CheckVersion(ctx context.Context, sb outbound.Sandbox, cfg *config.Config) VersionCheckResult {
	return s.checkVersion(ctx, sb, fingerprint.Compute(cfg.Snapshot()))
}

func (s *Supervisor) checkVersion(ctx context.Context, sb outbound.Sandbox, expected fingerprint.Fingerprint) VersionCheckResult {
	res := VersionCheckResult{Expected: string(expected)}

	probeCmd := fmt.Sprintf("cat %s 2>/dev/null || true", s.fingerprintPath)
	probe, err := sb.StartProcess(ctx, probeCmd, outbound.StartOptions{})
	if err != nil {
		res.Reason = fmt.Sprintf("fingerprint probe failed: %v", err)
		s.countVersionCheck("probe_error")
		return res
	}

	// The probe's output may not be visible the moment the command completes;
	// poll until something shows up or the probe has exited with nothing.
	var out string
	_ = pollUntil(ctx, s.clock, s.probeTimeout, func(ctx context.Context) (bool, error) {
		logs, err := probe.Logs(ctx)
		if err != nil {
			return false, nil
		}
		out = strings.TrimSpace(logs.Stdout)
		if out != "" {
			return true, nil
		}
		return probe.Status() == outbound.StatusExited, nil
	})

	if out == "" {
		// No fingerprint on disk: the process predates this versioning
		// scheme. Treat as stale so it gets a one-time upgrade restart.
		res.Reason = "pre-version gateway (no fingerprint recorded)"
		s.countVersionCheck("pre_version")
		return res
	}

	running, _, _ := strings.Cut(out, "\n")
	running = strings.TrimSpace(running)
	res.Running = running

	if running != string(expected) {
		res.Reason = fmt.Sprintf("fingerprint mismatch: running %s, expected %s", running, expected)
		s.countVersionCheck("stale")
		return res
	}

	res.Current = true
	s.countVersionCheck("current")
	return res
}

func (s *Supervisor) countVersionCheck(result string) {
	if s.metrics != nil {
		s.metrics.VersionChecks.WithLabelValues(result).Inc()
	}
}
