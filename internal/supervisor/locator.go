package supervisor

import (
	"context"
	"strings"

	"github.com/XPrime17/moltworker/internal/port/outbound"
)

// defaultAuxMarkers are command-line fragments that mark an auxiliary CLI
// invocation of the gateway binary family. "molt devices list" or
// "molt gateway --version" must never be mistaken for the server.
var defaultAuxMarkers = []string{"devices", "--version", "--help"}

// FindExisting scans the sandbox's process table for a live gateway process.
// Returns nil when no live match exists. Listing failures are downgraded to
// "no match found": when the sandbox's own introspection is flaky, attempting
// a fresh start beats refusing to act.
func (s *Supervisor) FindExisting(ctx context.Context, sb outbound.Sandbox) outbound.Process {
	procs, err := sb.ListProcesses(ctx)
	if err != nil {
		s.logger.Warn("process listing failed, assuming gateway absent", "error", err)
		return nil
	}
	for _, p := range procs {
		if !s.matchesGateway(p.Command()) {
			continue
		}
		if !p.Status().Live() {
			continue
		}
		return p
	}
	return nil
}

// matchesGateway reports whether a command line is the gateway server. Every
// token of the configured gateway command must appear, and none of the
// auxiliary markers may.
func (s *Supervisor) matchesGateway(command string) bool {
	for _, tok := range strings.Fields(s.gatewayCommand) {
		if !strings.Contains(command, tok) {
			return false
		}
	}
	for _, marker := range s.auxMarkers {
		if strings.Contains(command, marker) {
			return false
		}
	}
	return true
}
