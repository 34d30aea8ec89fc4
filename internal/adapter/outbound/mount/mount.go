// Package mount prepares the sandbox filesystem before the gateway starts.
// Without the bind mount the gateway writes its state to ephemeral storage
// and every restart looks like a first boot.
package mount

import (
	"context"
	"log/slog"
	"time"

	"github.com/XPrime17/moltworker/internal/port/outbound"
	"github.com/XPrime17/moltworker/internal/supervisor"
)

const (
	defaultSettleTimeout = 15 * time.Second
	pollInterval         = 100 * time.Millisecond
)

// CommandMounter runs a configured shell command inside the sandbox to bind
// persistent storage into place. Mount failures are reported to the caller
// but are expected to be treated as non-fatal: an unmounted gateway still
// works, it just forgets.
type CommandMounter struct {
	command       string
	settleTimeout time.Duration
	clock         supervisor.Clock
	logger        *slog.Logger
}

// Option configures a CommandMounter.
type Option func(*CommandMounter)

// WithSettleTimeout bounds how long Mount waits for the command to finish.
func WithSettleTimeout(d time.Duration) Option {
	return func(m *CommandMounter) { m.settleTimeout = d }
}

// WithClock substitutes the time source, for tests.
func WithClock(clk supervisor.Clock) Option {
	return func(m *CommandMounter) { m.clock = clk }
}

// NewCommandMounter returns a mounter that executes command in the sandbox.
// An empty command yields a mounter whose Mount is a no-op.
func NewCommandMounter(command string, logger *slog.Logger, opts ...Option) *CommandMounter {
	m := &CommandMounter{
		command:       command,
		settleTimeout: defaultSettleTimeout,
		clock:         supervisor.SystemClock(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mount runs the mount command and waits for it to exit. The exit status of
// the command is not observable through the sandbox process table, so a
// clean completion is the best signal available.
func (m *CommandMounter) Mount(ctx context.Context, sb outbound.Sandbox) error {
	if m.command == "" {
		return nil
	}

	proc, err := sb.StartProcess(ctx, m.command, outbound.StartOptions{})
	if err != nil {
		return err
	}

	deadline := m.clock.Now().Add(m.settleTimeout)
	for proc.Status() != outbound.StatusExited {
		if m.clock.Now().After(deadline) {
			m.logger.Warn("mount command did not finish in time",
				"command", m.command, "timeout", m.settleTimeout)
			return nil
		}
		if err := m.clock.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	m.logger.Debug("mount command finished", "command", m.command)
	return nil
}
