// Package outbound defines the interfaces moltworker consumes from its
// collaborators. The sandbox port models the isolated execution environment
// that hosts the gateway process; adapters live under internal/adapter/outbound.
package outbound

import (
	"context"
	"time"
)

// ProcessStatus is the sandbox-reported lifecycle state of a process.
type ProcessStatus string

const (
	StatusStarting ProcessStatus = "starting"
	StatusRunning  ProcessStatus = "running"
	StatusExited   ProcessStatus = "exited"
	StatusUnknown  ProcessStatus = "unknown"
)

// Live reports whether the status counts as an alive process. A status of
// "running" only means the OS process exists, not that its server loop has
// bound a listening socket.
func (s ProcessStatus) Live() bool {
	return s == StatusStarting || s == StatusRunning
}

// Logs is the captured output of a sandbox process. The sandbox's
// command-completion signal does not guarantee the captured streams are
// complete yet; callers that need output should poll.
type Logs struct {
	Stdout string
	Stderr string
}

// StartOptions configures a process start.
type StartOptions struct {
	// Env is merged over the sandbox's base environment.
	Env map[string]string
}

// Process is a handle to one sandbox-managed OS process. The handle is owned
// by the sandbox; it may refer to a process that has already exited, and it
// is not guaranteed to remain valid after Kill returns (termination is
// asynchronous from the caller's perspective).
type Process interface {
	// ID is an opaque sandbox-assigned identifier.
	ID() string

	// Command is the command line the process was started with.
	Command() string

	// Status returns the sandbox's current view of the process state.
	Status() ProcessStatus

	// Kill requests termination. Killing an already-dead process returns an
	// error that callers are expected to ignore.
	Kill(ctx context.Context) error

	// WaitForPort blocks until the process accepts a TCP connection on the
	// given port, or the timeout elapses, or ctx is canceled.
	WaitForPort(ctx context.Context, port int, timeout time.Duration) error

	// Logs returns the output captured so far.
	Logs(ctx context.Context) (Logs, error)
}

// Sandbox is the execution environment hosting the gateway. Its process table
// is the authoritative source of truth for "is the gateway running"; the
// supervisor holds no state of its own between calls.
type Sandbox interface {
	// ListProcesses enumerates every process the sandbox knows about,
	// including exited ones.
	ListProcesses(ctx context.Context) ([]Process, error)

	// StartProcess spawns a shell command and returns its handle.
	StartProcess(ctx context.Context, command string, opts StartOptions) (Process, error)
}
