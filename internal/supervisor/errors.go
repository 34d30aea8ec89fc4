package supervisor

import (
	"fmt"
	"strings"
	"time"
)

// SpawnError reports that the sandbox refused or failed to start a process.
// It is surfaced immediately and never retried locally: a failed spawn call
// is not ambiguous.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start gateway process %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ReadinessTimeoutError reports that the gateway's listening port never
// accepted a TCP connection within the startup timeout. Stderr carries the
// process's captured error stream when it could be retrieved.
type ReadinessTimeoutError struct {
	Port    int
	Timeout time.Duration
	Stderr  string
	Err     error
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("gateway not reachable on port %d after %s", e.Port, e.Timeout)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.Err }
