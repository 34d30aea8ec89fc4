// Package local runs sandbox processes on the host with os/exec. It exists
// for development and tests; production deployments talk to a remote sandbox
// with its own process table.
package local

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XPrime17/moltworker/internal/port/outbound"
)

// maxCapturedOutput bounds per-stream capture so a chatty process cannot
// grow memory without limit. Only the tail is kept.
const maxCapturedOutput = 64 * 1024

// Sandbox keeps an in-memory table of every process it has started,
// including exited ones, mirroring how a remote sandbox exposes its table.
type Sandbox struct {
	mu    sync.Mutex
	seq   int
	procs map[string]*process
}

// NewSandbox returns an empty local sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{procs: make(map[string]*process)}
}

// ListProcesses returns a snapshot of the process table in start order.
func (s *Sandbox) ListProcesses(ctx context.Context) ([]outbound.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outbound.Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].(*process).seq < out[j].(*process).seq
	})
	return out, nil
}

// StartProcess launches command through the shell so pipelines and
// redirections behave the way they would in the remote sandbox.
func (s *Sandbox) StartProcess(ctx context.Context, command string, opts outbound.StartOptions) (outbound.Process, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	p := &process{
		id:      uuid.NewString(),
		command: command,
		status:  outbound.StatusStarting,
		cmd:     cmd,
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}
	p.setStatus(outbound.StatusRunning)

	s.mu.Lock()
	s.seq++
	p.seq = s.seq
	s.procs[p.id] = p
	s.mu.Unlock()

	// Reap the child and flip the table entry when it exits.
	go func() {
		_ = cmd.Wait()
		p.setStatus(outbound.StatusExited)
	}()

	return p, nil
}

type process struct {
	id      string
	command string
	seq     int

	mu     sync.Mutex
	status outbound.ProcessStatus

	cmd    *exec.Cmd
	stdout tailBuffer
	stderr tailBuffer
}

func (p *process) ID() string      { return p.id }
func (p *process) Command() string { return p.command }

func (p *process) Status() outbound.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *process) setStatus(st outbound.ProcessStatus) {
	p.mu.Lock()
	p.status = st
	p.mu.Unlock()
}

// Kill terminates the process. A process that already exited is not an
// error from the caller's point of view.
func (p *process) Kill(ctx context.Context) error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("kill process: %w", err)
	}
	return nil
}

// WaitForPort dials 127.0.0.1:port until it accepts a connection or the
// timeout elapses.
func (p *process) WaitForPort(ctx context.Context, port int, timeout time.Duration) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("port %d not accepting connections after %s: %w", port, timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (p *process) Logs(ctx context.Context) (outbound.Logs, error) {
	if err := ctx.Err(); err != nil {
		return outbound.Logs{}, err
	}
	return outbound.Logs{
		Stdout: p.stdout.String(),
		Stderr: p.stderr.String(),
	}, nil
}

// tailBuffer is a concurrency-safe writer that keeps at most
// maxCapturedOutput trailing bytes.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - maxCapturedOutput; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

var (
	_ outbound.Sandbox = (*Sandbox)(nil)
	_ outbound.Process = (*process)(nil)
)
