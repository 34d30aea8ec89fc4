package mount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/XPrime17/moltworker/internal/port/outbound"
)

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *tickClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

type scriptedProc struct {
	mu         sync.Mutex
	statusSeq  []outbound.ProcessStatus
	statusIdx  int
	lastStatus outbound.ProcessStatus
}

func (p *scriptedProc) ID() string      { return "mount-1" }
func (p *scriptedProc) Command() string { return "mount /mnt/data" }

func (p *scriptedProc) Status() outbound.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statusIdx < len(p.statusSeq) {
		p.lastStatus = p.statusSeq[p.statusIdx]
		p.statusIdx++
	}
	return p.lastStatus
}

func (p *scriptedProc) Kill(ctx context.Context) error { return nil }
func (p *scriptedProc) WaitForPort(ctx context.Context, port int, timeout time.Duration) error {
	return nil
}
func (p *scriptedProc) Logs(ctx context.Context) (outbound.Logs, error) {
	return outbound.Logs{}, nil
}

type startSandbox struct {
	started []string
	proc    outbound.Process
	err     error
}

func (s *startSandbox) ListProcesses(ctx context.Context) ([]outbound.Process, error) {
	return nil, nil
}

func (s *startSandbox) StartProcess(ctx context.Context, command string, opts outbound.StartOptions) (outbound.Process, error) {
	s.started = append(s.started, command)
	return s.proc, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMountWaitsForCompletion(t *testing.T) {
	t.Parallel()

	proc := &scriptedProc{statusSeq: []outbound.ProcessStatus{
		outbound.StatusRunning,
		outbound.StatusRunning,
		outbound.StatusExited,
	}}
	sb := &startSandbox{proc: proc}

	m := NewCommandMounter("mount /mnt/data", discard(), WithClock(&tickClock{}))
	if err := m.Mount(context.Background(), sb); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(sb.started) != 1 || sb.started[0] != "mount /mnt/data" {
		t.Errorf("started = %v, want the mount command once", sb.started)
	}
}

func TestMountEmptyCommandIsNoop(t *testing.T) {
	t.Parallel()

	sb := &startSandbox{}
	m := NewCommandMounter("", discard())
	if err := m.Mount(context.Background(), sb); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(sb.started) != 0 {
		t.Errorf("started %v, want nothing for empty command", sb.started)
	}
}

func TestMountStartFailurePropagates(t *testing.T) {
	t.Parallel()

	sb := &startSandbox{err: errors.New("sandbox refused")}
	m := NewCommandMounter("mount /mnt/data", discard())
	if err := m.Mount(context.Background(), sb); err == nil {
		t.Fatal("Mount succeeded, want start error")
	}
}

func TestMountTimeoutIsTolerated(t *testing.T) {
	t.Parallel()

	proc := &scriptedProc{lastStatus: outbound.StatusRunning}
	sb := &startSandbox{proc: proc}

	m := NewCommandMounter("mount /mnt/data", discard(),
		WithClock(&tickClock{}), WithSettleTimeout(time.Second))
	if err := m.Mount(context.Background(), sb); err != nil {
		t.Fatalf("Mount returned %v, want nil on slow command", err)
	}
}
