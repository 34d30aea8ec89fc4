package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/port/outbound"
	"github.com/XPrime17/moltworker/internal/supervisor"
)

type fakeProcess struct {
	mu     sync.Mutex
	id     string
	cmd    string
	status outbound.ProcessStatus
	kills  int
}

func (p *fakeProcess) ID() string      { return p.id }
func (p *fakeProcess) Command() string { return p.cmd }

func (p *fakeProcess) Status() outbound.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *fakeProcess) Kill(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills++
	p.status = outbound.StatusExited
	return nil
}

func (p *fakeProcess) WaitForPort(ctx context.Context, port int, timeout time.Duration) error {
	return nil
}

func (p *fakeProcess) Logs(ctx context.Context) (outbound.Logs, error) {
	return outbound.Logs{}, nil
}

type fakeSandbox struct {
	mu          sync.Mutex
	procs       []*fakeProcess
	fingerprint string
	seq         int
}

func (f *fakeSandbox) ListProcesses(ctx context.Context) ([]outbound.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outbound.Process, len(f.procs))
	for i, p := range f.procs {
		out[i] = p
	}
	return out, nil
}

func (f *fakeSandbox) StartProcess(ctx context.Context, command string, opts outbound.StartOptions) (outbound.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if strings.HasPrefix(command, "cat ") {
		return &fakeProcess{
			id:     fmt.Sprintf("probe-%d", f.seq),
			cmd:    command,
			status: outbound.StatusExited,
		}, nil
	}
	p := &fakeProcess{
		id:     fmt.Sprintf("gw-%d", f.seq),
		cmd:    command,
		status: outbound.StatusRunning,
	}
	f.procs = append(f.procs, p)
	return p, nil
}

type stubJournal struct {
	events []supervisor.Event
	err    error
}

func (j *stubJournal) List(ctx context.Context, limit int) ([]supervisor.Event, error) {
	if j.err != nil {
		return nil, j.err
	}
	if limit < len(j.events) {
		return j.events[:limit], nil
	}
	return j.events, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestTransport(t *testing.T, opts ...Option) (*Transport, *fakeSandbox) {
	t.Helper()
	var cfg config.Config
	cfg.SetDefaults()
	cfg.Gateway.AuthToken = "tok"
	sb := &fakeSandbox{}
	sup := supervisor.New(discard())
	base := append([]Option{WithLogger(discard())}, opts...)
	return NewTransport(sup, sb, &cfg, base...), sb
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics body missing runtime collectors")
	}
}

func TestStatusReportsAbsentGateway(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Running {
		t.Error("Running = true with empty process table")
	}
	if resp.Version.Current {
		t.Error("Version.Current = true with no fingerprint recorded")
	}
}

func TestStatusReportsRunningGateway(t *testing.T) {
	t.Parallel()

	tr, sb := newTestTransport(t)
	sb.procs = append(sb.procs, &fakeProcess{
		id:     "gw-9",
		cmd:    "molt gateway --port 18789",
		status: outbound.StatusRunning,
	})

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running || resp.ProcessID != "gw-9" {
		t.Errorf("resp = %+v, want running gw-9", resp)
	}
}

func TestEnsureEndpointStartsGateway(t *testing.T) {
	t.Parallel()

	tr, sb := newTestTransport(t)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gateway/ensure", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp lifecycleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ProcessID == "" {
		t.Error("empty process_id in response")
	}
	if len(sb.procs) != 1 {
		t.Errorf("table holds %d processes, want 1", len(sb.procs))
	}
}

func TestRestartEndpointKillsExisting(t *testing.T) {
	t.Parallel()

	tr, sb := newTestTransport(t)
	existing := &fakeProcess{id: "gw-old", cmd: "molt gateway --port 18789", status: outbound.StatusRunning}
	sb.procs = append(sb.procs, existing)

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gateway/restart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if existing.kills != 1 {
		t.Errorf("existing killed %d times, want 1", existing.kills)
	}
}

func TestEnsureRejectsGet(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t)
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gateway/ensure", nil))

	if rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want method rejection", rec.Code)
	}
}

func TestJournalEndpoint(t *testing.T) {
	t.Parallel()

	j := &stubJournal{events: []supervisor.Event{
		{Op: "ensure", Outcome: supervisor.OutcomeStarted},
		{Op: "restart", Outcome: supervisor.OutcomeManualKill},
	}}
	tr, _ := newTestTransport(t, WithJournal(j))

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal?limit=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Events []supervisor.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Errorf("len(events) = %d, want limit applied", len(resp.Events))
	}
}

func TestJournalRejectsBadLimit(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, WithJournal(&stubJournal{}))
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal?limit=zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()

	hash, err := argon2id.CreateHash("sesame", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}
	tr, _ := newTestTransport(t, WithTokenHash(hash))
	handler := tr.Handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sesame", http.StatusUnauthorized},
		{"wrong token", "Bearer open", http.StatusUnauthorized},
		{"valid token", "Bearer sesame", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHealthzBypassesAuth(t *testing.T) {
	t.Parallel()

	hash, err := argon2id.CreateHash("sesame", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}
	tr, _ := newTestTransport(t, WithTokenHash(hash))

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200 without token", rec.Code)
	}
}
