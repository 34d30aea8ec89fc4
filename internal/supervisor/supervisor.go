package supervisor

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/envbuild"
	"github.com/XPrime17/moltworker/internal/fingerprint"
	"github.com/XPrime17/moltworker/internal/port/outbound"
)

// Journal records supervisor lifecycle decisions. Recording is best-effort;
// the supervisor logs and continues when it fails.
type Journal interface {
	Record(ctx context.Context, ev Event) error
}

// Event is one lifecycle decision.
type Event struct {
	Time        time.Time
	Op          string // "ensure" or "restart"
	Outcome     string
	Reason      string
	ProcessID   string
	Fingerprint string
}

// Event outcomes.
const (
	OutcomeReused       = "reused"
	OutcomeStarted      = "started"
	OutcomeStaleKill    = "stale_kill"
	OutcomeStuckKill    = "stuck_kill"
	OutcomeManualKill   = "manual_kill"
	OutcomeSpawnFailed  = "spawn_failed"
	OutcomeNeverReached = "never_reached"
)

// Mounter mounts persistent storage into the sandbox before a process start.
type Mounter interface {
	Mount(ctx context.Context, sb outbound.Sandbox) error
}

// Lease is the optional cooperative start lease. Acquire returns acquired =
// false when another caller holds it; release is non-nil iff acquired.
type Lease interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Supervisor orchestrates the gateway lifecycle: ensure, restart, locate,
// version check. It holds no process state between calls.
type Supervisor struct {
	logger *slog.Logger
	clock  Clock
	tracer trace.Tracer

	port            int
	startupTimeout  time.Duration
	gatewayCommand  string
	fingerprintPath string
	auxMarkers      []string

	probeTimeout      time.Duration
	killSettleTimeout time.Duration

	metrics *Metrics
	journal Journal
	mounter Mounter
	lease   Lease

	buildEnv func(*config.Config) map[string]string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithPort sets the gateway's fixed listening port.
func WithPort(port int) Option { return func(s *Supervisor) { s.port = port } }

// WithStartupTimeout bounds every readiness wait.
func WithStartupTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.startupTimeout = d }
}

// WithGatewayCommand sets the command line that starts the gateway server.
func WithGatewayCommand(cmd string) Option {
	return func(s *Supervisor) { s.gatewayCommand = cmd }
}

// WithFingerprintPath sets where the gateway persists its startup fingerprint.
func WithFingerprintPath(path string) Option {
	return func(s *Supervisor) { s.fingerprintPath = path }
}

// WithClock injects a clock for tests.
func WithClock(clk Clock) Option { return func(s *Supervisor) { s.clock = clk } }

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option { return func(s *Supervisor) { s.metrics = m } }

// WithJournal attaches a lifecycle journal.
func WithJournal(j Journal) Option { return func(s *Supervisor) { s.journal = j } }

// WithMounter attaches the storage mount collaborator.
func WithMounter(m Mounter) Option { return func(s *Supervisor) { s.mounter = m } }

// WithLease enables the cooperative start lease.
func WithLease(l Lease) Option { return func(s *Supervisor) { s.lease = l } }

// WithProbeTimeout bounds the fingerprint read probe's output poll.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.probeTimeout = d }
}

// WithKillSettleTimeout bounds the wait for OS-level teardown after a kill.
func WithKillSettleTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.killSettleTimeout = d }
}

// New creates a Supervisor with the given options.
func New(logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:            logger,
		clock:             systemClock{},
		tracer:            otel.Tracer("moltworker/supervisor"),
		port:              config.DefaultGatewayPort,
		startupTimeout:    90 * time.Second,
		gatewayCommand:    config.DefaultGatewayCommand,
		fingerprintPath:   config.DefaultFingerprintPath,
		auxMarkers:        defaultAuxMarkers,
		probeTimeout:      2 * time.Second,
		killSettleTimeout: 5 * time.Second,
		buildEnv:          envbuild.Build,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure makes sure exactly one reachable gateway is up and returns its
// handle. An existing process with current configuration is reused; a stale
// or stuck one is killed and replaced. Only SpawnError and a final
// ReadinessTimeoutError reach the caller.
func (s *Supervisor) Ensure(ctx context.Context, sb outbound.Sandbox, cfg *config.Config) (outbound.Process, error) {
	ctx, span := s.tracer.Start(ctx, "supervisor.Ensure")
	defer span.End()

	s.mount(ctx, sb)

	expected := fingerprint.Compute(cfg.Snapshot())
	span.SetAttributes(attribute.String("gateway.fingerprint", string(expected)))

	if existing := s.FindExisting(ctx, sb); existing != nil {
		res := s.checkVersion(ctx, sb, expected)
		if res.Current {
			// The process may still be transitioning from starting to ready.
			// Waiting the full startup timeout here is deliberate: a shorter
			// wait reintroduces the race where a slow starter gets killed by
			// an impatient caller.
			if err := existing.WaitForPort(ctx, s.port, s.startupTimeout); err == nil {
				s.logger.Debug("reusing running gateway", "process_id", existing.ID())
				s.record(ctx, Event{Op: "ensure", Outcome: OutcomeReused, ProcessID: existing.ID(), Fingerprint: string(expected)})
				s.countOp("ensure", OutcomeReused)
				return existing, nil
			}
			// Alive in the process table but the port never opened: dead or
			// stuck. Replace it.
			s.logger.Warn("gateway process alive but unreachable, replacing",
				"process_id", existing.ID(), "port", s.port, "timeout", s.startupTimeout)
			s.killAndSettle(ctx, sb, existing)
			s.record(ctx, Event{Op: "ensure", Outcome: OutcomeStuckKill, Reason: "port unreachable", ProcessID: existing.ID(), Fingerprint: string(expected)})
			s.countRestart("stuck")
		} else {
			s.logger.Info("gateway configuration stale, restarting",
				"process_id", existing.ID(), "reason", res.Reason)
			s.killAndSettle(ctx, sb, existing)
			s.record(ctx, Event{Op: "ensure", Outcome: OutcomeStaleKill, Reason: res.Reason, ProcessID: existing.ID(), Fingerprint: string(expected)})
			s.countRestart("stale")
		}
	}

	return s.startFresh(ctx, sb, cfg, "ensure")
}

// Restart unconditionally kills any existing gateway and starts a fresh one,
// skipping the version check. Used when the caller already knows a restart
// is required.
func (s *Supervisor) Restart(ctx context.Context, sb outbound.Sandbox, cfg *config.Config) (outbound.Process, error) {
	ctx, span := s.tracer.Start(ctx, "supervisor.Restart")
	defer span.End()

	s.mount(ctx, sb)

	if existing := s.FindExisting(ctx, sb); existing != nil {
		s.logger.Info("killing gateway for restart", "process_id", existing.ID())
		s.killAndSettle(ctx, sb, existing)
		s.record(ctx, Event{Op: "restart", Outcome: OutcomeManualKill, ProcessID: existing.ID()})
		s.countRestart("manual")
	}

	return s.startFresh(ctx, sb, cfg, "restart")
}

// startFresh spawns a new gateway process and waits for it to become
// reachable. Spawn failures and readiness timeouts are terminal for this
// attempt; there is no local retry.
func (s *Supervisor) startFresh(ctx context.Context, sb outbound.Sandbox, cfg *config.Config, op string) (outbound.Process, error) {
	expected := fingerprint.Compute(cfg.Snapshot())

	if s.lease != nil {
		release, acquired, err := s.lease.Acquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn("start lease unavailable, proceeding without it", "error", err)
		case !acquired:
			s.logger.Info("another caller is starting the gateway, waiting for it")
			if p := s.awaitPeerStart(ctx, sb); p != nil {
				s.record(ctx, Event{Op: op, Outcome: OutcomeReused, Reason: "peer start", ProcessID: p.ID(), Fingerprint: string(expected)})
				s.countOp(op, OutcomeReused)
				return p, nil
			}
			// The peer never produced a reachable gateway (or its lease is
			// stale). Fall through and start our own.
			s.logger.Warn("peer start never became reachable, starting our own gateway")
		default:
			defer release()
		}
	}

	proc, err := sb.StartProcess(ctx, s.gatewayCommand, outbound.StartOptions{Env: s.buildEnv(cfg)})
	if err != nil {
		s.record(ctx, Event{Op: op, Outcome: OutcomeSpawnFailed, Reason: err.Error(), Fingerprint: string(expected)})
		s.countOp(op, "failed")
		return nil, &SpawnError{Command: s.gatewayCommand, Err: err}
	}
	s.logger.Info("gateway process started", "process_id", proc.ID(), "command", s.gatewayCommand)

	began := s.clock.Now()
	if err := proc.WaitForPort(ctx, s.port, s.startupTimeout); err != nil {
		rerr := &ReadinessTimeoutError{Port: s.port, Timeout: s.startupTimeout, Err: err}
		// Attach the captured error stream so the caller gets a diagnostic
		// payload; fall back to the bare timeout when logs are unobtainable.
		if logs, lerr := proc.Logs(ctx); lerr == nil {
			rerr.Stderr = logs.Stderr
		} else {
			s.logger.Warn("could not retrieve gateway output after startup failure", "error", lerr)
		}
		s.record(ctx, Event{Op: op, Outcome: OutcomeNeverReached, Reason: rerr.Error(), ProcessID: proc.ID(), Fingerprint: string(expected)})
		s.countOp(op, "failed")
		return nil, rerr
	}

	if s.metrics != nil {
		s.metrics.StartupDuration.Observe(s.clock.Now().Sub(began).Seconds())
	}
	s.logger.Info("gateway ready", "process_id", proc.ID(), "port", s.port,
		"startup", s.clock.Now().Sub(began))
	s.record(ctx, Event{Op: op, Outcome: OutcomeStarted, ProcessID: proc.ID(), Fingerprint: string(expected)})
	s.countOp(op, OutcomeStarted)
	return proc, nil
}

// killAndSettle kills a process and waits until the process table no longer
// shows a live gateway. Kill errors are swallowed: killing an already-dead
// process is expected and harmless.
func (s *Supervisor) killAndSettle(ctx context.Context, sb outbound.Sandbox, p outbound.Process) {
	if err := p.Kill(ctx); err != nil {
		s.logger.Debug("kill returned error, process may already be gone", "process_id", p.ID(), "error", err)
	}
	// Termination is asynchronous relative to the kill call; wait until the
	// process table agrees before starting a replacement.
	if err := pollUntil(ctx, s.clock, s.killSettleTimeout, func(ctx context.Context) (bool, error) {
		return s.FindExisting(ctx, sb) == nil, nil
	}); err != nil {
		s.logger.Warn("gateway still listed after kill settle timeout", "process_id", p.ID())
	}
}

// awaitPeerStart waits for another caller's gateway start to appear and
// become reachable. Returns nil when it never does within the timeout.
func (s *Supervisor) awaitPeerStart(ctx context.Context, sb outbound.Sandbox) outbound.Process {
	var found outbound.Process
	if err := pollUntil(ctx, s.clock, s.startupTimeout, func(ctx context.Context) (bool, error) {
		found = s.FindExisting(ctx, sb)
		return found != nil, nil
	}); err != nil || found == nil {
		return nil
	}
	if err := found.WaitForPort(ctx, s.port, s.startupTimeout); err != nil {
		return nil
	}
	return found
}

// mount triggers the storage mount collaborator. Idempotent and non-fatal:
// the gateway's startup script restores from the persisted backup when the
// mount is missing.
func (s *Supervisor) mount(ctx context.Context, sb outbound.Sandbox) {
	if s.mounter == nil {
		return
	}
	if err := s.mounter.Mount(ctx, sb); err != nil {
		s.logger.Warn("storage mount failed", "error", err)
	}
}

func (s *Supervisor) record(ctx context.Context, ev Event) {
	if s.journal == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = s.clock.Now().UTC()
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.logger.Warn("journal write failed", "op", ev.Op, "outcome", ev.Outcome, "error", err)
	}
}

func (s *Supervisor) countOp(op, outcome string) {
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(op, outcome).Inc()
	}
}

func (s *Supervisor) countRestart(reason string) {
	if s.metrics != nil {
		s.metrics.Restarts.WithLabelValues(reason).Inc()
	}
}
