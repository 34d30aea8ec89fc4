// Package http provides the admin HTTP surface of the supervisor: health,
// metrics, gateway status, and manual lifecycle operations.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/port/inbound"
	"github.com/XPrime17/moltworker/internal/port/outbound"
	"github.com/XPrime17/moltworker/internal/supervisor"
)

// JournalReader exposes recorded lifecycle events for the /journal endpoint.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]supervisor.Event, error)
}

// Transport serves the admin API. Lifecycle operations delegate to the
// supervisor; the transport holds no gateway state of its own.
type Transport struct {
	sup     *supervisor.Supervisor
	sandbox outbound.Sandbox
	cfg     *config.Config

	server    *http.Server
	addr      string
	tokenHash string
	journal   JournalReader
	registry  *prometheus.Registry
	logger    *slog.Logger
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8790".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithTokenHash enables bearer-token auth on every endpoint except
// /healthz and /metrics. The hash is an argon2id PHC string; the raw token
// is never stored.
func WithTokenHash(hash string) Option {
	return func(t *Transport) { t.tokenHash = hash }
}

// WithJournal exposes recorded lifecycle events at /journal.
func WithJournal(j JournalReader) Option {
	return func(t *Transport) { t.journal = j }
}

// WithRegistry substitutes the Prometheus registry backing /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(t *Transport) { t.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// NewTransport creates the admin transport for the given supervisor,
// sandbox, and configuration.
func NewTransport(sup *supervisor.Supervisor, sb outbound.Sandbox, cfg *config.Config, opts ...Option) *Transport {
	t := &Transport{
		sup:     sup,
		sandbox: sb,
		cfg:     cfg,
		addr:    "127.0.0.1:8790",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
		t.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return t
}

// Handler builds the routed handler. Exposed for tests.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))

	auth := bearerAuth(t.tokenHash, t.logger)
	mux.Handle("GET /status", auth(t.statusHandler()))
	mux.Handle("GET /journal", auth(t.journalHandler()))
	mux.Handle("POST /gateway/ensure", auth(t.ensureHandler()))
	mux.Handle("POST /gateway/restart", auth(t.restartHandler()))
	return mux
}

// Start begins serving and blocks until the context is cancelled or the
// server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting admin HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("shutting down admin HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

// Compile-time check that Transport implements the AdminAPI port.
var _ inbound.AdminAPI = (*Transport)(nil)
