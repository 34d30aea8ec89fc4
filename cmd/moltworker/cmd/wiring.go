package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/XPrime17/moltworker/internal/adapter/outbound/journal"
	"github.com/XPrime17/moltworker/internal/adapter/outbound/lease"
	"github.com/XPrime17/moltworker/internal/adapter/outbound/local"
	"github.com/XPrime17/moltworker/internal/adapter/outbound/mount"
	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/port/outbound"
	"github.com/XPrime17/moltworker/internal/supervisor"
)

// appRuntime bundles the wired components every lifecycle command needs.
type appRuntime struct {
	cfg      *config.Config
	logger   *slog.Logger
	sandbox  outbound.Sandbox
	sup      *supervisor.Supervisor
	journal  *journal.Store
	registry *prometheus.Registry
}

func (r *appRuntime) close() {
	if r.journal != nil {
		_ = r.journal.Close()
	}
}

// loadConfig loads and validates the configuration, applying CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Supervisor.LogLevel = logLevelFlag
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// parseLogLevel converts a string log level to slog.Level.
// Defaults to info for unknown values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := parseLogLevel(cfg.Supervisor.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// buildRuntime wires the sandbox, supervisor, metrics, journal, lease, and
// mounter from the loaded configuration.
func buildRuntime() (*appRuntime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	startupTimeout, err := time.ParseDuration(cfg.Gateway.StartupTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid startup_timeout: %w", err)
	}

	opts := []supervisor.Option{
		supervisor.WithPort(cfg.Gateway.Port),
		supervisor.WithGatewayCommand(cfg.Gateway.Command),
		supervisor.WithFingerprintPath(cfg.Gateway.FingerprintPath),
		supervisor.WithStartupTimeout(startupTimeout),
		supervisor.WithMetrics(supervisor.NewMetrics(registry)),
	}
	if cfg.Gateway.MountCommand != "" {
		opts = append(opts, supervisor.WithMounter(
			mount.NewCommandMounter(cfg.Gateway.MountCommand, logger)))
	}
	if cfg.Supervisor.LeasePath != "" {
		opts = append(opts, supervisor.WithLease(
			lease.NewFileLease(cfg.Supervisor.LeasePath)))
	}

	rt := &appRuntime{
		cfg:      cfg,
		logger:   logger,
		sandbox:  local.NewSandbox(),
		registry: registry,
	}
	if cfg.Supervisor.JournalPath != "" {
		store, err := journal.Open(cfg.Supervisor.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		rt.journal = store
		opts = append(opts, supervisor.WithJournal(store))
	}

	rt.sup = supervisor.New(logger, opts...)
	return rt, nil
}
