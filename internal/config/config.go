// Package config provides configuration types and loading for moltworker.
//
// Configuration splits into two halves: the gateway half (everything the
// supervised gateway process consumes through its environment — tokens,
// provider credentials, channel bots, operational flags) and the supervisor
// half (port, timeouts, reconcile interval, admin listener). Only the gateway
// half participates in the configuration fingerprint: supervisor settings can
// change without forcing a gateway restart.
package config

import (
	"strconv"

	"github.com/spf13/viper"

	"github.com/XPrime17/moltworker/internal/fingerprint"
)

// Config is the top-level moltworker configuration.
type Config struct {
	// Gateway configures the supervised gateway process.
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Supervisor configures the lifecycle supervisor itself.
	Supervisor SupervisorConfig `yaml:"supervisor" mapstructure:"supervisor"`

	// Providers holds AI provider credentials passed to the gateway.
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`

	// Channels holds per-platform bot tokens and policies passed to the gateway.
	Channels ChannelsConfig `yaml:"channels" mapstructure:"channels"`

	// Admin configures the supervisor's admin/metrics HTTP listener.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// DevMode enables development features (verbose logging, relaxed checks).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// GatewayConfig describes the gateway process and how to reach it.
type GatewayConfig struct {
	// AuthToken is the shared secret the gateway requires from its clients.
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`

	// Port is the gateway's fixed listening port. Readiness is defined
	// exclusively by this port accepting TCP connections.
	Port int `yaml:"port" mapstructure:"port" validate:"required,min=1,max=65535"`

	// Command is the command line that starts the long-running gateway
	// server inside the sandbox.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// StartupTimeout bounds every readiness wait (e.g. "90s").
	StartupTimeout string `yaml:"startup_timeout" mapstructure:"startup_timeout" validate:"required,duration"`

	// FingerprintPath is where the gateway persists the fingerprint of the
	// configuration it was started with.
	FingerprintPath string `yaml:"fingerprint_path" mapstructure:"fingerprint_path" validate:"required"`

	// MountCommand, when set, is issued through the sandbox before any
	// process start to mount persistent storage. Best-effort.
	MountCommand string `yaml:"mount_command" mapstructure:"mount_command"`
}

// SupervisorConfig tunes the supervisor's own behavior.
type SupervisorConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// ReconcileInterval is how often the serve loop re-runs ensure (e.g. "1m").
	ReconcileInterval string `yaml:"reconcile_interval" mapstructure:"reconcile_interval" validate:"omitempty,duration"`

	// JournalPath is the sqlite file recording lifecycle decisions.
	// Empty disables the journal.
	JournalPath string `yaml:"journal_path" mapstructure:"journal_path"`

	// LeasePath, when set, enables the cooperative start lease: a flock'd
	// marker file taken before a fresh start so concurrent callers wait
	// instead of racing.
	LeasePath string `yaml:"lease_path" mapstructure:"lease_path"`

	// RestartGuard is an optional CEL expression consulted by the reconcile
	// loop before an automatic stale restart. Variables: reason, running,
	// expected, stale, hour. Empty allows every restart.
	RestartGuard string `yaml:"restart_guard" mapstructure:"restart_guard"`

	// Tracing enables the stdout trace exporter in serve mode.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// ProvidersConfig holds AI provider credentials.
type ProvidersConfig struct {
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `yaml:"openai" mapstructure:"openai"`
}

// ProviderConfig is one AI provider's credentials and endpoint override.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
}

// ChannelsConfig holds per-platform bot configuration.
type ChannelsConfig struct {
	Telegram BotConfig   `yaml:"telegram" mapstructure:"telegram"`
	Discord  BotConfig   `yaml:"discord" mapstructure:"discord"`
	Slack    SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// BotConfig is a single-token bot platform.
type BotConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	DMPolicy string `yaml:"dm_policy" mapstructure:"dm_policy" validate:"omitempty,oneof=open allowlist closed"`
}

// SlackConfig needs both a bot token and an app-level token.
type SlackConfig struct {
	BotToken string `yaml:"bot_token" mapstructure:"bot_token"`
	AppToken string `yaml:"app_token" mapstructure:"app_token"`
	DMPolicy string `yaml:"dm_policy" mapstructure:"dm_policy" validate:"omitempty,oneof=open allowlist closed"`
}

// AdminConfig configures the supervisor's HTTP listener.
type AdminConfig struct {
	// Addr is the listen address (e.g. ":7710"). Empty disables the listener.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// TokenHash is an argon2id hash gating mutating endpoints. Empty leaves
	// them open (dev use only).
	TokenHash string `yaml:"token_hash" mapstructure:"token_hash"`
}

// Defaults used when the config file omits a value.
const (
	DefaultGatewayPort     = 18789
	DefaultGatewayCommand  = "molt gateway"
	DefaultStartupTimeout  = "90s"
	DefaultFingerprintPath = "/data/.moltworker/config-fingerprint"
	DefaultLogLevel        = "info"
	DefaultReconcile       = "1m"
)

// SetDefaults fills zero values with their documented defaults.
func (c *Config) SetDefaults() {
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultGatewayPort
	}
	if c.Gateway.Command == "" {
		c.Gateway.Command = DefaultGatewayCommand
	}
	if c.Gateway.StartupTimeout == "" {
		c.Gateway.StartupTimeout = DefaultStartupTimeout
	}
	if c.Gateway.FingerprintPath == "" {
		c.Gateway.FingerprintPath = DefaultFingerprintPath
	}
	if c.Supervisor.LogLevel == "" {
		c.Supervisor.LogLevel = DefaultLogLevel
	}
	if c.Supervisor.ReconcileInterval == "" {
		c.Supervisor.ReconcileInterval = DefaultReconcile
	}
}

// Snapshot projects the gateway-affecting subset of the configuration into
// the ordered form the fingerprint is computed over. Recomputed on every
// call, never cached. Every field listed here changes gateway runtime
// behavior; omitting one causes stale-config false negatives.
func (c *Config) Snapshot() fingerprint.Snapshot {
	return fingerprint.Snapshot{
		{Key: "gateway.auth_token", Value: c.Gateway.AuthToken},
		{Key: "providers.anthropic.api_key", Value: c.Providers.Anthropic.APIKey},
		{Key: "providers.anthropic.base_url", Value: c.Providers.Anthropic.BaseURL},
		{Key: "providers.openai.api_key", Value: c.Providers.OpenAI.APIKey},
		{Key: "providers.openai.base_url", Value: c.Providers.OpenAI.BaseURL},
		{Key: "channels.telegram.token", Value: c.Channels.Telegram.Token},
		{Key: "channels.telegram.dm_policy", Value: c.Channels.Telegram.DMPolicy},
		{Key: "channels.discord.token", Value: c.Channels.Discord.Token},
		{Key: "channels.discord.dm_policy", Value: c.Channels.Discord.DMPolicy},
		{Key: "channels.slack.bot_token", Value: c.Channels.Slack.BotToken},
		{Key: "channels.slack.app_token", Value: c.Channels.Slack.AppToken},
		{Key: "channels.slack.dm_policy", Value: c.Channels.Slack.DMPolicy},
		{Key: "dev_mode", Value: strconv.FormatBool(c.DevMode)},
	}
}

// Load reads the configuration from Viper (file plus MOLTWORKER_* env
// overrides), applies defaults, and validates it.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRaw reads the configuration without defaults or validation, so callers
// can apply CLI flag overrides first.
func LoadRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFileUsed returns the config file Viper loaded, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
