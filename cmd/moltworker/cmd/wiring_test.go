package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/XPrime17/moltworker/internal/config"
)

// A config file that sets only a token must be accepted: every other field
// falls back to its documented default.
func TestLoadConfigAppliesDefaultsToMinimalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moltworker.yaml")
	if err := os.WriteFile(path, []byte("gateway:\n  auth_token: tok\n"), 0600); err != nil {
		t.Fatal(err)
	}
	config.InitViper(path)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Gateway.AuthToken != "tok" {
		t.Errorf("AuthToken = %q, want value from file", cfg.Gateway.AuthToken)
	}
	if cfg.Gateway.Port != config.DefaultGatewayPort {
		t.Errorf("Port = %d, want default %d", cfg.Gateway.Port, config.DefaultGatewayPort)
	}
	if cfg.Gateway.Command != config.DefaultGatewayCommand {
		t.Errorf("Command = %q, want default %q", cfg.Gateway.Command, config.DefaultGatewayCommand)
	}
	if cfg.Gateway.StartupTimeout == "" || cfg.Gateway.FingerprintPath == "" {
		t.Error("startup timeout or fingerprint path left empty, defaults not applied")
	}
}

func TestLoadConfigLogLevelFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moltworker.yaml")
	if err := os.WriteFile(path, []byte("gateway:\n  auth_token: tok\n"), 0600); err != nil {
		t.Fatal(err)
	}
	config.InitViper(path)

	logLevelFlag = "debug"
	defer func() { logLevelFlag = "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Supervisor.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want flag override to win over default", cfg.Supervisor.LogLevel)
	}
}
