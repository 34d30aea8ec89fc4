package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for moltworker.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to avoid
// matching the binary itself, which Viper's built-in SetConfigName would match
// (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("moltworker")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: MOLTWORKER_GATEWAY_AUTH_TOKEN etc.
	viper.SetEnvPrefix("MOLTWORKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a moltworker config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".moltworker"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "moltworker"))
		}
	} else {
		paths = append(paths, "/etc/moltworker")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for moltworker.yaml or
// .yml. Returns the full path of the first match, or empty string if none.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "moltworker"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// AutomaticEnv alone does not see nested keys that are absent from the config
// file, so every key is bound explicitly.
func bindNestedEnvKeys() {
	// Gateway
	_ = viper.BindEnv("gateway.auth_token")
	_ = viper.BindEnv("gateway.port")
	_ = viper.BindEnv("gateway.command")
	_ = viper.BindEnv("gateway.startup_timeout")
	_ = viper.BindEnv("gateway.fingerprint_path")
	_ = viper.BindEnv("gateway.mount_command")

	// Supervisor
	_ = viper.BindEnv("supervisor.log_level")
	_ = viper.BindEnv("supervisor.reconcile_interval")
	_ = viper.BindEnv("supervisor.journal_path")
	_ = viper.BindEnv("supervisor.lease_path")
	_ = viper.BindEnv("supervisor.restart_guard")
	_ = viper.BindEnv("supervisor.tracing")

	// Providers
	_ = viper.BindEnv("providers.anthropic.api_key")
	_ = viper.BindEnv("providers.anthropic.base_url")
	_ = viper.BindEnv("providers.openai.api_key")
	_ = viper.BindEnv("providers.openai.base_url")

	// Channels
	_ = viper.BindEnv("channels.telegram.token")
	_ = viper.BindEnv("channels.telegram.dm_policy")
	_ = viper.BindEnv("channels.discord.token")
	_ = viper.BindEnv("channels.discord.dm_policy")
	_ = viper.BindEnv("channels.slack.bot_token")
	_ = viper.BindEnv("channels.slack.app_token")
	_ = viper.BindEnv("channels.slack.dm_policy")

	// Admin
	_ = viper.BindEnv("admin.addr")
	_ = viper.BindEnv("admin.token_hash")

	_ = viper.BindEnv("dev_mode")
}
