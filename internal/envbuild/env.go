// Package envbuild assembles the environment the gateway process is started
// with from the current configuration.
package envbuild

import (
	"strconv"

	"github.com/XPrime17/moltworker/internal/config"
	"github.com/XPrime17/moltworker/internal/fingerprint"
)

// Environment variable names the gateway recognizes.
const (
	EnvGatewayToken      = "MOLT_GATEWAY_TOKEN"
	EnvGatewayPort       = "MOLT_GATEWAY_PORT"
	EnvConfigFingerprint = "MOLT_CONFIG_FINGERPRINT"
	EnvFingerprintPath   = "MOLT_CONFIG_FINGERPRINT_PATH"
	EnvDevMode           = "MOLT_DEV_MODE"

	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvAnthropicBase = "ANTHROPIC_BASE_URL"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBase    = "OPENAI_BASE_URL"

	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
	EnvTelegramDMPolicy = "TELEGRAM_DM_POLICY"
	EnvDiscordToken     = "DISCORD_BOT_TOKEN"
	EnvDiscordDMPolicy  = "DISCORD_DM_POLICY"
	EnvSlackBotToken    = "SLACK_BOT_TOKEN"
	EnvSlackAppToken    = "SLACK_APP_TOKEN"
	EnvSlackDMPolicy    = "SLACK_DM_POLICY"
)

// Build maps the configuration to the gateway's environment. Empty optional
// values are omitted rather than exported as empty strings. The current
// configuration fingerprint and its persistence path are always included:
// the gateway's startup script writes the fingerprint file the version
// checker later reads back.
func Build(cfg *config.Config) map[string]string {
	env := map[string]string{
		EnvGatewayPort:       strconv.Itoa(cfg.Gateway.Port),
		EnvConfigFingerprint: string(fingerprint.Compute(cfg.Snapshot())),
		EnvFingerprintPath:   cfg.Gateway.FingerprintPath,
	}

	setIf := func(key, value string) {
		if value != "" {
			env[key] = value
		}
	}

	setIf(EnvGatewayToken, cfg.Gateway.AuthToken)
	setIf(EnvAnthropicKey, cfg.Providers.Anthropic.APIKey)
	setIf(EnvAnthropicBase, cfg.Providers.Anthropic.BaseURL)
	setIf(EnvOpenAIKey, cfg.Providers.OpenAI.APIKey)
	setIf(EnvOpenAIBase, cfg.Providers.OpenAI.BaseURL)
	setIf(EnvTelegramToken, cfg.Channels.Telegram.Token)
	setIf(EnvTelegramDMPolicy, cfg.Channels.Telegram.DMPolicy)
	setIf(EnvDiscordToken, cfg.Channels.Discord.Token)
	setIf(EnvDiscordDMPolicy, cfg.Channels.Discord.DMPolicy)
	setIf(EnvSlackBotToken, cfg.Channels.Slack.BotToken)
	setIf(EnvSlackAppToken, cfg.Channels.Slack.AppToken)
	setIf(EnvSlackDMPolicy, cfg.Channels.Slack.DMPolicy)

	if cfg.DevMode {
		env[EnvDevMode] = "true"
	}

	return env
}
