package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:              "0.0.0.0",
			Port:              18890,
			SessionsPerMinute: 30,
		},
		Providers: ProvidersConfig{
			Default: "anthropic",
			Anthropic: ProviderConfig{
				Model: "claude-sonnet-4-20250514",
			},
			Groq: ProviderConfig{
				Model: "llama-3.3-70b-versatile",
			},
		},
		Agent: AgentConfig{
			MaxIterations:  3,
			HistoryLimit:   3,
			MaxTokens:      1024,
			TimeoutSeconds: 30,
		},
		STT: STTConfig{
			URL:          "wss://api.deepgram.com/v2/listen",
			Model:        "flux-general-en",
			SampleRate:   16000,
			Encoding:     "linear16",
			EOTThreshold: 0.9,
		},
		Database: DatabaseConfig{
			Path: "~/.voxtask/voxtask.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate checks startup-fatal requirements: the STT key and the API key of
// the selected LLM provider must both be present.
func (c *Config) Validate() error {
	if c.STT.APIKey == "" {
		return fmt.Errorf("missing STT API key (set VOXTASK_DEEPGRAM_API_KEY)")
	}
	name, pc := c.ActiveProvider()
	if pc.APIKey == "" {
		return fmt.Errorf("missing API key for provider %q", name)
	}
	return nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("VOXTASK_DEEPGRAM_API_KEY", &c.STT.APIKey)
	envStr("VOXTASK_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("VOXTASK_GROQ_API_KEY", &c.Providers.Groq.APIKey)

	envStr("VOXTASK_PROVIDER", &c.Providers.Default)
	if v := os.Getenv("VOXTASK_MODEL"); v != "" {
		switch c.Providers.Default {
		case "groq":
			c.Providers.Groq.Model = v
		default:
			c.Providers.Anthropic.Model = v
		}
	}

	envStr("VOXTASK_DB_PATH", &c.Database.Path)
	envStr("VOXTASK_STT_URL", &c.STT.URL)
	envStr("VOXTASK_OTLP_ENDPOINT", &c.Tracing.Endpoint)

	envStr("VOXTASK_HOST", &c.Gateway.Host)
	if v := os.Getenv("VOXTASK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
}

// ExpandHome resolves a leading "~/" against the user home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
