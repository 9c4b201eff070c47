package config

// Config is the root configuration for the voxtask server.
// Loaded once at startup from a JSON5 file plus env overrides; immutable after.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Providers ProvidersConfig `json:"providers"`
	Agent     AgentConfig     `json:"agent"`
	STT       STTConfig       `json:"stt"`
	Database  DatabaseConfig  `json:"database"`
	Tracing   TracingConfig   `json:"tracing"`
	Costs     []CostOverride  `json:"costs,omitempty"`
}

// GatewayConfig controls the client-facing websocket server.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// SessionsPerMinute limits new websocket session admissions.
	// 0 disables the limiter.
	SessionsPerMinute int `json:"sessions_per_minute"`
}

// ProvidersConfig holds LLM provider credentials and selection.
type ProvidersConfig struct {
	// Default selects the active provider: "anthropic" or "groq".
	Default   string         `json:"default"`
	Anthropic ProviderConfig `json:"anthropic"`
	Groq      ProviderConfig `json:"groq"`
}

// ProviderConfig is one provider's credentials and model override.
type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	MaxIterations  int `json:"max_iterations"`  // tool-calling rounds per turn
	HistoryLimit   int `json:"history_limit"`   // conversation messages loaded per turn
	MaxTokens      int `json:"max_tokens"`      // per-stream output cap
	TimeoutSeconds int `json:"timeout_seconds"` // wall clock per invocation
}

// STTConfig holds speech-to-text provider settings. Query-string parameters
// on the client websocket override the defaults per session.
type STTConfig struct {
	APIKey       string  `json:"api_key"`
	URL          string  `json:"url"`
	Model        string  `json:"model"`
	SampleRate   int     `json:"sample_rate"`
	Encoding     string  `json:"encoding"`
	EOTThreshold float64 `json:"eot_threshold"`
}

// DatabaseConfig selects the embedded store location.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// TracingConfig controls OTLP span export. Tracing stays off until an
// endpoint is configured.
type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string `json:"endpoint,omitempty"`

	// Insecure disables TLS on the collector connection.
	Insecure bool `json:"insecure,omitempty"`

	// SampleRatio is the fraction of traces recorded; 0 means all.
	SampleRatio float64 `json:"sample_ratio,omitempty"`
}

// CostOverride replaces the built-in pricing for one provider/model pair.
// All rates are USD per million tokens.
type CostOverride struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Input      float64 `json:"input"`
	CacheWrite float64 `json:"cache_write"`
	CacheRead  float64 `json:"cache_read"`
	Output     float64 `json:"output"`
}

// HasAnyProvider reports whether at least one LLM API key is configured.
func (c *Config) HasAnyProvider() bool {
	return c.Providers.Anthropic.APIKey != "" || c.Providers.Groq.APIKey != ""
}

// ActiveProvider returns the selected provider's name and config.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	if c.Providers.Default == "groq" {
		return "groq", c.Providers.Groq
	}
	return "anthropic", c.Providers.Anthropic
}
