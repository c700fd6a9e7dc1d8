package config

// Config holds abridge configuration.
// Stored at: ~/.abridge/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Condense     CondenseCfg               `mapstructure:"condense" yaml:"condense"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "openai", "anthropic", "mock"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selection and concurrency.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"` // Default LLM provider
	MaxWorkers  int    `mapstructure:"max_workers" yaml:"max_workers"`   // Global cap on concurrent LLM calls
}

// CondenseCfg holds the length-contract parameters for condensation.
type CondenseCfg struct {
	MinRatioPct     int  `mapstructure:"min_ratio_pct" yaml:"min_ratio_pct"`       // Lower bound, percent of source length
	MaxRatioPct     int  `mapstructure:"max_ratio_pct" yaml:"max_ratio_pct"`       // Upper bound, percent of source length
	MaxChunkSize    int  `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`     // Characters per work unit
	MaxRetries      int  `mapstructure:"max_retries" yaml:"max_retries"`           // Length-contract retries per sub-unit
	MinUnitLength   int  `mapstructure:"min_unit_length" yaml:"min_unit_length"`   // Units below this are passed through unchanged
	ForceRegenerate bool `mapstructure:"force_regenerate" yaml:"force_regenerate"` // Ignore cached unit artifacts
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"anthropic": {
				Type:      "anthropic",
				Model:     "claude-sonnet-4-20250514",
				APIKey:    "${ANTHROPIC_API_KEY}",
				RateLimit: 50,
				Enabled:   false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openai",
			MaxWorkers:  3,
		},
		Condense: CondenseCfg{
			MinRatioPct:   30,
			MaxRatioPct:   50,
			MaxChunkSize:  8000,
			MaxRetries:    3,
			MinUnitLength: 500,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
