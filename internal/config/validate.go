package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the configuration surface: ratio bounds in 1..100,
// positive chunk size and worker cap, non-negative retries.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "llm_providers": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"type": "string", "enum": ["openai", "anthropic", "mock"]},
          "model": {"type": "string"},
          "api_key": {"type": "string"},
          "rate_limit": {"type": "number", "minimum": 0},
          "enabled": {"type": "boolean"}
        },
        "required": ["type"]
      }
    },
    "defaults": {
      "type": "object",
      "properties": {
        "llm_provider": {"type": "string"},
        "max_workers": {"type": "integer", "minimum": 1}
      }
    },
    "condense": {
      "type": "object",
      "properties": {
        "min_ratio_pct": {"type": "integer", "minimum": 1, "maximum": 100},
        "max_ratio_pct": {"type": "integer", "minimum": 1, "maximum": 100},
        "max_chunk_size": {"type": "integer", "minimum": 1},
        "max_retries": {"type": "integer", "minimum": 0},
        "min_unit_length": {"type": "integer", "minimum": 0},
        "force_regenerate": {"type": "boolean"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// Validate checks a Config against the embedded JSON schema plus the
// cross-field constraints the schema cannot express.
func Validate(cfg *Config) error {
	data, err := json.Marshal(configDoc(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Condense.MinRatioPct > cfg.Condense.MaxRatioPct {
		return fmt.Errorf("invalid config: condense.min_ratio_pct (%d) exceeds condense.max_ratio_pct (%d)",
			cfg.Condense.MinRatioPct, cfg.Condense.MaxRatioPct)
	}

	if name := cfg.Defaults.LLMProvider; name != "" {
		if _, ok := cfg.LLMProviders[name]; !ok {
			return fmt.Errorf("invalid config: defaults.llm_provider %q is not a configured provider", name)
		}
	}

	return nil
}

// configDoc flattens a Config into the JSON shape the schema describes.
func configDoc(cfg *Config) map[string]any {
	providers := make(map[string]any, len(cfg.LLMProviders))
	for name, p := range cfg.LLMProviders {
		providers[name] = map[string]any{
			"type":       p.Type,
			"model":      p.Model,
			"api_key":    p.APIKey,
			"rate_limit": p.RateLimit,
			"enabled":    p.Enabled,
		}
	}
	return map[string]any{
		"llm_providers": providers,
		"defaults": map[string]any{
			"llm_provider": cfg.Defaults.LLMProvider,
			"max_workers":  cfg.Defaults.MaxWorkers,
		},
		"condense": map[string]any{
			"min_ratio_pct":    cfg.Condense.MinRatioPct,
			"max_ratio_pct":    cfg.Condense.MaxRatioPct,
			"max_chunk_size":   cfg.Condense.MaxChunkSize,
			"max_retries":      cfg.Condense.MaxRetries,
			"min_unit_length":  cfg.Condense.MinUnitLength,
			"force_regenerate": cfg.Condense.ForceRegenerate,
		},
	}
}
