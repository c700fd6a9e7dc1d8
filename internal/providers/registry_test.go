package providers

import (
	"errors"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"openai":    {Type: "openai", Model: "gpt-4o-mini", APIKey: "sk-test", RateLimit: 60, Enabled: true},
			"anthropic": {Type: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "sk-ant", Enabled: false},
			"mock":      {Type: "mock", RateLimit: 600, Enabled: true},
		},
		DefaultProvider: "openai",
	}

	r, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if got := len(r.Names()); got != 2 {
		t.Errorf("registered %d clients, want 2 (disabled providers skipped)", got)
	}

	if _, err := r.Get("anthropic"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(disabled) error = %v, want ErrProviderNotFound", err)
	}

	client, err := r.Get("mock")
	if err != nil {
		t.Fatalf("Get(mock) failed: %v", err)
	}
	if client.Name() != MockClientName {
		t.Errorf("client name = %q, want %q", client.Name(), MockClientName)
	}

	if r.DefaultName() != "openai" {
		t.Errorf("DefaultName = %q, want openai", r.DefaultName())
	}
	if r.Default() == nil {
		t.Error("Default() returned nil")
	}
	if r.Limiter("mock") == nil {
		t.Error("Limiter(mock) returned nil")
	}
}

func TestNewRegistryNoProviders(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"openai": {Type: "openai", Enabled: false},
		},
	})
	if !errors.Is(err, ErrNoProviders) {
		t.Errorf("error = %v, want ErrNoProviders", err)
	}
}

func TestNewRegistryUnknownType(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"weird": {Type: "telepathy", Enabled: true},
		},
	})
	if !errors.Is(err, ErrUnknownProviderType) {
		t.Errorf("error = %v, want ErrUnknownProviderType", err)
	}
}

func TestNewRegistryDefaultFallback(t *testing.T) {
	r, err := NewRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"mock": {Type: "mock", Enabled: true},
		},
		DefaultProvider: "openai", // configured default is not enabled
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if r.DefaultName() != "mock" {
		t.Errorf("DefaultName = %q, want mock fallback", r.DefaultName())
	}
}

func TestNewRegistryDefaultFallbackIsDeterministic(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"zeta":  {Type: "mock", Enabled: true},
			"beta":  {Type: "mock", Enabled: true},
			"gamma": {Type: "mock", Enabled: true},
		},
	}

	// Map iteration order varies between runs; the fallback must not.
	for i := 0; i < 10; i++ {
		r, err := NewRegistry(cfg)
		if err != nil {
			t.Fatalf("NewRegistry failed: %v", err)
		}
		if r.DefaultName() != "beta" {
			t.Fatalf("DefaultName = %q, want beta (first by name)", r.DefaultName())
		}
	}
}
