package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors for the providers package.
var (
	// ErrProviderNotFound is returned when a named provider is not registered.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrNoProviders is returned when no enabled providers are configured.
	ErrNoProviders = errors.New("no enabled providers configured")

	// ErrUnknownProviderType is returned for an unrecognized provider type.
	ErrUnknownProviderType = errors.New("unknown provider type")
)

// LLMProviderConfig configures one client slot in the registry.
// API keys are expected to be fully resolved (no ${ENV_VAR} references).
type LLMProviderConfig struct {
	Type      string  // "openai", "anthropic", "mock"
	Model     string
	APIKey    string
	RateLimit float64 // Requests per minute
	Enabled   bool
}

// RegistryConfig holds the provider set and the default selection.
type RegistryConfig struct {
	LLMProviders    map[string]LLMProviderConfig
	DefaultProvider string
}

// Registry holds the constructed clients and their rate limiters.
type Registry struct {
	mu          sync.RWMutex
	clients     map[string]LLMClient
	limiters    map[string]*RateLimiter
	defaultName string
}

// NewRegistry builds clients for every enabled provider in cfg.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		clients:  make(map[string]LLMClient),
		limiters: make(map[string]*RateLimiter),
	}

	for name, pc := range cfg.LLMProviders {
		if !pc.Enabled {
			continue
		}

		client, err := buildClient(pc)
		if err != nil {
			return nil, fmt.Errorf("building provider %q: %w", name, err)
		}

		r.clients[name] = client
		r.limiters[name] = NewRateLimiter(client.RequestsPerMinute())
	}

	if len(r.clients) == 0 {
		return nil, ErrNoProviders
	}

	r.defaultName = cfg.DefaultProvider
	if r.defaultName == "" || r.clients[r.defaultName] == nil {
		// Fall back deterministically: openai when enabled, otherwise the
		// lexicographically first enabled provider.
		if _, ok := r.clients[OpenAIName]; ok {
			r.defaultName = OpenAIName
		} else {
			names := make([]string, 0, len(r.clients))
			for name := range r.clients {
				names = append(names, name)
			}
			sort.Strings(names)
			r.defaultName = names[0]
		}
	}

	return r, nil
}

func buildClient(pc LLMProviderConfig) (LLMClient, error) {
	switch pc.Type {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.Model,
			RPM:          int(pc.RateLimit),
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.Model,
			RPM:          int(pc.RateLimit),
		}), nil
	case "mock":
		c := NewMockClient()
		if pc.RateLimit > 0 {
			c.RPM = int(pc.RateLimit)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, pc.Type)
	}
}

// Get returns a client by name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return client, nil
}

// Default returns the default client.
func (r *Registry) Default() LLMClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[r.defaultName]
}

// DefaultName returns the name of the default client.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Limiter returns the rate limiter for a named client, or nil if absent.
func (r *Registry) Limiter(name string) *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// Names returns the registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
