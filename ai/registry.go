package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/itsneelabh/actionagent/core"
)

// ProviderFactory builds chat clients for one provider. Providers register
// a factory from init, so importing the provider package is enough to make
// it selectable by name.
type ProviderFactory interface {
	Create(config *Config) (core.AIClient, error)
	Name() string
	Description() string
}

type providerSet struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

var registry = &providerSet{providers: make(map[string]ProviderFactory)}

// Register adds a provider factory. Names are case-insensitive and unique.
func Register(factory ProviderFactory) error {
	if factory == nil {
		return fmt.Errorf("ai: nil provider factory: %w", core.ErrInvalidConfiguration)
	}
	name := normalizeProvider(factory.Name())
	if name == "" {
		return fmt.Errorf("ai: provider name is empty: %w", core.ErrInvalidConfiguration)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.providers[name]; dup {
		return fmt.Errorf("ai: provider %q registered twice: %w", name, core.ErrInvalidConfiguration)
	}
	registry.providers[name] = factory
	return nil
}

// MustRegister is Register for init functions
func MustRegister(factory ProviderFactory) {
	if err := Register(factory); err != nil {
		panic(err)
	}
}

// GetProvider looks a factory up by name
func GetProvider(name string) (ProviderFactory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.providers[normalizeProvider(name)]
	return f, ok
}

// ListProviders returns the registered names, sorted
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
