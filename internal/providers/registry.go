package providers

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// DefaultUpstreamTimeout bounds a single upstream fetch when the caller
// does not supply a client.
const DefaultUpstreamTimeout = 15 * time.Second

// Registry maps provider names to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry with all built-in adapters sharing one
// HTTP client. Pass nil to use a default client with a bounded timeout.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultUpstreamTimeout}
	}
	registry := &Registry{adapters: make(map[string]Adapter)}
	registry.Register(NewAnthropicAdapter(client, ""))
	registry.Register(NewMoonshotAdapter(client, ""))
	registry.Register(NewOpenAIAdapter(client, ""))
	registry.Register(NewDeepSeekAdapter(client, ""))
	registry.Register(NewMiniMaxAdapter())
	return registry
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	r.adapters[adapter.Name()] = adapter
}

// Get looks up the adapter for a provider name.
func (r *Registry) Get(name string) (Adapter, bool) {
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered provider names sorted for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownProvider reports a provider name with no registered adapter.
type ErrUnknownProvider struct {
	Name string
}

// Error implements the error interface.
func (e *ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Name)
}
