package llm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Router maps configuration keys ("openai", "ollama", ...) to providers.
// Chat and embeddings may come from different keys, e.g. Azure chat with
// OpenAI embeddings, so besides the default route it supports lookups by key.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	defaultKey string
}

// NewRouter copies providers; later changes to the map are not seen.
func NewRouter(providers map[string]Provider, defaultKey string) *Router {
	ps := make(map[string]Provider, len(providers))
	maps.Copy(ps, providers)
	return &Router{providers: ps, defaultKey: defaultKey}
}

// Register adds or replaces the provider under key.
func (r *Router) Register(key string, p Provider) {
	r.mu.Lock()
	r.providers[key] = p
	r.mu.Unlock()
}

// Route returns the provider for the default key.
func (r *Router) Route(_ context.Context) (Provider, error) {
	return r.Lookup(r.defaultKey)
}

// Lookup returns the provider registered under key.
func (r *Router) Lookup(key string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", key, r.Keys())
	}
	return p, nil
}

// Keys returns the registered keys in sorted order.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}
