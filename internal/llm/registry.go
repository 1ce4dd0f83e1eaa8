package llm

import (
	"fmt"

	"rostra/internal/domain/debate"
)

// Registry holds the configured provider adapters keyed by family.
type Registry struct {
	providers map[ProviderType]Provider
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[ProviderType]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Get returns the adapter for a provider family.
func (r *Registry) Get(t ProviderType) (Provider, error) {
	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", t)
	}
	return p, nil
}

// ForDebater resolves a hidden-assignment model family to its provider.
func (r *Registry) ForDebater(model debate.Model) (Provider, error) {
	switch model {
	case debate.ModelChatGPT:
		return r.Get(ProviderOpenAI)
	case debate.ModelGrok:
		return r.Get(ProviderXAI)
	}
	return nil, fmt.Errorf("unknown debater model: %s", model)
}

// Moderator returns the neutral moderator's provider. Moderator turns always
// run on the claude family so neither debater model judges itself.
func (r *Registry) Moderator() (Provider, error) {
	return r.Get(ProviderAnthropic)
}

// All returns every registered adapter.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}
