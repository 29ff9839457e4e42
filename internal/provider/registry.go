package provider

import "fmt"

// Registry is an ordered, immutable list of providers. Registration order is the
// dispatch order: when several providers cover the same region, the earliest wins.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry from providers in priority order. Names must be
// unique.
func NewRegistry(providers ...Provider) (*Registry, error) {
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("provider: nil provider")
		}
		if seen[p.Name()] {
			return nil, fmt.Errorf("provider: %s already registered", p.Name())
		}
		seen[p.Name()] = true
	}
	list := make([]Provider, len(providers))
	copy(list, providers)
	return &Registry{providers: list}, nil
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// FirstMatch returns the first registered provider implementing T that supports
// the region.
func FirstMatch[T Provider](r *Registry, lat, lon float64) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	for _, p := range r.providers {
		capable, ok := p.(T)
		if ok && p.SupportsRegion(lat, lon) {
			return capable, true
		}
	}
	return zero, false
}

// AllMatches returns every registered provider implementing T that supports the
// region, in registration order.
func AllMatches[T Provider](r *Registry, lat, lon float64) []T {
	if r == nil {
		return nil
	}
	var out []T
	for _, p := range r.providers {
		capable, ok := p.(T)
		if ok && p.SupportsRegion(lat, lon) {
			out = append(out, capable)
		}
	}
	return out
}
