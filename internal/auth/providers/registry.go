package providers

import (
	"errors"
	"fmt"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
)

// ErrUnknownProvider is returned by strict lookups of unregistered names.
var ErrUnknownProvider = errors.New("unknown provider")

// Constructor builds a fresh adapter.
type Constructor func() Provider

// Registry maps display names to adapter constructors. It is filled at composition
// time and only read afterwards.
type Registry struct {
	names []string
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns the registry with every built-in adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(GoogleAnalyticsName, func() Provider { return NewGoogleAnalyticsProvider() })
	r.MustRegister(FacebookName, func() Provider { return NewFacebookProvider() })
	return r
}

// Register adds an adapter under name.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("provider name and constructor are required")
	}
	if name == constants.CustomProviderName {
		return fmt.Errorf("provider name %q is reserved", name)
	}
	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.names = append(r.names, name)
	r.ctors[name] = ctor
	return nil
}

// MustRegister is Register that panics, for static composition.
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Choices returns the registered names followed by the custom entry.
func (r *Registry) Choices() []string {
	return append(r.Names(), constants.CustomProviderName)
}

// Lookup returns a new adapter for name.
func (r *Registry) Lookup(name string) (Provider, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return ctor(), nil
}

// Resolve returns the adapter for name, falling back to a generic provider driven by
// the custom endpoints when nothing matches.
func (r *Registry) Resolve(name string, custom models.Endpoints) Provider {
	if p, err := r.Lookup(name); err == nil {
		return p
	}
	return NewGenericProvider(custom)
}

// IsCustom reports whether name falls back to the generic provider.
func (r *Registry) IsCustom(name string) bool {
	_, ok := r.ctors[name]
	return !ok
}
