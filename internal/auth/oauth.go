package auth

import (
	"fmt"
	"os"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/config"
	"go.uber.org/fx"
)

// Service resolves providers together with the credentials the environment holds
// for them, and starts sessions from that.
type Service struct {
	registry *providers.Registry
	lookup   config.LookupFunc
	custom   config.CustomEnv
}

// NewService reads provider defaults from environment, or from the process
// environment when it is nil.
func NewService(registry *providers.Registry, environment map[string]string) (*Service, error) {
	if registry == nil {
		registry = providers.DefaultRegistry()
	}

	custom, err := config.LoadCustomEnv(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom provider environment: %w", err)
	}

	lookup := config.LookupFunc(os.LookupEnv)
	if environment != nil {
		lookup = func(key string) (string, bool) {
			v, ok := environment[key]
			return v, ok
		}
	}

	return &Service{registry: registry, lookup: lookup, custom: custom}, nil
}

// Registry returns the provider registry
func (s *Service) Registry() *providers.Registry {
	return s.registry
}

// Choices lists the selectable provider names, custom last.
func (s *Service) Choices() []string {
	return s.registry.Choices()
}

// CustomEndpoints returns the custom provider URLs found in the environment.
func (s *Service) CustomEndpoints() models.Endpoints {
	return s.custom.Endpoints()
}

// Resolve returns the adapter for name, or the custom provider built from the
// environment URLs.
func (s *Service) Resolve(name string) providers.Provider {
	return s.registry.Resolve(name, s.custom.Endpoints())
}

// Defaults returns the starting config of p and whether credentials came from the
// environment.
func (s *Service) Defaults(p providers.Provider) (models.ProviderConfig, bool) {
	cfg := p.DefaultConfig()

	var creds config.Credentials
	if s.registry.IsCustom(p.Name()) {
		creds = s.custom.Credentials()
	} else {
		creds = config.LookupCredentials(p.EnvKeys(), s.lookup)
	}
	creds.Apply(&cfg)
	return cfg, creds.Found()
}

// NewSession starts an Idle session for name with its defaults applied.
func (s *Service) NewSession(name string) (*flow.Session, bool) {
	p := s.Resolve(name)
	cfg, loaded := s.Defaults(p)
	return flow.NewSession(p, cfg), loaded
}

// Switch points an existing session at another provider, or at a custom provider with
// the given endpoints.
func (s *Service) Switch(session *flow.Session, name string, custom *models.Endpoints) (bool, error) {
	var p providers.Provider
	if custom != nil && s.registry.IsCustom(name) {
		p = providers.NewGenericProvider(*custom)
	} else {
		p = s.Resolve(name)
	}
	cfg, loaded := s.Defaults(p)
	return loaded, session.SwitchProvider(p, cfg)
}

// Module provides the auth service backed by the process environment
var Module = fx.Module("auth",
	providers.Module,
	flow.Module,
	fx.Provide(func(registry *providers.Registry) (*Service, error) {
		return NewService(registry, nil)
	}),
)
