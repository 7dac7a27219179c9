package config

import (
	"os"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/caarlos0/env/v11"
)

// LookupFunc resolves an environment key. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Credentials are the operator values pre-filled from the environment.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// LookupCredentials reads the keys an adapter declares. Empty keys are skipped.
func LookupCredentials(keys models.EnvKeys, lookup LookupFunc) Credentials {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		if key == "" {
			return ""
		}
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return Credentials{
		ClientID:     get(keys.ClientID),
		ClientSecret: get(keys.ClientSecret),
		RedirectURI:  get(keys.RedirectURI),
	}
}

// Apply overwrites the non-empty credential values onto cfg.
func (c Credentials) Apply(cfg *models.ProviderConfig) {
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	if c.ClientSecret != "" {
		cfg.ClientSecret = c.ClientSecret
	}
	if c.RedirectURI != "" {
		cfg.RedirectURI = c.RedirectURI
	}
}

// Found reports whether a client id or secret was present.
func (c Credentials) Found() bool {
	return c.ClientID != "" || c.ClientSecret != ""
}

// CustomEnv holds the keys of the custom provider, where every endpoint comes from
// the operator.
type CustomEnv struct {
	ClientID     string `env:"APP_CLIENT_ID"`
	ClientSecret string `env:"APP_CLIENT_SECRET"`
	RedirectURI  string `env:"APP_REDIRECT_URI" envDefault:"http://localhost:8501"`
	AuthURL      string `env:"AUTH_URL"`
	TokenURL     string `env:"TOKEN_URL"`
	UserinfoURL  string `env:"USERINFO_URL"`
}

// LoadCustomEnv parses the custom provider keys. A nil environment reads the process env.
func LoadCustomEnv(environment map[string]string) (CustomEnv, error) {
	var c CustomEnv
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return CustomEnv{}, err
	}
	return c, nil
}

// Endpoints returns the custom endpoints as an adapter definition.
func (c CustomEnv) Endpoints() models.Endpoints {
	return models.Endpoints{
		AuthURL:     c.AuthURL,
		TokenURL:    c.TokenURL,
		UserinfoURL: c.UserinfoURL,
	}
}

// Credentials returns the custom credentials.
func (c CustomEnv) Credentials() Credentials {
	return Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
	}
}
