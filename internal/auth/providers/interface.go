package providers

import (
	"github.com/brizzai/oauth-playground/internal/auth/models"
)

// Provider defines the interface that all OAuth providers must implement
type Provider interface {
	// Name returns the display name of the provider
	Name() string

	// AuthorizationEndpoint returns the URL the operator's browser is sent to
	AuthorizationEndpoint() string

	// TokenEndpoint returns the URL codes are exchanged at
	TokenEndpoint() string

	// ProfileEndpoint returns the userinfo URL, or "" when there is no generic one
	ProfileEndpoint() string

	// DefaultConfig returns the provider defaults before environment and operator values
	DefaultConfig() models.ProviderConfig

	// AuthorizationParams builds the authorization query. It must be pure.
	AuthorizationParams(cfg models.ProviderConfig) *models.Params

	// TokenExchangeParams builds the form body of the code exchange
	TokenExchangeParams(cfg models.ProviderConfig, code string) *models.Params

	// ProfileRequest returns the headers and query of the profile fetch
	ProfileRequest(accessToken string) models.ProfileRequest

	// EnvKeys names the environment keys that pre-fill the config
	EnvKeys() models.EnvKeys
}

// OIDCProvider is implemented by providers whose id_token can be verified.
type OIDCProvider interface {
	Issuer() string
}

// LongLivedExchanger is implemented by providers that trade a short-lived access
// token for a long-lived one.
type LongLivedExchanger interface {
	LongLivedTokenParams(cfg models.ProviderConfig, accessToken string) *models.Params
}
