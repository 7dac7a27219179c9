package providers

import (
	"net/http"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"golang.org/x/oauth2"
)

// Base implements the parts of Provider that every adapter shares. Adapters embed it
// and override what they need.
type Base struct {
	name         string
	endpoint     oauth2.Endpoint
	userinfoURL  string
	defaultScope string
	envKeys      models.EnvKeys
}

func (b *Base) Name() string { return b.name }

func (b *Base) AuthorizationEndpoint() string { return b.endpoint.AuthURL }

func (b *Base) TokenEndpoint() string { return b.endpoint.TokenURL }

func (b *Base) ProfileEndpoint() string { return b.userinfoURL }

func (b *Base) EnvKeys() models.EnvKeys { return b.envKeys }

// Endpoint returns the endpoints in x/oauth2 form.
func (b *Base) Endpoint() oauth2.Endpoint { return b.endpoint }

func (b *Base) DefaultConfig() models.ProviderConfig {
	scope := b.defaultScope
	if scope == "" {
		scope = constants.DefaultScope
	}
	return models.ProviderConfig{
		Name:        b.name,
		RedirectURI: constants.DefaultRedirectURI,
		Scope:       scope,
	}
}

// AuthorizationParams returns the common base with the scope space-delimited.
func (b *Base) AuthorizationParams(cfg models.ProviderConfig) *models.Params {
	p := models.NewParams()
	p.Set(constants.ParamClientID, cfg.ClientID)
	p.Set(constants.ParamRedirectURI, cfg.RedirectURI)
	p.Set(constants.ParamResponseType, constants.ResponseTypeCode)
	p.Set(constants.ParamScope, JoinScope(cfg.Scope, " "))
	return p
}

func (b *Base) TokenExchangeParams(cfg models.ProviderConfig, code string) *models.Params {
	p := models.NewParams()
	p.Set(constants.ParamCode, code)
	p.Set(constants.ParamClientID, cfg.ClientID)
	p.Set(constants.ParamClientSecret, cfg.ClientSecret)
	p.Set(constants.ParamRedirectURI, cfg.RedirectURI)
	p.Set(constants.ParamGrantType, constants.GrantAuthorizationCode)
	return p
}

// ProfileRequest sends the access token as a bearer Authorization header.
func (b *Base) ProfileRequest(accessToken string) models.ProfileRequest {
	h := make(http.Header)
	tok := &oauth2.Token{AccessToken: accessToken}
	h.Set(constants.AuthHeaderName, tok.Type()+" "+tok.AccessToken)
	h.Set("Accept", "application/json")
	return models.ProfileRequest{Header: h}
}

// SplitScope splits a scope string on commas and whitespace, dropping empty entries.
func SplitScope(scope string) []string {
	return strings.FieldsFunc(scope, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// JoinScope re-delimits a scope string with sep.
func JoinScope(scope, sep string) string {
	return strings.Join(SplitScope(scope), sep)
}
