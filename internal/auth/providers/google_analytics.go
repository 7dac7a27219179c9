package providers

import (
	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"golang.org/x/oauth2"
)

// GoogleAnalyticsName is the registry name of the Google Analytics adapter.
const GoogleAnalyticsName = "Google Analytics"

// GoogleAnalyticsEndpoint is Google's v2 consent endpoint. The secret travels in the
// form body.
var GoogleAnalyticsEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

type GoogleAnalyticsProvider struct {
	*Base
}

func NewGoogleAnalyticsProvider() *GoogleAnalyticsProvider {
	return &GoogleAnalyticsProvider{
		Base: &Base{
			name:         GoogleAnalyticsName,
			endpoint:     GoogleAnalyticsEndpoint,
			defaultScope: "https://www.googleapis.com/auth/analytics.readonly openid email profile",
			envKeys: models.EnvKeys{
				ClientID:     "GOOGLE_ANALYTICS_CLIENT_ID",
				ClientSecret: "GOOGLE_ANALYTICS_CLIENT_SECRET",
				RedirectURI:  "GOOGLE_ANALYTICS_REDIRECT_URI",
			},
		},
	}
}

// AuthorizationParams asks for offline access and forces the consent screen, so a
// refresh token is issued on every run.
func (p *GoogleAnalyticsProvider) AuthorizationParams(cfg models.ProviderConfig) *models.Params {
	params := p.Base.AuthorizationParams(cfg)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return params
}

func (p *GoogleAnalyticsProvider) Issuer() string {
	return constants.GoogleIssuer
}
