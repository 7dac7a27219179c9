package providers

import (
	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"golang.org/x/oauth2"
)

// FacebookName is the registry name of the Facebook adapter.
const FacebookName = "Facebook"

var FacebookEndpoint = oauth2.Endpoint{
	AuthURL:   "https://www.facebook.com/v24.0/dialog/oauth",
	TokenURL:  "https://graph.facebook.com/v24.0/oauth/access_token",
	AuthStyle: oauth2.AuthStyleInParams,
}

type FacebookProvider struct {
	*Base
}

func NewFacebookProvider() *FacebookProvider {
	return &FacebookProvider{
		Base: &Base{
			name:         FacebookName,
			endpoint:     FacebookEndpoint,
			defaultScope: "ads_read,read_insights,business_management",
			envKeys: models.EnvKeys{
				ClientID:     "FACEBOOK_CLIENT_ID",
				ClientSecret: "FACEBOOK_CLIENT_SECRET",
				RedirectURI:  "FACEBOOK_REDIRECT_URI",
			},
		},
	}
}

// AuthorizationParams emits a comma-separated scope, Facebook ignores the space form.
func (p *FacebookProvider) AuthorizationParams(cfg models.ProviderConfig) *models.Params {
	params := p.Base.AuthorizationParams(cfg)
	params.Set(constants.ParamScope, JoinScope(cfg.Scope, ","))
	return params
}

// LongLivedTokenParams builds the query that trades a short-lived user token (1-2h)
// for a 60 day one. It is sent as a GET to the token endpoint.
func (p *FacebookProvider) LongLivedTokenParams(cfg models.ProviderConfig, accessToken string) *models.Params {
	params := models.NewParams()
	params.Set(constants.ParamGrantType, "fb_exchange_token")
	params.Set(constants.ParamClientID, cfg.ClientID)
	params.Set(constants.ParamClientSecret, cfg.ClientSecret)
	params.Set("fb_exchange_token", accessToken)
	return params
}
