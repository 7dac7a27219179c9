package providers

import (
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"golang.org/x/oauth2"
)

// GenericProvider is driven entirely by operator-supplied URLs and only ever emits the
// common parameter shapes.
type GenericProvider struct {
	*Base
}

func NewGenericProvider(endpoints models.Endpoints) *GenericProvider {
	return &GenericProvider{
		Base: &Base{
			name: constants.CustomProviderName,
			endpoint: oauth2.Endpoint{
				AuthURL:   strings.TrimSpace(endpoints.AuthURL),
				TokenURL:  strings.TrimSpace(endpoints.TokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			userinfoURL:  strings.TrimSpace(endpoints.UserinfoURL),
			defaultScope: constants.DefaultScope,
			envKeys: models.EnvKeys{
				ClientID:     "APP_CLIENT_ID",
				ClientSecret: "APP_CLIENT_SECRET",
				RedirectURI:  "APP_REDIRECT_URI",
			},
		},
	}
}

// Endpoints returns the operator-supplied URLs.
func (p *GenericProvider) Endpoints() models.Endpoints {
	return models.Endpoints{
		AuthURL:     p.endpoint.AuthURL,
		TokenURL:    p.endpoint.TokenURL,
		UserinfoURL: p.userinfoURL,
	}
}
