package auth

import (
	"testing"

	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Defaults(t *testing.T) {
	service, err := NewService(nil, map[string]string{
		"FACEBOOK_CLIENT_ID":     " fb-id ",
		"FACEBOOK_CLIENT_SECRET": "fb-secret",
		"APP_CLIENT_ID":          "app-id",
		"AUTH_URL":               "https://idp.example.com/auth",
		"TOKEN_URL":              "https://idp.example.com/token",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{providers.GoogleAnalyticsName, providers.FacebookName, constants.CustomProviderName}, service.Choices())

	tests := []struct {
		name       string
		provider   string
		wantID     string
		wantSecret string
		wantLoaded bool
	}{
		{name: "facebook from env", provider: providers.FacebookName, wantID: "fb-id", wantSecret: "fb-secret", wantLoaded: true},
		{name: "google analytics without env", provider: providers.GoogleAnalyticsName},
		{name: "custom", provider: constants.CustomProviderName, wantID: "app-id", wantLoaded: true},
		{name: "unknown falls back to custom", provider: "Okta", wantID: "app-id", wantLoaded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, loaded := service.NewSession(tt.provider)
			cfg := session.Config()
			assert.Equal(t, tt.wantLoaded, loaded)
			assert.Equal(t, tt.wantID, cfg.ClientID)
			assert.Equal(t, tt.wantSecret, cfg.ClientSecret)
			assert.Equal(t, constants.DefaultRedirectURI, cfg.RedirectURI)
			assert.Equal(t, flow.StateIdle, session.State())
		})
	}

	custom := service.Resolve("Okta")
	assert.Equal(t, "https://idp.example.com/auth", custom.AuthorizationEndpoint())
	assert.Equal(t, "https://idp.example.com/token", custom.TokenEndpoint())
	assert.Empty(t, custom.ProfileEndpoint())
}

func TestService_Switch(t *testing.T) {
	service, err := NewService(providers.DefaultRegistry(), map[string]string{})
	require.NoError(t, err)

	session, _ := service.NewSession(providers.GoogleAnalyticsName)
	loaded, err := service.Switch(session, constants.CustomProviderName, &models.Endpoints{
		AuthURL:     "https://login.example.com/a",
		TokenURL:    "https://login.example.com/t",
		UserinfoURL: "https://login.example.com/me",
	})
	require.NoError(t, err)
	assert.False(t, loaded)

	p := session.Provider()
	assert.Equal(t, constants.CustomProviderName, p.Name())
	assert.Equal(t, "https://login.example.com/me", p.ProfileEndpoint())
	assert.Equal(t, constants.DefaultScope, session.Config().Scope)
}
