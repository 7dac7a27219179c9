package models

import (
	"net/http"
	"net/url"
)

// ProviderConfig is the operator-editable configuration of a provider.
// ClientSecret must never be logged in full.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
}

// EnvKeys names the environment keys used to pre-fill a ProviderConfig.
type EnvKeys struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Endpoints are the raw URLs the custom provider is driven with.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserinfoURL string
}

// ProfileRequest carries what a profile GET must send besides the URL.
type ProfileRequest struct {
	Header http.Header
	Query  url.Values
}
